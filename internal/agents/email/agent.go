// Package email implements the Email Agent and the email-draft
// approval state machine: drafting, safety checks, human-in-the-loop
// approval, and at-most-once sending.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/internal/capability"
	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/config"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/internal/retrybackoff"
	"github.com/concierge/orchestrator/internal/sessionstore"
	"github.com/concierge/orchestrator/pkg/models"
)

type Agent struct {
	gateway *llmgateway.Gateway
	mail    capability.Mail
	store   sessionstore.Store
	clock   clock.Clock
	cfg     config.EmailConfig

	locks *draftLocks
}

func New(gw *llmgateway.Gateway, mail capability.Mail, store sessionstore.Store, c clock.Clock, cfg config.EmailConfig) *Agent {
	return &Agent{gateway: gw, mail: mail, store: store, clock: c, cfg: cfg, locks: newDraftLocks()}
}

// Locks exposes the agent's per-draft lock registry so the Janitor can
// serialize its approval-expiry sweep against concurrent approve/send
// decisions on the same draft.
func (a *Agent) Locks() *draftLocks {
	return a.locks
}

// lockDraft returns the mutex guarding the approve-then-send critical
// section for a single draft id, creating it on first use. The same
// mutex instance is returned for the same id across calls so that two
// concurrent decisions on the same draft are serialized.
func (a *Agent) lockDraft(draftID string) *sync.Mutex {
	return a.locks.lock(draftID)
}

var actionKeywords = map[string][]string{
	"send":    {"send", "approve and send"},
	"approve": {"approve", "confirm", "looks good", "go ahead"},
	"update":  {"change", "edit", "update", "revise", "rewrite"},
	"list":    {"list", "inbox", "show me", "unread", "my emails"},
	"read":    {"read", "open email", "show email"},
	"draft":   {"draft", "write", "compose", "send email to"},
}

func (a *Agent) Process(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	action, err := a.classifyAction(ctx, sp)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Email agent could not understand the request: %v", err))
	}

	switch action {
	case "draft":
		return a.handleDraft(ctx, sp)
	case "update":
		return a.handleUpdate(ctx, sp)
	case "approve":
		return a.handleApprove(ctx, sp)
	case "send":
		return a.handleSend(ctx, sp)
	case "read":
		return a.handleRead(ctx, sp)
	case "list":
		return a.handleList(ctx, sp)
	default:
		return models.ErrorResult(fmt.Sprintf("❌ Email agent could not classify the request (got action=%q)", action))
	}
}

func (a *Agent) classifyAction(ctx context.Context, sp *models.Scratchpad) (string, error) {
	lower := strings.ToLower(sp.UserRequest)
	for action, keywords := range actionKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return action, nil
			}
		}
	}

	prompt := fmt.Sprintf(`Classify this email-related request into exactly one of: read, list, draft, update, approve, send.
Respond with strict JSON: {"action": ""}

Request: %s`, sp.UserRequest)
	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.0,
		ResponseFormat: models.FormatJSON,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &out); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(out.Action)), nil
}

type draftedFields struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Tone    string   `json:"tone"`
}

func (a *Agent) handleDraft(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	fields, err := a.composeDraft(ctx, sp)
	if err != nil {
		fields = minimalTemplate(sp.UserRequest)
	}

	now := a.clock.Now()
	draft := models.EmailDraft{
		ID:        uuid.NewString(),
		SessionID: sp.SessionID,
		UserID:    sp.UserID,
		To:        fields.To,
		Subject:   fields.Subject,
		Body:      fields.Body,
		Tone:      fields.Tone,
		Status:    models.DraftDrafted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	checks := runSafetyChecks(draft)
	draft.SafetyChecks = &checks

	if _, ok := applyTransition(draft.Status, transitionRequestApproval); !ok {
		return models.ErrorResult("❌ Internal error: could not move draft to pending approval.")
	}
	draft.Status = models.DraftPendingApproval
	draft.UpdatedAt = a.clock.Now()

	if err := a.store.SaveDraft(ctx, draft); err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Could not save email draft: %v", err))
	}
	a.notifyApprovalRequested(draft)

	if wantsImmediateSend(sp.UserRequest) {
		return a.autoApproveAndSend(ctx, sp.ThirdPartyToken, draft)
	}

	sp.DraftCreated = &models.DraftSidecar{
		ID: draft.ID, To: draft.To, Subject: draft.Subject, Body: draft.Body,
		Status: draft.Status, CreatedAt: draft.CreatedAt,
	}

	preview := draft.Body
	truncated := false
	if len(preview) > 500 {
		preview = preview[:500]
		truncated = true
	}
	msg := fmt.Sprintf("📧 **Email Draft Created**\n\n**To:** %s\n**Subject:** %s\n**Status:** %s\n\n%s",
		strings.Join(draft.To, ", "), draft.Subject, draft.Status, preview)
	if truncated {
		msg += "...(content truncated)"
	}
	msg += "\n\n✅ The draft is awaiting your approval."

	return models.SuccessResult(msg, map[string]any{"draft_id": draft.ID, "status": string(draft.Status)})
}

func (a *Agent) composeDraft(ctx context.Context, sp *models.Scratchpad) (draftedFields, error) {
	prompt := fmt.Sprintf(`Draft a professional email based on this request: %q

Recent conversation:
%s

Respond with strict JSON:
{"to": ["recipient@example.com"], "subject": "", "body": "", "tone": "professional"}

Keep the subject under 50 characters. Include an appropriate greeting and sign-off.`,
		sp.UserRequest, formatHistory(sp.HistorySnapshot))

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.3,
		ResponseFormat: models.FormatJSON,
	})
	if err != nil {
		return draftedFields{}, err
	}
	var f draftedFields
	if err := json.Unmarshal([]byte(resp.Content), &f); err != nil {
		return draftedFields{}, err
	}
	if f.Subject == "" || f.Body == "" {
		return draftedFields{}, fmt.Errorf("incomplete draft returned by model")
	}
	return f, nil
}

func minimalTemplate(request string) draftedFields {
	return draftedFields{
		Subject: "Re: your request",
		Body:    request,
		Tone:    "professional",
	}
}

func (a *Agent) handleUpdate(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	draftID := draftIDFromParams(sp)
	if draftID == "" {
		return models.ErrorResult("❌ No draft specified to update.")
	}
	draft, err := a.store.GetDraft(ctx, draftID, sp.SessionID)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Draft not found: %v", err))
	}
	if draft.Status.IsTerminal() {
		return models.ErrorResult(fmt.Sprintf("❌ Draft '%s' is %s and can no longer be edited.", draft.Subject, draft.Status))
	}
	if draft.Status == models.DraftApproved {
		return models.ErrorResult(fmt.Sprintf("❌ Draft '%s' is already approved; reject it first if it needs further changes.", draft.Subject))
	}

	fields, err := a.composeDraft(ctx, sp)
	if err == nil {
		if len(fields.To) > 0 {
			draft.To = fields.To
		}
		if fields.Subject != "" {
			draft.Subject = fields.Subject
		}
		if fields.Body != "" {
			draft.Body = fields.Body
		}
	}
	checks := runSafetyChecks(draft)
	draft.SafetyChecks = &checks
	draft.UpdatedAt = a.clock.Now()

	if err := a.store.UpdateDraft(ctx, draft); err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Could not save updated draft: %v", err))
	}
	return models.SuccessResult(
		fmt.Sprintf("📧 Draft updated.\n\n**Subject:** %s\n**To:** %s", draft.Subject, strings.Join(draft.To, ", ")),
		map[string]any{"draft_id": draft.ID, "status": string(draft.Status)},
	)
}

func (a *Agent) handleApprove(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	draftID := draftIDFromParams(sp)
	if draftID == "" {
		return models.ErrorResult("❌ No draft specified to approve.")
	}
	lock := a.lockDraft(draftID)
	lock.Lock()
	defer lock.Unlock()

	draft, err := a.store.GetDraft(ctx, draftID, sp.SessionID)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Draft not found: %v", err))
	}
	decision := models.ApprovalDecision{Approve: !isRejectIntent(sp.UserRequest)}
	updated, aerr := a.processDecision(ctx, draft, decision)
	if aerr != nil {
		return models.ErrorResult(aerr.Error())
	}
	if updated.Status == models.DraftApproved {
		return models.SuccessResult(fmt.Sprintf("✅ Draft '%s' approved and ready to send.", updated.Subject),
			map[string]any{"draft_id": updated.ID, "status": string(updated.Status)})
	}
	return models.SuccessResult(fmt.Sprintf("🚫 Draft '%s' rejected.", updated.Subject),
		map[string]any{"draft_id": updated.ID, "status": string(updated.Status)})
}

// processDecision validates the current status, applies the decision
// within a single save, and returns the updated draft. Approving an
// already-Approved draft is a no-op, not an error; every other
// non-PendingApproval status (including terminal ones) is rejected.
func (a *Agent) processDecision(ctx context.Context, draft models.EmailDraft, decision models.ApprovalDecision) (models.EmailDraft, error) {
	if draft.Status == models.DraftApproved && decision.Approve {
		return draft, nil
	}
	if draft.Status != models.DraftPendingApproval {
		return draft, fmt.Errorf("❌ Draft is not pending approval (status=%s)", draft.Status)
	}
	t := transitionReject
	if decision.Approve {
		t = transitionApprove
	}
	next, ok := applyTransition(draft.Status, t)
	if !ok {
		return draft, fmt.Errorf("❌ Cannot transition draft from %s via %s", draft.Status, t)
	}
	now := a.clock.Now()
	draft.Status = next
	draft.UpdatedAt = now
	if decision.Approve {
		draft.ApprovedAt = &now
		for field, val := range decision.FieldEdits {
			switch field {
			case "subject":
				draft.Subject = val
			case "body":
				draft.Body = val
			}
		}
	} else {
		draft.RejectFeedback = decision.RejectReason
	}
	if err := a.store.UpdateDraft(ctx, draft); err != nil {
		return draft, fmt.Errorf("❌ Could not persist approval decision: %w", err)
	}
	return draft, nil
}

func (a *Agent) handleSend(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	draftID := draftIDFromParams(sp)
	if draftID == "" {
		return models.ErrorResult("❌ No draft specified to send.")
	}
	lock := a.lockDraft(draftID)
	lock.Lock()
	defer lock.Unlock()

	draft, err := a.store.GetDraft(ctx, draftID, sp.SessionID)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Draft not found: %v", err))
	}

	if draft.Status == models.DraftPendingApproval && wantsImmediateSend(sp.UserRequest) {
		return a.autoApproveAndSend(ctx, sp.ThirdPartyToken, draft)
	}
	if draft.Status != models.DraftApproved {
		return models.ErrorResult(fmt.Sprintf("❌ Draft must be approved before sending (status=%s).", draft.Status))
	}
	return a.send(ctx, sp.ThirdPartyToken, draft)
}

// autoApproveAndSend is the only permitted path that bypasses
// human-initiated approval: when the user's immediate intent is
// clearly "send" on a still-PendingApproval draft.
func (a *Agent) autoApproveAndSend(ctx context.Context, token string, draft models.EmailDraft) models.AgentResult {
	updated, err := a.processDecision(ctx, draft, models.ApprovalDecision{Approve: true, RejectReason: ""})
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	updated.RejectFeedback = ""
	updated.AIReasoning = "auto-approved for send"
	if err := a.store.UpdateDraft(ctx, updated); err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Could not record auto-approval: %v", err))
	}
	return a.send(ctx, token, updated)
}

// send implements at-most-once delivery: on success, status and the
// provider message id are recorded atomically before returning; on a
// transient failure it retries up to SendMaxRetries times with an
// exponential backoff starting at SendRetryDelay; exhaustion or a
// permanent error marks the draft Failed
// rather than risking a duplicate send on an ambiguous outcome.
func (a *Agent) send(ctx context.Context, token string, draft models.EmailDraft) models.AgentResult {
	if draft.Status != models.DraftApproved {
		return models.ErrorResult(fmt.Sprintf("❌ Draft must be approved before sending (status=%s).", draft.Status))
	}

	maxRetries := a.cfg.SendMaxRetries
	delay := a.cfg.SendRetryDelay
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}

	var result models.SendResult
	attempts := 0
	policy := retrybackoff.Policy{MaxRetries: maxRetries, InitialDelay: delay}
	sendErr := retrybackoff.Do(ctx, policy, func(ctx context.Context) error {
		attempts++
		r, err := a.mail.Send(ctx, token, draft)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}

	if sendErr == nil {
		now := a.clock.Now()
		draft.Status = models.DraftSent
		draft.UpdatedAt = now
		draft.SentAt = &now
		draft.ProviderMessageID = result.ProviderMessageID
		draft.ProviderThreadID = result.ProviderThreadID
		if uerr := a.store.UpdateDraft(ctx, draft); uerr != nil {
			log.Error().Err(uerr).Str("draft_id", draft.ID).Msg("send succeeded but failed to persist Sent status")
		}
		return models.SuccessResult(
			fmt.Sprintf("✅ Email Sent to %s with subject '%s'.", strings.Join(draft.To, ", "), draft.Subject),
			map[string]any{"draft_id": draft.ID, "provider_message_id": result.ProviderMessageID},
		)
	}

	// Ambiguous or exhausted outcome: never retry further on our own,
	// mark Failed rather than risk a duplicate send. retries reflects
	// the actual number of retry attempts made inside retrybackoff.Do
	// — a permanent error short-circuits after the first attempt, so
	// it records 0, while a transient error exhausting the policy
	// records maxRetries.
	draft.Status = models.DraftFailed
	draft.UpdatedAt = a.clock.Now()
	draft.RetryCount = retries
	if uerr := a.store.UpdateDraft(ctx, draft); uerr != nil {
		log.Error().Err(uerr).Str("draft_id", draft.ID).Msg("failed to persist Failed status after send exhaustion")
	}
	return models.ErrorResult(fmt.Sprintf("Failed to send email after %d attempt(s): %v. The draft has been marked Failed — please review and re-send manually.", attempts, sendErr))
}

func (a *Agent) handleRead(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	id := messageIDFromParams(sp)
	if id == "" {
		return models.ErrorResult("❌ No message id specified to read.")
	}
	msg, err := a.mail.Get(ctx, sp.ThirdPartyToken, id)
	if err != nil {
		return mailError("read", err)
	}
	return models.SuccessResult(
		fmt.Sprintf("📧 **From:** %s\n**Subject:** %s\n\n%s", msg.From, msg.Subject, msg.Body),
		map[string]any{"email": msg},
	)
}

func (a *Agent) handleList(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	q := parseListQuery(sp.UserRequest)
	emails, err := a.mail.List(ctx, sp.ThirdPartyToken, q)
	if err != nil {
		return mailError("list", err)
	}
	if len(emails) == 0 {
		return models.SuccessResult("I found no emails matching that request.", map[string]any{"email_summaries": emails})
	}

	shown := emails
	if len(shown) > 5 {
		shown = shown[:5]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d email(s)", len(emails))
	if q.Query != "" {
		fmt.Fprintf(&b, " matching '%s'", q.Query)
	}
	b.WriteString(":\n")
	for i, e := range shown {
		unread := ""
		if e.IsUnread {
			unread = " (unread)"
		}
		snippet := e.Subject
		if len(e.Subject) > 100 {
			snippet = e.Subject[:100]
		}
		fmt.Fprintf(&b, "%d. From: %s, Subject: %s%s, Preview: %s\n", i+1, e.From, snippet, unread, truncate(e.Snippet, 100))
	}
	if len(emails) > 5 {
		fmt.Fprintf(&b, "...and %d more emails.", len(emails)-5)
	}
	return models.SuccessResult(b.String(), map[string]any{"email_summaries": emails})
}

func parseListQuery(request string) models.MailListQuery {
	lower := strings.ToLower(request)
	var terms []string
	if strings.Contains(lower, "unread") {
		terms = append(terms, "is:unread")
	}
	if strings.Contains(lower, "important") {
		terms = append(terms, "is:important")
	}
	if strings.Contains(lower, "starred") {
		terms = append(terms, "is:starred")
	}
	if idx := strings.Index(lower, "from "); idx >= 0 {
		rest := strings.Fields(lower[idx+len("from "):])
		if len(rest) > 0 {
			terms = append(terms, "from:"+rest[0])
		}
	}
	return models.MailListQuery{Max: 20, Query: strings.Join(terms, " ")}
}

func draftIDFromParams(sp *models.Scratchpad) string {
	if params, ok := sp.Plan.AgentParams[models.AgentEmail]; ok {
		if id, ok := params["draft_id"].(string); ok {
			return id
		}
	}
	if sp.DraftCreated != nil {
		return sp.DraftCreated.ID
	}
	return ""
}

func messageIDFromParams(sp *models.Scratchpad) string {
	if params, ok := sp.Plan.AgentParams[models.AgentEmail]; ok {
		if id, ok := params["message_id"].(string); ok {
			return id
		}
	}
	return ""
}

func wantsImmediateSend(request string) bool {
	lower := strings.ToLower(request)
	return strings.Contains(lower, "send it") || strings.Contains(lower, "send now") ||
		strings.Contains(lower, "approve and send") || strings.Contains(lower, "go ahead and send")
}

func isRejectIntent(request string) bool {
	lower := strings.ToLower(request)
	return strings.Contains(lower, "reject") || strings.Contains(lower, "don't send") || strings.Contains(lower, "cancel")
}

// notifyApprovalRequested fires a best-effort, out-of-band notification
// that a draft needs a human decision. Delivery failures must never
// fail the draft/request flow itself.
func (a *Agent) notifyApprovalRequested(draft models.EmailDraft) {
	log.Info().Str("draft_id", draft.ID).Str("session_id", draft.SessionID).Msg("email draft awaiting approval")
}

func mailError(op string, err error) models.AgentResult {
	log.Error().Err(err).Str("op", op).Msg("email agent capability call failed")
	if models.KindOf(err) == models.ErrAuthMissing {
		return models.ErrorResult("Please sign in with Google to access your emails.")
	}
	return models.ErrorResult(fmt.Sprintf("❌ %v", err))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatHistory(h []models.HistoryEntry) string {
	if len(h) == 0 {
		return "No previous conversation."
	}
	limit := 5
	if len(h) < limit {
		limit = len(h)
	}
	recent := h[len(h)-limit:]
	var b strings.Builder
	for _, e := range recent {
		fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Body)
	}
	return b.String()
}
