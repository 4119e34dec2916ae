// Package notes implements the Notes/Docs Agent: the same intent
// extraction and match-before-mutate shape as the calendar agent, run
// against the Docs capability client.
package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/internal/capability"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

const defaultDocWindow = 50

type Agent struct {
	gateway *llmgateway.Gateway
	docs    capability.Docs
}

func New(gw *llmgateway.Gateway, docs capability.Docs) *Agent {
	return &Agent{gateway: gw, docs: docs}
}

type intent struct {
	Action     string   `json:"action"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	DocQuery   string   `json:"doc_query"`
	Tags       []string `json:"tags"`
}

type matchResult struct {
	MatchedID  string  `json:"matched_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (a *Agent) Process(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	in, err := a.extractIntent(ctx, sp)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Notes agent failed to understand the request: %v", err))
	}

	switch in.Action {
	case "create":
		return a.handleCreate(ctx, sp, in)
	case "view_all":
		return a.handleViewAll(ctx, sp)
	case "view_specific":
		return a.handleViewSpecific(ctx, sp, in)
	case "search":
		return a.handleSearch(ctx, sp, in)
	case "update":
		return a.handleUpdate(ctx, sp, in)
	case "delete":
		return a.handleDelete(ctx, sp, in)
	default:
		return models.ErrorResult(fmt.Sprintf("❌ Notes agent could not classify the request (got action=%q)", in.Action))
	}
}

func (a *Agent) extractIntent(ctx context.Context, sp *models.Scratchpad) (intent, error) {
	prompt := fmt.Sprintf(`You are a notes/document intent extractor. Emit strict JSON:
{"action": "create|update|delete|view_all|view_specific|search", "title": "", "body": "", "doc_query": "", "tags": []}

doc_query is a free-text description used to find an existing document for update/delete/view_specific/search.

User request: %s

Recent conversation:
%s

Context from earlier agents this request (may reference a meeting or email the note should link to):
%s`, sp.UserRequest, formatHistory(sp.HistorySnapshot), formatPartial(sp))

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.2,
		ResponseFormat: models.FormatJSON,
	})
	if err != nil {
		return intent{}, err
	}
	var in intent
	if err := json.Unmarshal([]byte(resp.Content), &in); err != nil {
		return intent{}, fmt.Errorf("parsing intent: %w", err)
	}
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	return in, nil
}

func (a *Agent) handleCreate(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	body := in.Body
	if strings.TrimSpace(body) == "" {
		synthesized, err := a.synthesizeBody(ctx, sp, in)
		if err != nil {
			return models.ErrorResult(fmt.Sprintf("❌ Could not draft note content: %v", err))
		}
		body = synthesized
	}
	created, err := a.docs.Create(ctx, sp.ThirdPartyToken, models.DocCreate{Title: in.Title, Content: body})
	if err != nil {
		return docsError("create", err)
	}
	// Best-effort: failing to mark the note link-shareable must never
	// fail the create itself.
	if err := a.docs.SetShareable(ctx, sp.ThirdPartyToken, created.ID); err != nil {
		log.Warn().Err(err).Str("doc_id", created.ID).Msg("could not mark note shareable")
	}
	return models.SuccessResult(
		fmt.Sprintf("📝 Note '%s' created.", in.Title),
		map[string]any{"doc_id": created.ID, "url": created.URL},
	)
}

func (a *Agent) synthesizeBody(ctx context.Context, sp *models.Scratchpad, in intent) (string, error) {
	prompt := fmt.Sprintf(`The user asked for a note to be created but did not supply its content. Write the body of the note based on their request and the conversation so far.

Request: %s
Title: %s

Recent conversation:
%s`, sp.UserRequest, in.Title, formatHistory(sp.HistorySnapshot))

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *Agent) handleViewAll(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	docs, err := a.docs.List(ctx, sp.ThirdPartyToken)
	if err != nil {
		return docsError("list", err)
	}
	return models.SuccessResult(fmt.Sprintf("📝 Found %d note(s).", len(docs)), map[string]any{"docs": docs})
}

func (a *Agent) handleViewSpecific(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	if doc, err := a.docs.Get(ctx, sp.ThirdPartyToken, in.DocQuery); err == nil {
		return models.SuccessResult(fmt.Sprintf("📝 %s", doc.Title), map[string]any{"doc": doc})
	} else if models.KindOf(err) != models.ErrProviderNotFound {
		return docsError("get", err)
	}
	return a.handleSearch(ctx, sp, in)
}

func (a *Agent) handleSearch(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	docs, err := a.docs.Search(ctx, sp.ThirdPartyToken, in.DocQuery)
	if err != nil {
		return docsError("search", err)
	}
	if len(docs) == 0 {
		return models.ErrorResult(fmt.Sprintf("❌ No note found matching '%s'.", in.DocQuery))
	}
	return models.SuccessResult(fmt.Sprintf("📝 Found %d matching note(s).", len(docs)), map[string]any{"docs": docs})
}

func (a *Agent) handleUpdate(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	matchedID, err := a.matchDoc(ctx, sp, in)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	update := models.DocUpdate{}
	if in.Title != "" {
		update.Title = &in.Title
	}
	if in.Body != "" {
		update.Content = &in.Body
		update.Append = true
	}
	if err := a.docs.Update(ctx, sp.ThirdPartyToken, matchedID, update); err != nil {
		return docsError("update", err)
	}
	return models.SuccessResult("📝 Note updated.", map[string]any{"doc_id": matchedID})
}

func (a *Agent) handleDelete(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	matchedID, err := a.matchDoc(ctx, sp, in)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	if err := a.docs.Delete(ctx, sp.ThirdPartyToken, matchedID); err != nil {
		return docsError("delete", err)
	}
	return models.SuccessResult("📝 Note deleted.", map[string]any{"deleted_id": matchedID})
}

// matchDoc applies the same match-before-mutate guard as the calendar
// agent, against the user's actual document list.
func (a *Agent) matchDoc(ctx context.Context, sp *models.Scratchpad, in intent) (string, error) {
	docs, err := a.docs.List(ctx, sp.ThirdPartyToken)
	if err != nil {
		return "", fmt.Errorf("❌ Could not load notes to match against: %w", err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("❌ You have no notes to match '%s' against.", in.DocQuery)
	}
	if len(docs) > defaultDocWindow {
		docs = docs[:defaultDocWindow]
	}

	var b strings.Builder
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ProviderID)
		fmt.Fprintf(&b, "- id=%s title=%q\n", d.ProviderID, d.Title)
	}

	prompt := fmt.Sprintf(`Given this description of a note the user wants to change: %q

And this list of their actual notes:
%s

Pick the single best-matching note. Respond with strict JSON:
{"matched_id": "", "confidence": 0.0, "reason": ""}

confidence must be between 0 and 1. If nothing matches well, use confidence 0.`, in.DocQuery, b.String())

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.0,
		ResponseFormat: models.FormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("❌ Could not determine which note you meant: %w", err)
	}
	var m matchResult
	if err := json.Unmarshal([]byte(resp.Content), &m); err != nil {
		return "", fmt.Errorf("❌ Could not determine which note you meant: %w", err)
	}
	if m.Confidence < 0.5 || !contains(ids, m.MatchedID) {
		return "", fmt.Errorf("❌ I couldn't confidently match '%s' to one of your notes — please give me more detail.", in.DocQuery)
	}
	return m.MatchedID, nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func docsError(op string, err error) models.AgentResult {
	log.Error().Err(err).Str("op", op).Msg("notes agent capability call failed")
	if models.KindOf(err) == models.ErrAuthMissing {
		return models.ErrorResult("Please sign in with your documents provider to continue.")
	}
	return models.ErrorResult(fmt.Sprintf("❌ Notes %s failed: %v", op, err))
}

func formatHistory(h []models.HistoryEntry) string {
	if len(h) == 0 {
		return "No previous conversation."
	}
	var b strings.Builder
	for _, e := range h {
		fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Body)
	}
	return b.String()
}

func formatPartial(sp *models.Scratchpad) string {
	if len(sp.PartialResults) == 0 {
		return "none"
	}
	var b strings.Builder
	for name, res := range sp.PartialResults {
		fmt.Fprintf(&b, "%s: %s\n", name, res.Message)
	}
	return b.String()
}
