// Package orchestrator implements the per-request state machine: load
// history, build a plan, dispatch agents sequentially, compile the
// response, and persist the transcript.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/internal/agent"
	"github.com/concierge/orchestrator/internal/compiler"
	"github.com/concierge/orchestrator/internal/config"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/internal/sessionstore"
	"github.com/concierge/orchestrator/pkg/models"
)

const historyWindow = 10

// Request is a single inbound request to the orchestrator.
type Request struct {
	SessionID       string
	UserID          string
	UserRequest     string
	ThirdPartyToken string
	FileBlob        []byte
	FileName        string
}

// Response is the orchestrator's compiled output for one request.
type Response struct {
	Text         string
	DraftCreated *models.DraftSidecar
}

type Orchestrator struct {
	gateway  *llmgateway.Gateway
	registry *agent.Registry
	store    sessionstore.Store
	compiler *compiler.Compiler
	timeouts config.TimeoutConfig
}

func New(gw *llmgateway.Gateway, registry *agent.Registry, store sessionstore.Store, comp *compiler.Compiler, timeouts config.TimeoutConfig) *Orchestrator {
	return &Orchestrator{gateway: gw, registry: registry, store: store, compiler: comp, timeouts: timeouts}
}

func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	requestID := uuid.NewString()
	log.Info().Str("request_id", requestID).Str("session_id", req.SessionID).Msg("orchestrator: request received")

	history, err := o.store.LoadHistory(ctx, req.SessionID, historyWindow)
	if err != nil {
		return Response{}, fmt.Errorf("loading history: %w", err)
	}

	userMsg := models.ChatMessage{
		SessionID: req.SessionID,
		Sender:    models.SenderUser,
		Body:      req.UserRequest,
		Timestamp: time.Now().UTC(),
	}
	if err := o.store.AppendMessage(ctx, req.SessionID, userMsg); err != nil {
		return Response{}, fmt.Errorf("persisting user message: %w", err)
	}

	sp := &models.Scratchpad{
		UserRequest:     req.UserRequest,
		SessionID:       req.SessionID,
		UserID:          req.UserID,
		ThirdPartyToken: req.ThirdPartyToken,
		FileBlob:        req.FileBlob,
		FileName:        req.FileName,
		HistorySnapshot: toHistoryEntries(history),
		PartialResults:  make(map[models.AgentName]models.AgentResult),
	}

	plan, err := o.buildPlan(ctx, sp)
	if err != nil {
		return Response{}, fmt.Errorf("building plan: %w", err)
	}
	sp.Plan = plan

	o.executePlan(ctx, requestID, sp)

	text, err := o.compiler.Compile(ctx, sp)
	if err != nil {
		text = "I ran into trouble composing a final response, but here's what happened: " + summarizePartial(sp)
	}
	sp.FinalResponse = text

	agentMsg := models.ChatMessage{
		SessionID: req.SessionID,
		Sender:    models.SenderAgent,
		Body:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := o.store.AppendMessage(ctx, req.SessionID, agentMsg); err != nil {
		return Response{}, fmt.Errorf("persisting agent message: %w", err)
	}

	return Response{Text: text, DraftCreated: sp.DraftCreated}, nil
}

func (o *Orchestrator) buildPlan(ctx context.Context, sp *models.Scratchpad) (models.OrchestratorPlan, error) {
	prompt := fmt.Sprintf(`You are the orchestrator for a multi-agent assistant. Given the user's request and conversation, decide which agents to invoke.

Available agents: calendar_agent, notes_agent, file_agent, email_agent, general_agent.

Respond with strict JSON:
{"agents_to_invoke": ["agent_name"], "reasoning": "", "workflow_type": "", "agent_actions": {}, "confidence": 0.0}

Use workflow_type "no_action" only when no agent should run at all (e.g. small talk with nothing to do).

User request: %s

Recent conversation:
%s`, sp.UserRequest, formatHistory(sp.HistorySnapshot))

	resp, err := o.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.1,
		ResponseFormat: models.FormatJSON,
	})
	if err != nil {
		return models.OrchestratorPlan{}, err
	}

	var plan models.OrchestratorPlan
	if err := json.Unmarshal([]byte(resp.Content), &plan); err != nil {
		return models.OrchestratorPlan{}, fmt.Errorf("parsing plan: %w", err)
	}

	var valid []models.AgentName
	for _, name := range plan.Agents {
		if models.AllAgentNames[name] {
			valid = append(valid, name)
		}
	}
	plan.Agents = dedupePreserveOrder(valid)

	if plan.WorkflowLabel != "no_action" {
		plan.Agents = appendKeywordFallback(plan.Agents, sp.UserRequest)
	}
	plan.Agents = enforceOrdering(plan.Agents)

	if plan.AgentParams == nil {
		plan.AgentParams = make(map[models.AgentName]map[string]any)
	}
	return plan, nil
}

func appendKeywordFallback(agents []models.AgentName, request string) []models.AgentName {
	lower := strings.ToLower(request)
	present := make(map[models.AgentName]bool, len(agents))
	for _, a := range agents {
		present[a] = true
	}
	for _, name := range orderedAgentNames {
		if present[name] {
			continue
		}
		if matchesKeywordTrigger(name, lower) {
			agents = append(agents, name)
			present[name] = true
		}
	}
	return agents
}

func (o *Orchestrator) executePlan(ctx context.Context, requestID string, sp *models.Scratchpad) {
	for _, name := range sp.Plan.Agents {
		ag, ok := o.registry.Get(name)
		if !ok {
			continue
		}
		result := o.invokeAgent(ctx, requestID, name, ag, sp)
		sp.PartialResults[name] = result
	}
}

func (o *Orchestrator) invokeAgent(ctx context.Context, requestID string, name models.AgentName, ag agent.Agent, sp *models.Scratchpad) models.AgentResult {
	timeout := o.timeoutFor(name)
	agentCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan models.AgentResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- models.ErrorResult(fmt.Sprintf("❌ %s panicked: %v", name, r))
			}
		}()
		resultCh <- ag.Process(agentCtx, sp)
	}()

	var result models.AgentResult
	var errKind string
	select {
	case result = <-resultCh:
		if result.Status == models.ResultError {
			errKind = "agent_error"
		}
	case <-agentCtx.Done():
		result = models.ErrorResult(fmt.Sprintf("❌ %s timed out after %s.", name, timeout))
		errKind = "timeout"
	}

	log.Info().
		Str("request_id", requestID).
		Str("session_id", sp.SessionID).
		Str("agent", string(name)).
		Dur("duration", time.Since(start)).
		Str("outcome", string(result.Status)).
		Str("error_kind", errKind).
		Msg("agent invocation complete")

	return result
}

func (o *Orchestrator) timeoutFor(name models.AgentName) time.Duration {
	switch name {
	case models.AgentCalendar:
		return o.timeouts.Calendar
	case models.AgentEmail:
		return o.timeouts.Email
	case models.AgentGeneral:
		return o.timeouts.General
	case models.AgentFile:
		return o.timeouts.File
	case models.AgentNotes:
		return o.timeouts.Calendar
	default:
		return o.timeouts.General
	}
}

func toHistoryEntries(msgs []models.ChatMessage) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Sender == models.SenderAgent {
			role = "assistant"
		}
		out = append(out, models.HistoryEntry{Role: role, Body: m.Body})
	}
	return out
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

func summarizePartial(sp *models.Scratchpad) string {
	var b strings.Builder
	for name, res := range sp.PartialResults {
		fmt.Fprintf(&b, "%s: %s\n", name, res.Message)
	}
	return b.String()
}
