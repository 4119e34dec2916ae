// Package calendar implements the Calendar Agent: intent extraction
// against the LLM Gateway followed by dispatch to the Calendar
// capability client, with a match-before-mutate guard in front of any
// update or delete.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/internal/capability"
	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

const defaultUpcomingWindow = 50

// Agent is the Calendar Agent.
type Agent struct {
	gateway  *llmgateway.Gateway
	calendar capability.Calendar
	clock    clock.Clock
}

func New(gw *llmgateway.Gateway, cal capability.Calendar, c clock.Clock) *Agent {
	return &Agent{gateway: gw, calendar: cal, clock: c}
}

type intent struct {
	Action         string   `json:"action"`
	Title          string   `json:"title"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Attendees      []string `json:"attendees"`
	Location       string   `json:"location"`
	EventQuery     string   `json:"event_query"`
	DurationMinutes int     `json:"duration_minutes"`
}

type matchResult struct {
	MatchedID  string  `json:"matched_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (a *Agent) Process(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	in, err := a.extractIntent(ctx, sp)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("❌ Calendar agent failed to understand the request: %v", err))
	}

	switch in.Action {
	case "create":
		return a.handleCreate(ctx, sp, in)
	case "view_all":
		return a.handleViewAll(ctx, sp)
	case "view_specific":
		return a.handleViewSpecific(ctx, sp, in)
	case "find_free_slots":
		return a.handleFreeSlots(ctx, sp, in)
	case "update":
		return a.handleUpdate(ctx, sp, in)
	case "delete":
		return a.handleDelete(ctx, sp, in)
	default:
		return models.ErrorResult(fmt.Sprintf("❌ Calendar agent could not classify the request (got action=%q)", in.Action))
	}
}

func (a *Agent) extractIntent(ctx context.Context, sp *models.Scratchpad) (intent, error) {
	now := a.clock.Now()
	prompt := fmt.Sprintf(`You are a calendar intent extractor. Given the user's request, emit strict JSON with fields:
{"action": "create|update|delete|view_all|view_specific|find_free_slots", "title": "", "start": "RFC3339", "end": "RFC3339", "attendees": [], "location": "", "event_query": "", "duration_minutes": 0}

Rules:
- If the user names a timezone (e.g. IST, PST, EST), emit start/end with the matching numeric UTC offset.
- Otherwise emit a local-naive RFC-3339 timestamp (no offset).
- If both a reminder time and a meeting time are mentioned, use the meeting time and discard the reminder.
- event_query is a free-text description used to find an existing event for update/delete/view_specific.

Current date/time (UTC): %s

User request: %s

Recent conversation:
%s`, now.Format(time.RFC3339), sp.UserRequest, formatHistory(sp.HistorySnapshot))

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.1,
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

// defaultMeetingDuration is applied when the model omits an end time.
const defaultMeetingDuration = 30 * time.Minute

func (a *Agent) handleCreate(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	end := in.End
	if end == "" && in.Start != "" {
		end = addDuration(in.Start, defaultMeetingDuration)
	}
	ev := models.CalendarEvent{
		Summary:   in.Title,
		Start:     in.Start,
		End:       end,
		Attendees: in.Attendees,
		Location:  in.Location,
	}
	created, err := a.calendar.Create(ctx, sp.ThirdPartyToken, ev)
	if err != nil {
		return calendarError("create", err)
	}
	return models.SuccessResult(
		fmt.Sprintf("📅 Event '%s' created.", created.Summary),
		map[string]any{"event": created},
	)
}

func (a *Agent) handleViewAll(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	events, err := a.calendar.List(ctx, sp.ThirdPartyToken, models.CalendarListQuery{
		TimeMin: a.clock.Now(),
		TimeMax: a.clock.Now().AddDate(0, 0, 30),
		Max:     50,
	})
	if err != nil {
		return calendarError("list", err)
	}
	return models.SuccessResult(
		fmt.Sprintf("📅 Found %d upcoming event(s).", len(events)),
		map[string]any{"events": events},
	)
}

func (a *Agent) handleViewSpecific(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	if ev, err := a.calendar.Get(ctx, sp.ThirdPartyToken, in.EventQuery); err == nil {
		return models.SuccessResult(fmt.Sprintf("📅 %s", ev.Summary), map[string]any{"event": ev})
	} else if models.KindOf(err) != models.ErrProviderNotFound {
		return calendarError("get", err)
	}
	events, err := a.calendar.Search(ctx, sp.ThirdPartyToken, in.EventQuery, 5)
	if err != nil {
		return calendarError("search", err)
	}
	if len(events) == 0 {
		return models.ErrorResult(fmt.Sprintf("❌ No event found matching '%s'.", in.EventQuery))
	}
	return models.SuccessResult(
		fmt.Sprintf("📅 Found %d matching event(s).", len(events)),
		map[string]any{"events": events},
	)
}

func (a *Agent) handleFreeSlots(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	duration := in.DurationMinutes
	if duration <= 0 {
		duration = 30
	}
	timeMin := a.clock.Now()
	timeMax := timeMin.AddDate(0, 0, 7)
	slots, err := a.calendar.FindFreeSlots(ctx, sp.ThirdPartyToken, models.FreeBusyQuery{
		TimeMin:         timeMin,
		TimeMax:         timeMax,
		DurationMinutes: duration,
		Attendees:       in.Attendees,
	})
	if err != nil {
		return calendarError("find_free_slots", err)
	}
	return models.SuccessResult(
		fmt.Sprintf("📅 Found %d free slot(s) of at least %d minutes.", len(slots), duration),
		map[string]any{"free_slots": slots},
	)
}

func (a *Agent) handleUpdate(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	matchedID, listed, err := a.matchEvent(ctx, sp, in)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	_ = listed
	patch := models.CalendarPatch{}
	if in.Title != "" {
		patch.Summary = &in.Title
	}
	if in.Start != "" {
		patch.Start = &in.Start
	}
	if in.End != "" {
		patch.End = &in.End
	}
	if in.Location != "" {
		patch.Location = &in.Location
	}
	if len(in.Attendees) > 0 {
		patch.Attendees = in.Attendees
	}
	updated, err := a.calendar.Update(ctx, sp.ThirdPartyToken, matchedID, patch)
	if err != nil {
		return calendarError("update", err)
	}
	return models.SuccessResult(
		fmt.Sprintf("📅 Successfully updated event '%s'.", updated.Summary),
		map[string]any{"event": updated},
	)
}

func (a *Agent) handleDelete(ctx context.Context, sp *models.Scratchpad, in intent) models.AgentResult {
	matchedID, _, err := a.matchEvent(ctx, sp, in)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	if err := a.calendar.Delete(ctx, sp.ThirdPartyToken, matchedID); err != nil {
		return calendarError("delete", err)
	}
	return models.SuccessResult("📅 Event deleted.", map[string]any{"deleted_id": matchedID})
}

// matchEvent implements the match-before-mutate rule: it never trusts
// a model-guessed event id. It pulls the next N upcoming events, asks
// the gateway to pick the best match from that real list, and only
// proceeds when confidence >= 0.5 and the id is actually in the list.
func (a *Agent) matchEvent(ctx context.Context, sp *models.Scratchpad, in intent) (string, []string, error) {
	events, err := a.calendar.List(ctx, sp.ThirdPartyToken, models.CalendarListQuery{
		TimeMin: a.clock.Now(),
		TimeMax: a.clock.Now().AddDate(1, 0, 0),
		Max:     defaultUpcomingWindow,
	})
	if err != nil {
		return "", nil, fmt.Errorf("❌ Could not load events to match against: %w", err)
	}
	if len(events) == 0 {
		return "", nil, fmt.Errorf("❌ You have no upcoming events to match '%s' against.", in.EventQuery)
	}

	var b strings.Builder
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
		fmt.Fprintf(&b, "- id=%s summary=%q start=%s\n", ev.ID, ev.Summary, ev.Start)
	}

	prompt := fmt.Sprintf(`Given this description of an event the user wants to change: %q

And this list of their actual upcoming events:
%s

Pick the single best-matching event. Respond with strict JSON:
{"matched_id": "", "confidence": 0.0, "reason": ""}

confidence must be between 0 and 1. If nothing matches well, use confidence 0.`, in.EventQuery, b.String())

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.0,
		ResponseFormat: models.FormatJSON,
	})
	if err != nil {
		return "", ids, fmt.Errorf("❌ Could not determine which event you meant: %w", err)
	}
	var m matchResult
	if err := json.Unmarshal([]byte(resp.Content), &m); err != nil {
		return "", ids, fmt.Errorf("❌ Could not determine which event you meant: %w", err)
	}
	if m.Confidence < 0.5 || !contains(ids, m.MatchedID) {
		return "", ids, fmt.Errorf("Could not find a matching event for '%s' — please give me more detail (e.g. the exact title or date).", in.EventQuery)
	}
	return m.MatchedID, ids, nil
}

// addDuration parses start as RFC-3339 (falling back to the offset-less
// "local-naive" layout the intent extractor may emit) and formats
// start+d back in whichever layout it was given.
func addDuration(start string, d time.Duration) string {
	if t, err := time.Parse(time.RFC3339, start); err == nil {
		return t.Add(d).Format(time.RFC3339)
	}
	const naiveLayout = "2006-01-02T15:04:05"
	if t, err := time.Parse(naiveLayout, start); err == nil {
		return t.Add(d).Format(naiveLayout)
	}
	return start
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func calendarError(op string, err error) models.AgentResult {
	log.Error().Err(err).Str("op", op).Msg("calendar agent capability call failed")
	if models.KindOf(err) == models.ErrAuthMissing {
		return models.ErrorResult("Please sign in with your calendar provider to continue.")
	}
	return models.ErrorResult(fmt.Sprintf("❌ Calendar %s failed: %v", op, err))
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
