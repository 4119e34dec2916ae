package calendar

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/internal/capability"
	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

func newTestGateway(respond func(req models.CompleteRequest) (string, error)) *llmgateway.Gateway {
	gw := llmgateway.New(llmgateway.StrategyFallback, 4)
	gw.Register(&llmgateway.MockDriver{Respond: respond})
	return gw
}

func TestHandleCreate_AppliesDefaultThirtyMinuteDuration(t *testing.T) {
	gw := newTestGateway(func(req models.CompleteRequest) (string, error) {
		return `{"action":"create","title":"Sync","start":"2026-08-01T10:00:00Z","end":""}`, nil
	})
	cal := capability.NewMockCalendar()
	clk := clock.NewFixed(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	a := New(gw, cal, clk)

	sp := &models.Scratchpad{UserRequest: "schedule a sync tomorrow at 10am", ThirdPartyToken: "tok"}
	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultSuccess, res.Status)

	ev := res.Result["event"].(models.CalendarEvent)
	require.Equal(t, "2026-08-01T10:30:00Z", ev.End)
}

func TestMatchEvent_LowConfidenceRefusesMatch(t *testing.T) {
	gw := newTestGateway(func(req models.CompleteRequest) (string, error) {
		return `{"matched_id":"some-id","confidence":0.2,"reason":"weak"}`, nil
	})
	cal := capability.NewMockCalendar()
	cal.Seed(models.CalendarEvent{ID: "some-id", Summary: "Standup", Start: "2026-08-01T09:00:00Z", End: "2026-08-01T09:15:00Z"})
	clk := clock.NewFixed(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	a := New(gw, cal, clk)

	sp := &models.Scratchpad{ThirdPartyToken: "tok"}
	_, _, err := a.matchEvent(context.Background(), sp, intent{EventQuery: "the standup"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Could not find a matching event")
}

func TestMatchEvent_IDNotInListRefusesMatch(t *testing.T) {
	gw := newTestGateway(func(req models.CompleteRequest) (string, error) {
		return `{"matched_id":"hallucinated-id","confidence":0.9,"reason":"strong"}`, nil
	})
	cal := capability.NewMockCalendar()
	cal.Seed(models.CalendarEvent{ID: "real-id", Summary: "Standup", Start: "2026-08-01T09:00:00Z", End: "2026-08-01T09:15:00Z"})
	clk := clock.NewFixed(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	a := New(gw, cal, clk)

	sp := &models.Scratchpad{ThirdPartyToken: "tok"}
	_, _, err := a.matchEvent(context.Background(), sp, intent{EventQuery: "the standup"})
	require.Error(t, err)
}

func TestMatchEvent_ConfidentMatchInListSucceeds(t *testing.T) {
	gw := newTestGateway(func(req models.CompleteRequest) (string, error) {
		return `{"matched_id":"real-id","confidence":0.8,"reason":"title matches"}`, nil
	})
	cal := capability.NewMockCalendar()
	cal.Seed(models.CalendarEvent{ID: "real-id", Summary: "Standup", Start: "2026-08-01T09:00:00Z", End: "2026-08-01T09:15:00Z"})
	clk := clock.NewFixed(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	a := New(gw, cal, clk)

	sp := &models.Scratchpad{ThirdPartyToken: "tok"}
	id, _, err := a.matchEvent(context.Background(), sp, intent{EventQuery: "the standup"})
	require.NoError(t, err)
	require.Equal(t, "real-id", id)
}

func TestHandleUpdate_UsesMatchedEventAndReportsSuccess(t *testing.T) {
	calls := 0
	gw := newTestGateway(func(req models.CompleteRequest) (string, error) {
		calls++
		if calls == 1 {
			return `{"action":"update","title":"Renamed sync","event_query":"the standup"}`, nil
		}
		return `{"matched_id":"real-id","confidence":0.9,"reason":"match"}`, nil
	})
	cal := capability.NewMockCalendar()
	cal.Seed(models.CalendarEvent{ID: "real-id", Summary: "Standup", Start: "2026-08-01T09:00:00Z", End: "2026-08-01T09:15:00Z"})
	clk := clock.NewFixed(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	a := New(gw, cal, clk)

	sp := &models.Scratchpad{UserRequest: "rename the standup", ThirdPartyToken: "tok"}
	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultSuccess, res.Status)
	require.Equal(t, fmt.Sprintf("📅 Successfully updated event '%s'.", "Renamed sync"), res.Message)
}
