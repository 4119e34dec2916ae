package capability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concierge/orchestrator/pkg/models"
)

// MockCalendar is an in-memory Calendar capability client.
type MockCalendar struct {
	mu     sync.RWMutex
	events map[string]models.CalendarEvent
}

func NewMockCalendar() *MockCalendar {
	return &MockCalendar{events: make(map[string]models.CalendarEvent)}
}

func (c *MockCalendar) Seed(ev models.CalendarEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	c.events[ev.ID] = ev
}

func (c *MockCalendar) Create(ctx context.Context, token string, event models.CalendarEvent) (models.CalendarEvent, error) {
	if token == "" {
		return models.CalendarEvent{}, models.NewError(models.ErrAuthMissing, "calendar.Create", "no third-party token supplied")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	event.ID = uuid.NewString()
	c.events[event.ID] = event
	return event, nil
}

func (c *MockCalendar) Update(ctx context.Context, token string, id string, patch models.CalendarPatch) (models.CalendarEvent, error) {
	if token == "" {
		return models.CalendarEvent{}, models.NewError(models.ErrAuthMissing, "calendar.Update", "no third-party token supplied")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.events[id]
	if !ok {
		return models.CalendarEvent{}, models.NewError(models.ErrProviderNotFound, "calendar.Update", "event not found")
	}
	if patch.Summary != nil {
		ev.Summary = *patch.Summary
	}
	if patch.Start != nil {
		ev.Start = *patch.Start
	}
	if patch.End != nil {
		ev.End = *patch.End
	}
	if patch.Location != nil {
		ev.Location = *patch.Location
	}
	if patch.Attendees != nil {
		ev.Attendees = patch.Attendees
	}
	c.events[id] = ev
	return ev, nil
}

func (c *MockCalendar) Delete(ctx context.Context, token string, id string) error {
	if token == "" {
		return models.NewError(models.ErrAuthMissing, "calendar.Delete", "no third-party token supplied")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[id]; !ok {
		return models.NewError(models.ErrProviderNotFound, "calendar.Delete", "event not found")
	}
	delete(c.events, id)
	return nil
}

func (c *MockCalendar) List(ctx context.Context, token string, q models.CalendarListQuery) ([]models.CalendarEvent, error) {
	if token == "" {
		return nil, models.NewError(models.ErrAuthMissing, "calendar.List", "no third-party token supplied")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	max := q.Max
	if max <= 0 {
		max = 50
	}
	var out []models.CalendarEvent
	for _, ev := range c.events {
		start, err := time.Parse(time.RFC3339, ev.Start)
		if err == nil {
			if !q.TimeMin.IsZero() && start.Before(q.TimeMin) {
				continue
			}
			if !q.TimeMax.IsZero() && start.After(q.TimeMax) {
				continue
			}
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (c *MockCalendar) Get(ctx context.Context, token string, id string) (models.CalendarEvent, error) {
	if token == "" {
		return models.CalendarEvent{}, models.NewError(models.ErrAuthMissing, "calendar.Get", "no third-party token supplied")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ev, ok := c.events[id]
	if !ok {
		return models.CalendarEvent{}, models.NewError(models.ErrProviderNotFound, "calendar.Get", "event not found")
	}
	return ev, nil
}

func (c *MockCalendar) Search(ctx context.Context, token string, q string, max int) ([]models.CalendarEvent, error) {
	if token == "" {
		return nil, models.NewError(models.ErrAuthMissing, "calendar.Search", "no third-party token supplied")
	}
	if max <= 0 {
		max = 5
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ql := strings.ToLower(q)
	var out []models.CalendarEvent
	for _, ev := range c.events {
		if strings.Contains(strings.ToLower(ev.Summary), ql) {
			out = append(out, ev)
			if len(out) >= max {
				break
			}
		}
	}
	return out, nil
}

// FindFreeSlots merges the busy intervals of every event held in the
// mock calendar and emits gaps >= duration_minutes, at most 10. The
// query's attendees are not consulted.
func (c *MockCalendar) FindFreeSlots(ctx context.Context, token string, q models.FreeBusyQuery) ([]models.FreeSlot, error) {
	if token == "" {
		return nil, models.NewError(models.ErrAuthMissing, "calendar.FindFreeSlots", "no third-party token supplied")
	}
	c.mu.RLock()
	busy := make([]models.FreeSlot, 0, len(c.events))
	for _, ev := range c.events {
		start, errS := time.Parse(time.RFC3339, ev.Start)
		end, errE := time.Parse(time.RFC3339, ev.End)
		if errS != nil || errE != nil {
			continue
		}
		if end.Before(q.TimeMin) || start.After(q.TimeMax) {
			continue
		}
		busy = append(busy, models.FreeSlot{Start: start, End: end})
	}
	c.mu.RUnlock()

	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	// merge overlapping/adjacent busy intervals
	merged := make([]models.FreeSlot, 0, len(busy))
	for _, b := range busy {
		if len(merged) > 0 && !b.Start.After(merged[len(merged)-1].End) {
			if b.End.After(merged[len(merged)-1].End) {
				merged[len(merged)-1].End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}

	dur := time.Duration(q.DurationMinutes) * time.Minute
	var slots []models.FreeSlot
	cursor := q.TimeMin
	for _, b := range merged {
		if b.Start.Sub(cursor) >= dur {
			slots = append(slots, models.FreeSlot{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if len(slots) >= 10 {
			return slots[:10], nil
		}
	}
	if q.TimeMax.Sub(cursor) >= dur {
		slots = append(slots, models.FreeSlot{Start: cursor, End: q.TimeMax})
	}
	if len(slots) > 10 {
		slots = slots[:10]
	}
	return slots, nil
}
