package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/pkg/models"
)

func TestMockCalendar_FindFreeSlots_MergesBusyAndEmitsGaps(t *testing.T) {
	c := NewMockCalendar()
	base := time.Date(2025, 10, 28, 9, 0, 0, 0, time.UTC)

	c.Seed(models.CalendarEvent{
		Summary: "busy1",
		Start:   base.Format(time.RFC3339),
		End:     base.Add(30 * time.Minute).Format(time.RFC3339),
	})
	c.Seed(models.CalendarEvent{
		Summary: "busy2",
		Start:   base.Add(2 * time.Hour).Format(time.RFC3339),
		End:     base.Add(2*time.Hour + 30*time.Minute).Format(time.RFC3339),
	})

	slots, err := c.FindFreeSlots(context.Background(), "tok", models.FreeBusyQuery{
		TimeMin:         base,
		TimeMax:         base.Add(3 * time.Hour),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	// first gap should start right after busy1 ends
	require.Equal(t, base.Add(30*time.Minute), slots[0].Start)
}

func TestMockCalendar_RequiresToken(t *testing.T) {
	c := NewMockCalendar()
	_, err := c.List(context.Background(), "", models.CalendarListQuery{})
	require.Error(t, err)
	require.Equal(t, models.ErrAuthMissing, models.KindOf(err))
}

func TestMockCalendar_UpdateUnknownEventReturnsNotFound(t *testing.T) {
	c := NewMockCalendar()
	_, err := c.Update(context.Background(), "tok", "missing", models.CalendarPatch{})
	require.Error(t, err)
	require.Equal(t, models.ErrProviderNotFound, models.KindOf(err))
}
