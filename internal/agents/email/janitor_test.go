package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/sessionstore"
	"github.com/concierge/orchestrator/pkg/models"
)

func TestJanitor_ExpiresOverdueApprovals(t *testing.T) {
	store, err := sessionstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	draft := models.EmailDraft{
		ID:        "draft-1",
		SessionID: "sess-1",
		To:        []string{"a@example.org"},
		Subject:   "Hi",
		Body:      "Body text here that is long enough.",
		Status:    models.DraftPendingApproval,
		CreatedAt: clk.Now(),
		UpdatedAt: clk.Now(),
	}
	require.NoError(t, store.SaveDraft(context.Background(), draft))

	clk.Advance(25 * time.Hour)
	j := NewJanitor(store, clk, time.Minute, 24*time.Hour, 30, nil)

	expired, err := j.expireOverdueApprovals(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	updated, err := store.GetDraft(context.Background(), "draft-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, models.DraftRejected, updated.Status)
	require.Equal(t, "approval window expired", updated.RejectFeedback)
}

func TestJanitor_LeavesRecentApprovalsAlone(t *testing.T) {
	store, err := sessionstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	draft := models.EmailDraft{
		ID:        "draft-2",
		SessionID: "sess-1",
		To:        []string{"a@example.org"},
		Subject:   "Hi",
		Body:      "Body text here that is long enough.",
		Status:    models.DraftPendingApproval,
		CreatedAt: clk.Now(),
		UpdatedAt: clk.Now(),
	}
	require.NoError(t, store.SaveDraft(context.Background(), draft))

	clk.Advance(1 * time.Hour)
	j := NewJanitor(store, clk, time.Minute, 24*time.Hour, 30, nil)

	expired, err := j.expireOverdueApprovals(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, expired)
}
