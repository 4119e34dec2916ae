package email

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/internal/capability"
	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/config"
	"github.com/concierge/orchestrator/internal/sessionstore"
	"github.com/concierge/orchestrator/pkg/models"
)

func newTestAgent(t *testing.T) (*Agent, sessionstore.Store) {
	t.Helper()
	store, err := sessionstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	mail := capability.NewMockMail(clock.Real())
	a := New(nil, mail, store, clock.Real(), config.EmailConfig{SendMaxRetries: 3, SendRetryDelay: time.Millisecond})
	return a, store
}

// TestConcurrentSend_AtMostOnce drives the "send at-most-once" testable
// property: two concurrent send attempts on the same Approved
// draft must yield exactly one Sent outcome and one terminal-state error.
func TestConcurrentSend_AtMostOnce(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	draft := models.EmailDraft{
		ID:        uuid.NewString(),
		SessionID: "s1",
		To:        []string{"bob@example.com"},
		Subject:   "Q4 review",
		Body:      "Let's sync on Q4.",
		Status:    models.DraftApproved,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveDraft(ctx, draft))

	sp := &models.Scratchpad{
		SessionID:       "s1",
		UserRequest:     "send it",
		ThirdPartyToken: "tok",
		Plan:            models.OrchestratorPlan{AgentParams: map[models.AgentName]map[string]any{models.AgentEmail: {"draft_id": draft.ID}}},
	}

	const n = 8
	var successes int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			res := a.handleSend(ctx, sp)
			if res.Status == models.ResultSuccess {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, successes, "exactly one concurrent send must succeed")

	final, err := store.GetDraft(ctx, draft.ID, "s1")
	require.NoError(t, err)
	require.Equal(t, models.DraftSent, final.Status)
	require.NotEmpty(t, final.ProviderMessageID)
	require.NotNil(t, final.SentAt)
}

// TestConcurrentApprove_ExactlyOneWins exercises the approval-path race:
// two concurrent decisions on the same PendingApproval draft must leave
// it in exactly one terminal-for-this-round status.
func TestConcurrentApprove_ExactlyOneWins(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	draft := models.EmailDraft{
		ID:        uuid.NewString(),
		SessionID: "s1",
		To:        []string{"bob@example.com"},
		Subject:   "Q4 review",
		Body:      "Let's sync on Q4.",
		Status:    models.DraftPendingApproval,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveDraft(ctx, draft))

	sp := &models.Scratchpad{
		SessionID:   "s1",
		UserRequest: "approve it",
		Plan:        models.OrchestratorPlan{AgentParams: map[models.AgentName]map[string]any{models.AgentEmail: {"draft_id": draft.ID}}},
	}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			a.handleApprove(ctx, sp)
		}()
	}
	wg.Wait()

	final, err := store.GetDraft(ctx, draft.ID, "s1")
	require.NoError(t, err)
	require.Equal(t, models.DraftApproved, final.Status)
	require.NotNil(t, final.ApprovedAt)
}
