package email

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/sessionstore"
)

// Janitor periodically expires overdue approval requests
// (PendingApproval -> Rejected) and purges old terminal-state drafts.
// It runs as a single ticker-driven goroutine that respects context
// cancellation.
type Janitor struct {
	store              sessionstore.Store
	clock              clock.Clock
	interval           time.Duration
	approvalTimeout    time.Duration
	draftRetentionDays int
	locks              *draftLocks
}

// NewJanitor wires the janitor to the same per-draft lock registry the
// Agent uses for its approve-then-send critical section (agent.Locks()),
// so an approval-expiry sweep can never race a concurrent human
// decision on the same draft.
func NewJanitor(store sessionstore.Store, c clock.Clock, interval time.Duration, approvalTimeout time.Duration, draftRetentionDays int, locks *draftLocks) *Janitor {
	if interval < time.Minute {
		interval = 10 * time.Minute
	}
	if approvalTimeout <= 0 {
		approvalTimeout = 24 * time.Hour
	}
	if locks == nil {
		locks = newDraftLocks()
	}
	return &Janitor{store: store, clock: c, interval: interval, approvalTimeout: approvalTimeout, draftRetentionDays: draftRetentionDays, locks: locks}
}

// Run blocks until ctx is cancelled, sweeping on each tick.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	expired, err := j.expireOverdueApprovals(ctx)
	if err != nil {
		log.Error().Err(err).Msg("email janitor: expiring approvals failed")
	} else if expired > 0 {
		log.Info().Int("count", expired).Msg("email janitor: expired overdue approvals")
	}

	purged, err := j.store.CleanupOldDrafts(ctx, j.draftRetentionDays)
	if err != nil {
		log.Error().Err(err).Msg("email janitor: cleanup failed")
	} else if purged > 0 {
		log.Info().Int("count", purged).Msg("email janitor: purged old drafts")
	}
}

func (j *Janitor) expireOverdueApprovals(ctx context.Context) (int, error) {
	pending, err := j.store.ListPendingApprovals(ctx)
	if err != nil {
		return 0, err
	}
	now := j.clock.Now()
	expired := 0
	for _, d := range pending {
		if d.UpdatedAt.IsZero() {
			continue
		}
		// ExpiresAt isn't persisted directly on EmailDraft; approval
		// requests expire approvalTimeout after entering
		// PendingApproval, which this treats as approvalTimeout after
		// the last update to that status.
		if now.Sub(d.UpdatedAt) < j.approvalTimeout {
			continue
		}
		if j.expireOne(ctx, d.ID, d.SessionID, now) {
			expired++
		}
	}
	return expired, nil
}

// expireOne re-reads and expires a single draft under its per-draft
// lock, so the sweep can't race a concurrent approve/send decision on
// the same draft.
func (j *Janitor) expireOne(ctx context.Context, draftID, sessionID string, now time.Time) bool {
	lock := j.locks.lock(draftID)
	lock.Lock()
	defer lock.Unlock()

	d, err := j.store.GetDraft(ctx, draftID, sessionID)
	if err != nil {
		log.Error().Err(err).Str("draft_id", draftID).Msg("email janitor: failed to re-read draft for expiry")
		return false
	}
	next, ok := applyTransition(d.Status, transitionTimeout)
	if !ok {
		// Status moved on (approved/rejected/sent) between the list
		// scan and the lock acquisition; nothing to expire.
		return false
	}
	d.Status = next
	d.UpdatedAt = now
	d.RejectFeedback = "approval window expired"
	if err := j.store.UpdateDraft(ctx, d); err != nil {
		log.Error().Err(err).Str("draft_id", d.ID).Msg("email janitor: failed to expire draft")
		return false
	}
	return true
}
