// Package sessionstore implements the Session Store:
// hierarchical, session-scoped persistence for chat messages, notes,
// email drafts, and uploaded files, with per-artifact serialization and
// crash-safe writes.
package sessionstore

import (
	"context"

	"github.com/concierge/orchestrator/pkg/models"
)

// Store is the Session Store capability consumed by the orchestrator
// and the email agent. Implementations MAY choose alternate physical
// backends (file, SQL, blob store) as long as they preserve the
// invariants described below.
type Store interface {
	AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error
	LoadHistory(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)

	SaveDraft(ctx context.Context, draft models.EmailDraft) error
	GetDraft(ctx context.Context, draftID string, sessionID string) (models.EmailDraft, error)
	ListDrafts(ctx context.Context, sessionID string, status models.DraftStatus) ([]models.EmailDraft, error)
	UpdateDraft(ctx context.Context, draft models.EmailDraft) error
	DeleteDraft(ctx context.Context, sessionID string, draftID string) error
	ListPendingApprovals(ctx context.Context) ([]models.EmailDraft, error)
	CleanupOldDrafts(ctx context.Context, olderThanDays int) (int, error)

	SaveNote(ctx context.Context, sessionID string, note string) error
	ListFiles(ctx context.Context, sessionID string) ([]string, error)
	SaveFile(ctx context.Context, sessionID string, name string, blob []byte) error
}
