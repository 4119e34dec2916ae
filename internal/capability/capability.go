// Package capability defines the three External Capability Client
// interfaces: Mail, Calendar, Docs. Each is async,
// cancellable, and parameterized by an opaque third-party token. Exact
// vendor wire formats are out of scope; only the capability shape is
// load-bearing.
package capability

import (
	"context"

	"github.com/concierge/orchestrator/pkg/models"
)

// Mail is the capability-shaped client over an email provider.
type Mail interface {
	List(ctx context.Context, token string, q models.MailListQuery) ([]models.EmailSummary, error)
	Get(ctx context.Context, token string, id string) (models.EmailFull, error)
	Send(ctx context.Context, token string, draft models.EmailDraft) (models.SendResult, error)
}

// Calendar is the capability-shaped client over a calendar provider.
type Calendar interface {
	Create(ctx context.Context, token string, event models.CalendarEvent) (models.CalendarEvent, error)
	Update(ctx context.Context, token string, id string, patch models.CalendarPatch) (models.CalendarEvent, error)
	Delete(ctx context.Context, token string, id string) error
	List(ctx context.Context, token string, q models.CalendarListQuery) ([]models.CalendarEvent, error)
	Get(ctx context.Context, token string, id string) (models.CalendarEvent, error)
	Search(ctx context.Context, token string, q string, max int) ([]models.CalendarEvent, error)
	FindFreeSlots(ctx context.Context, token string, q models.FreeBusyQuery) ([]models.FreeSlot, error)
}

// Docs is the capability-shaped client over a documents provider.
type Docs interface {
	Create(ctx context.Context, token string, c models.DocCreate) (models.DocCreated, error)
	Get(ctx context.Context, token string, id string) (models.DocFull, error)
	Update(ctx context.Context, token string, id string, u models.DocUpdate) error
	List(ctx context.Context, token string) ([]models.DocRef, error)
	Search(ctx context.Context, token string, q string) ([]models.DocRef, error)
	Delete(ctx context.Context, token string, id string) error
	// SetShareable makes a best-effort request to mark a document
	// link-shareable (reader role). Failure here must never fail a
	// create.
	SetShareable(ctx context.Context, token string, id string) error
}
