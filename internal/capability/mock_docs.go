package capability

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/pkg/models"
)

// MockDocs is an in-memory Docs capability client.
type MockDocs struct {
	mu    sync.RWMutex
	docs  map[string]models.DocFull
	clock clock.Clock
}

func NewMockDocs(c clock.Clock) *MockDocs {
	return &MockDocs{docs: make(map[string]models.DocFull), clock: c}
}

func (d *MockDocs) Create(ctx context.Context, token string, c models.DocCreate) (models.DocCreated, error) {
	if token == "" {
		return models.DocCreated{}, models.NewError(models.ErrAuthMissing, "docs.Create", "no third-party token supplied")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	url := "https://docs.concierge.local/" + id
	d.docs[id] = models.DocFull{
		ID:         id,
		Title:      c.Title,
		URL:        url,
		PlainText:  c.Content,
		ModifiedAt: d.clock.Now(),
	}
	return models.DocCreated{ID: id, URL: url}, nil
}

func (d *MockDocs) Get(ctx context.Context, token string, id string) (models.DocFull, error) {
	if token == "" {
		return models.DocFull{}, models.NewError(models.ErrAuthMissing, "docs.Get", "no third-party token supplied")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.docs[id]
	if !ok {
		return models.DocFull{}, models.NewError(models.ErrProviderNotFound, "docs.Get", "document not found")
	}
	return doc, nil
}

func (d *MockDocs) Update(ctx context.Context, token string, id string, u models.DocUpdate) error {
	if token == "" {
		return models.NewError(models.ErrAuthMissing, "docs.Update", "no third-party token supplied")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[id]
	if !ok {
		return models.NewError(models.ErrProviderNotFound, "docs.Update", "document not found")
	}
	if u.Title != nil {
		doc.Title = *u.Title
	}
	if u.Content != nil {
		if u.Append {
			doc.PlainText += "\n" + *u.Content
		} else {
			doc.PlainText = *u.Content
		}
	}
	doc.ModifiedAt = d.clock.Now()
	d.docs[id] = doc
	return nil
}

func (d *MockDocs) List(ctx context.Context, token string) ([]models.DocRef, error) {
	if token == "" {
		return nil, models.NewError(models.ErrAuthMissing, "docs.List", "no third-party token supplied")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.DocRef
	for _, doc := range d.docs {
		out = append(out, toDocRef(doc))
	}
	return out, nil
}

func (d *MockDocs) Search(ctx context.Context, token string, q string) ([]models.DocRef, error) {
	if token == "" {
		return nil, models.NewError(models.ErrAuthMissing, "docs.Search", "no third-party token supplied")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	ql := strings.ToLower(q)
	var out []models.DocRef
	for _, doc := range d.docs {
		if strings.Contains(strings.ToLower(doc.Title), ql) || strings.Contains(strings.ToLower(doc.PlainText), ql) {
			out = append(out, toDocRef(doc))
		}
	}
	return out, nil
}

func (d *MockDocs) Delete(ctx context.Context, token string, id string) error {
	if token == "" {
		return models.NewError(models.ErrAuthMissing, "docs.Delete", "no third-party token supplied")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.docs[id]; !ok {
		return models.NewError(models.ErrProviderNotFound, "docs.Delete", "document not found")
	}
	delete(d.docs, id) // soft-delete semantics are a provider-side concern; mock does a hard delete
	return nil
}

func (d *MockDocs) SetShareable(ctx context.Context, token string, id string) error {
	if token == "" {
		return models.NewError(models.ErrAuthMissing, "docs.SetShareable", "no third-party token supplied")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.docs[id]; !ok {
		return models.NewError(models.ErrProviderNotFound, "docs.SetShareable", "document not found")
	}
	return nil
}

func toDocRef(doc models.DocFull) models.DocRef {
	return models.DocRef{ProviderID: doc.ID, Title: doc.Title, URL: doc.URL, ModifiedAt: doc.ModifiedAt}
}
