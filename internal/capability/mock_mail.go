package capability

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/pkg/models"
)

// MockMail is an in-memory Mail capability client for tests and local
// runs.
type MockMail struct {
	mu       sync.RWMutex
	messages map[string]models.EmailFull
	clock    clock.Clock
}

func NewMockMail(c clock.Clock) *MockMail {
	return &MockMail{messages: make(map[string]models.EmailFull), clock: c}
}

// Seed adds a message directly, for test fixtures.
func (m *MockMail) Seed(msg models.EmailFull) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = msg
}

func (m *MockMail) List(ctx context.Context, token string, q models.MailListQuery) ([]models.EmailSummary, error) {
	if token == "" {
		return nil, models.NewError(models.ErrAuthMissing, "mail.List", "no third-party token supplied")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	max := q.Max
	if max <= 0 || max > 100 {
		max = 100
	}
	query := strings.ToLower(strings.TrimSpace(q.Query))

	var out []models.EmailSummary
	for _, msg := range m.messages {
		if query != "" && !strings.Contains(strings.ToLower(msg.Subject+" "+msg.Body), query) {
			continue
		}
		out = append(out, models.EmailSummary{
			ID:       msg.ID,
			ThreadID: msg.ThreadID,
			From:     msg.From,
			Subject:  msg.Subject,
			Snippet:  truncate(msg.Body, 100),
			Date:     msg.Date,
			IsUnread: msg.IsUnread,
		})
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

func (m *MockMail) Get(ctx context.Context, token string, id string) (models.EmailFull, error) {
	if token == "" {
		return models.EmailFull{}, models.NewError(models.ErrAuthMissing, "mail.Get", "no third-party token supplied")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return models.EmailFull{}, models.NewError(models.ErrProviderNotFound, "mail.Get", "message not found")
	}
	return msg, nil
}

func (m *MockMail) Send(ctx context.Context, token string, draft models.EmailDraft) (models.SendResult, error) {
	if token == "" {
		return models.SendResult{}, models.NewError(models.ErrAuthMissing, "mail.Send", "no third-party token supplied")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.messages[id] = models.EmailFull{
		ID:      id,
		From:    "me@concierge.local",
		To:      draft.To,
		CC:      draft.CC,
		Subject: draft.Subject,
		Body:    draft.Body,
		Date:    m.clock.Now(),
	}
	return models.SendResult{ProviderMessageID: id, ProviderThreadID: uuid.NewString()}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
