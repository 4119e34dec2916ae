package llmgateway

import (
	"context"

	"github.com/concierge/orchestrator/pkg/models"
)

// MockDriver is a deterministic, scriptable driver used by tests and
// by the local/offline run mode of cmd/orchestrator.
type MockDriver struct {
	kind string
	// Respond, if set, computes a response for a request. Otherwise
	// FixedResponse is returned.
	Respond       func(req models.CompleteRequest) (string, error)
	FixedResponse string
}

func NewMockDriver(kind string) *MockDriver {
	return &MockDriver{kind: kind}
}

func (d *MockDriver) Kind() string { return d.kind }

func (d *MockDriver) Complete(ctx context.Context, req models.CompleteRequest) (models.CompleteResponse, error) {
	if ctx.Err() != nil {
		return models.CompleteResponse{}, models.NewError(models.ErrCancelled, "mock.Complete", "cancelled")
	}
	content := d.FixedResponse
	if d.Respond != nil {
		out, err := d.Respond(req)
		if err != nil {
			return models.CompleteResponse{}, err
		}
		content = out
	}
	return models.CompleteResponse{
		Content:  content,
		Provider: d.kind,
		Model:    "mock",
		Usage:    models.TokenUsage{TotalTokens: len(content) / 4},
	}, nil
}
