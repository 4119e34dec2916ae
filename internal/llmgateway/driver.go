package llmgateway

import (
	"context"

	"github.com/concierge/orchestrator/pkg/models"
)

// Driver is a pluggable LLM vendor backend, selected by Kind and
// registered in the Gateway's driver registry, backing the single
// complete() capability the rest of the system calls.
type Driver interface {
	Kind() string
	Complete(ctx context.Context, req models.CompleteRequest) (models.CompleteResponse, error)
}

// StreamingDriver is an optional capability a Driver may additionally
// implement to support token-by-token delivery.
type StreamingDriver interface {
	CompleteStream(ctx context.Context, req models.CompleteRequest, out chan<- models.StreamChunk) error
}
