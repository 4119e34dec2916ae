// Package llmgateway implements the single LLM Gateway capability:
// complete(messages, temperature, response_format, timeout, stream)
// -> text | stream, with the vendor hidden behind a pluggable driver
// registry.
package llmgateway

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/pkg/models"
)

// Strategy selects how the gateway orders its registered drivers when
// more than one is registered.
type Strategy string

const (
	StrategyFallback        Strategy = "fallback"
	StrategyRoundRobin      Strategy = "round_robin"
	StrategyLatencyOptimized Strategy = "latency_optimized"
)

// Gateway is the LLM Gateway. It hides the vendor behind one
// capability while internally consulting an ordered set of drivers.
type Gateway struct {
	mu       sync.RWMutex
	drivers  map[string]Driver
	order    []string // registration order, used as fallback priority
	latency  map[string]float64 // EMA latency per driver, ms
	rrCursor int

	strategy Strategy

	// sem bounds global concurrency of outstanding LLM calls; excess
	// callers queue and may be cancelled while queued.
	sem chan struct{}
}

const emaAlpha = 0.2

// New creates a Gateway with the given strategy and concurrency cap.
func New(strategy Strategy, maxConcurrency int) *Gateway {
	if maxConcurrency <= 0 {
		maxConcurrency = 16
	}
	return &Gateway{
		drivers:  make(map[string]Driver),
		latency:  make(map[string]float64),
		strategy: strategy,
		sem:      make(chan struct{}, maxConcurrency),
	}
}

// Register adds a driver to the registry.
func (g *Gateway) Register(d Driver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	kind := d.Kind()
	if _, exists := g.drivers[kind]; !exists {
		g.order = append(g.order, kind)
	}
	g.drivers[kind] = d
}

func (g *Gateway) orderedDrivers() []Driver {
	g.mu.Lock()
	defer g.mu.Unlock()

	kinds := make([]string, len(g.order))
	copy(kinds, g.order)

	switch g.strategy {
	case StrategyLatencyOptimized:
		sort.SliceStable(kinds, func(i, j int) bool {
			return g.latency[kinds[i]] < g.latency[kinds[j]]
		})
	case StrategyRoundRobin:
		if len(kinds) > 0 {
			n := g.rrCursor % len(kinds)
			kinds = append(kinds[n:], kinds[:n]...)
			g.rrCursor++
		}
	case StrategyFallback:
		// registration order
	}

	out := make([]Driver, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, g.drivers[k])
	}
	return out
}

func (g *Gateway) recordLatency(kind string, ms float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev, ok := g.latency[kind]
	if !ok {
		g.latency[kind] = ms
		return
	}
	g.latency[kind] = emaAlpha*ms + (1-emaAlpha)*prev
}

// acquire blocks until a concurrency slot is free or ctx is done.
func (g *Gateway) acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return models.NewError(models.ErrCancelled, "llmgateway.acquire", "request cancelled while queued")
	}
}

func (g *Gateway) release() { <-g.sem }

// Complete is the single LLM Gateway operation. It is cancellable: on
// ctx cancellation the caller sees ErrCancelled without side effects.
func (g *Gateway) Complete(ctx context.Context, req models.CompleteRequest) (models.CompleteResponse, error) {
	if err := g.acquire(ctx); err != nil {
		return models.CompleteResponse{}, err
	}
	defer g.release()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	drivers := g.orderedDrivers()
	if len(drivers) == 0 {
		return models.CompleteResponse{}, models.NewError(models.ErrProviderNotFound, "llmgateway.Complete", "no LLM driver registered")
	}

	var lastErr error
	for i, d := range drivers {
		if ctx.Err() != nil {
			return models.CompleteResponse{}, models.NewError(models.ErrCancelled, "llmgateway.Complete", "request cancelled")
		}

		start := time.Now()
		resp, err := d.Complete(ctx, req)
		elapsed := time.Since(start)
		g.recordLatency(d.Kind(), float64(elapsed.Milliseconds()))

		if err == nil {
			resp.LatencyMs = elapsed.Milliseconds()
			if req.ResponseFormat == models.FormatJSON {
				cleaned, jerr := sanitizeJSON(resp.Content)
				if jerr != nil {
					// One retry with a stricter system prompt.
					retried, rerr := g.retryStrictJSON(ctx, d, req)
					if rerr == nil {
						return retried, nil
					}
					return models.CompleteResponse{}, models.WrapError(models.ErrLLMParse, "llmgateway.Complete", "model did not return valid JSON after retry", rerr)
				}
				resp.Content = cleaned
			}
			return resp, nil
		}

		lastErr = err
		log.Warn().Str("driver", d.Kind()).Err(err).Int("attempt", i+1).Msg("LLM driver failed, trying next")
	}

	if ctx.Err() != nil {
		return models.CompleteResponse{}, models.WrapError(models.ErrCancelled, "llmgateway.Complete", "request cancelled", lastErr)
	}
	return models.CompleteResponse{}, models.WrapError(models.ErrProviderTransient, "llmgateway.Complete", "all drivers failed", lastErr)
}

func (g *Gateway) retryStrictJSON(ctx context.Context, d Driver, req models.CompleteRequest) (models.CompleteResponse, error) {
	strict := req
	strict.Messages = append([]models.Message{
		{Role: models.RoleSystem, Content: "Return ONLY a single valid JSON document. No prose, no Markdown fences."},
	}, req.Messages...)

	resp, err := d.Complete(ctx, strict)
	if err != nil {
		return models.CompleteResponse{}, err
	}
	cleaned, jerr := sanitizeJSON(resp.Content)
	if jerr != nil {
		return models.CompleteResponse{}, jerr
	}
	resp.Content = cleaned
	return resp, nil
}

// CompleteStream delivers token deltas on out; on driver or ctx failure
// it closes out after sending a final chunk carrying Err. If the
// selected driver does not implement StreamingDriver, it falls back to
// a single buffered Complete call delivered as one chunk — the
// streamed result is a byte-accurate concatenation equal to the
// non-streaming result.
func (g *Gateway) CompleteStream(ctx context.Context, req models.CompleteRequest, out chan<- models.StreamChunk) error {
	defer close(out)

	if err := g.acquire(ctx); err != nil {
		out <- models.StreamChunk{Err: err, Done: true}
		return err
	}
	defer g.release()

	drivers := g.orderedDrivers()
	if len(drivers) == 0 {
		err := models.NewError(models.ErrProviderNotFound, "llmgateway.CompleteStream", "no LLM driver registered")
		out <- models.StreamChunk{Err: err, Done: true}
		return err
	}

	d := drivers[0]
	if sd, ok := d.(StreamingDriver); ok {
		if err := sd.CompleteStream(ctx, req, out); err != nil {
			out <- models.StreamChunk{Err: err, Done: true}
			return err
		}
		return nil
	}

	resp, err := d.Complete(ctx, req)
	if err != nil {
		out <- models.StreamChunk{Err: err, Done: true}
		return err
	}
	out <- models.StreamChunk{Delta: resp.Content}
	out <- models.StreamChunk{Done: true}
	return nil
}

// sanitizeJSON strips Markdown code fences before the caller attempts
// to json.Unmarshal the result. It only checks that the text starts
// with '{' or '['; real parsing is the caller's responsibility.
func sanitizeJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if !looksLikeJSON(s) {
		return "", models.NewError(models.ErrLLMParse, "sanitizeJSON", "response is not a JSON document")
	}
	return s, nil
}

func looksLikeJSON(s string) bool {
	b := bytes.TrimSpace([]byte(s))
	if len(b) == 0 {
		return false
	}
	return b[0] == '{' || b[0] == '['
}
