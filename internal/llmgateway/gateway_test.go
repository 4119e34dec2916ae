package llmgateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/pkg/models"
)

func TestComplete_FallsBackToSecondDriver(t *testing.T) {
	g := New(StrategyFallback, 4)

	failing := NewMockDriver("failing")
	failing.Respond = func(req models.CompleteRequest) (string, error) {
		return "", models.NewError(models.ErrProviderTransient, "test", "boom")
	}
	ok := NewMockDriver("ok")
	ok.FixedResponse = "hello"

	g.Register(failing)
	g.Register(ok)

	resp, err := g.Complete(context.Background(), models.CompleteRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.Equal(t, "ok", resp.Provider)
}

func TestComplete_NoDriversRegistered(t *testing.T) {
	g := New(StrategyFallback, 4)
	_, err := g.Complete(context.Background(), models.CompleteRequest{})
	require.Error(t, err)
	require.Equal(t, models.ErrProviderNotFound, models.KindOf(err))
}

func TestComplete_JSONModeStripsFencesAndValidates(t *testing.T) {
	g := New(StrategyFallback, 4)
	d := NewMockDriver("fenced")
	d.FixedResponse = "```json\n{\"ok\":true}\n```"
	g.Register(d)

	resp, err := g.Complete(context.Background(), models.CompleteRequest{
		ResponseFormat: models.FormatJSON,
	})
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, resp.Content)
}

func TestComplete_JSONModeRetriesThenFailsAsLLMParseError(t *testing.T) {
	g := New(StrategyFallback, 4)
	d := NewMockDriver("broken")
	d.FixedResponse = "not json at all"
	g.Register(d)

	_, err := g.Complete(context.Background(), models.CompleteRequest{
		ResponseFormat: models.FormatJSON,
	})
	require.Error(t, err)
	require.Equal(t, models.ErrLLMParse, models.KindOf(err))
}

func TestCompleteStream_FallsBackToBufferedWhenNotStreaming(t *testing.T) {
	g := New(StrategyFallback, 4)
	d := NewMockDriver("buffered")
	d.FixedResponse = "abc"
	g.Register(d)

	out := make(chan models.StreamChunk, 8)
	err := g.CompleteStream(context.Background(), models.CompleteRequest{Stream: true}, out)
	require.NoError(t, err)

	var concatenated string
	for chunk := range out {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		concatenated += chunk.Delta
	}
	require.Equal(t, "abc", concatenated)
}
