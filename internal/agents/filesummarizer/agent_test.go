package filesummarizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/internal/config"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

func newTestGateway(respond func(req models.CompleteRequest) (string, error)) *llmgateway.Gateway {
	g := llmgateway.New(llmgateway.StrategyFallback, 4)
	d := llmgateway.NewMockDriver("mock")
	d.Respond = respond
	g.Register(d)
	return g
}

func scriptedSummarizer() *llmgateway.Gateway {
	return newTestGateway(func(req models.CompleteRequest) (string, error) {
		prompt := req.Messages[0].Content
		switch {
		case strings.Contains(prompt, "Extract 3 to 5 key insights"):
			return `["insight one", "insight two", "insight three"]`, nil
		case strings.Contains(prompt, "chunk summaries"):
			return "the whole document is about quarterly revenue", nil
		case strings.Contains(prompt, "Summarize the following text"):
			return "a chunk summary", nil
		case strings.Contains(prompt, "Answer the question"):
			return "the answer is 42", nil
		default:
			return "ok", nil
		}
	})
}

func TestProcess_FullPipelineSucceeds(t *testing.T) {
	a := New(scriptedSummarizer(), config.FileSummarizerConfig{ChunkSize: 200, ChunkOverlap: 20, MapConcurrency: 2})
	text := strings.Repeat("Quarterly revenue grew steadily across every region. ", 80)

	sp := &models.Scratchpad{
		FileBlob: []byte(text),
		FileName: "report.txt",
		Plan:     models.OrchestratorPlan{AgentParams: map[models.AgentName]map[string]any{}},
	}

	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultSuccess, res.Status)
	require.Contains(t, res.Message, "Document Analysis Complete")

	meta, ok := res.Result["metadata"].(map[string]any)
	require.True(t, ok)
	numChunks := meta["num_chunks"].(int)
	require.Greater(t, numChunks, 0)
	require.LessOrEqual(t, meta["summary_length"].(int), meta["original_length"].(int))

	insights := res.Result["key_insights"].([]string)
	require.Len(t, insights, 3)
}

func TestProcess_WithQueryAnswersFromChunks(t *testing.T) {
	a := New(scriptedSummarizer(), config.FileSummarizerConfig{ChunkSize: 200, ChunkOverlap: 20, MapConcurrency: 2})
	text := strings.Repeat("Quarterly revenue grew steadily across every region. ", 80)

	sp := &models.Scratchpad{
		FileBlob: []byte(text),
		FileName: "report.txt",
		Plan: models.OrchestratorPlan{AgentParams: map[models.AgentName]map[string]any{
			models.AgentFile: {"query": "how did revenue grow?"},
		}},
	}

	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultSuccess, res.Status)
	require.Equal(t, "the answer is 42", res.Result["query_response"])
}

func TestProcess_EmptyFileFailsIngest(t *testing.T) {
	a := New(scriptedSummarizer(), config.FileSummarizerConfig{})
	sp := &models.Scratchpad{FileBlob: []byte{}, FileName: "empty.txt"}
	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultError, res.Status)
}

func TestProcess_OversizedFileFailsIngest(t *testing.T) {
	a := New(scriptedSummarizer(), config.FileSummarizerConfig{MaxFileBytes: 10})
	sp := &models.Scratchpad{FileBlob: []byte(strings.Repeat("a", 11)), FileName: "big.txt"}
	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultError, res.Status)
}

func TestProcess_UnsupportedExtensionFailsIngest(t *testing.T) {
	a := New(scriptedSummarizer(), config.FileSummarizerConfig{})
	sp := &models.Scratchpad{FileBlob: []byte("hello"), FileName: "virus.exe"}
	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultError, res.Status)
}

func TestProcess_CachedAnswerFastPathSkipsFullPipeline(t *testing.T) {
	calls := 0
	g := newTestGateway(func(req models.CompleteRequest) (string, error) {
		calls++
		return "Based on the prior summary, the answer is yes.", nil
	})
	a := New(g, config.FileSummarizerConfig{})

	priorSummary := strings.Repeat("This document contains a detailed summary of quarterly revenue analysis and key insights. ", 10)
	sp := &models.Scratchpad{
		UserRequest: "did revenue increase?",
		HistorySnapshot: []models.HistoryEntry{
			{Role: "assistant", Body: priorSummary},
		},
	}

	res := a.Process(context.Background(), sp)
	require.Equal(t, models.ResultSuccess, res.Status)
	require.Equal(t, 1, calls, "cached-answer path should make exactly one gateway call")
	require.True(t, res.Result["cached"].(bool))
}
