// Package filesummarizer implements the File Summarizer Agent: a
// staged ingest -> extract -> chunk -> map-reduce-summarize -> (query)
// -> output pipeline.
package filesummarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/concierge/orchestrator/internal/config"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

const (
	minSubstantiveLength = 500
	qaChunkTruncate      = 500
)

var substantiveMarkers = []string{"summary", "document", "analysis", "key insights", "extracted"}
var interrogatives = []string{"what", "how", "why", "when", "where", "who", "which", "can you", "could you"}

type Agent struct {
	gateway *llmgateway.Gateway
	cfg     config.FileSummarizerConfig
}

func New(gw *llmgateway.Gateway, cfg config.FileSummarizerConfig) *Agent {
	return &Agent{gateway: gw, cfg: cfg}
}

func (a *Agent) Process(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	if cached, ok := a.tryCachedAnswer(ctx, sp); ok {
		return cached
	}

	state := &models.FileSummaryState{
		Blob:     sp.FileBlob,
		Name:     sp.FileName,
		Metadata: map[string]any{},
	}

	if err := a.ingest(state); err != nil {
		state.Errors = append(state.Errors, err.Error())
		return models.ErrorResult(fmt.Sprintf("📄 %s", err.Error()))
	}
	state.CurrentStep = models.StageIngested

	text, structure, err := extractText(state.Blob, state.DetectedType)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("📄 Could not extract text from %s: %v", state.Name, err))
	}
	state.ExtractedText = text
	state.DocumentStructure = structure
	state.CurrentStep = models.StageTextExtracted

	state.Chunks = chunkText(text, a.cfg.ChunkSize, a.cfg.ChunkOverlap, structure)
	if len(state.Chunks) == 0 {
		return models.ErrorResult("📄 No text to chunk — the extracted content was empty.")
	}
	state.CurrentStep = models.StageTextChunked

	summaryMode := summaryModeFor(sp)
	chunkSummaries, err := a.summarizeChunks(ctx, state.Chunks, summaryMode)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("📄 Summarization failed: %v", err))
	}
	state.ChunkSummaries = chunkSummaries

	docSummary, err := a.summarizeDocument(ctx, chunkSummaries, summaryMode, sp)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("📄 Document summary failed: %v", err))
	}
	state.FinalSummary = docSummary

	insights, err := a.extractKeyInsights(ctx, docSummary)
	if err != nil || len(insights) == 0 {
		insights = fallbackInsights(text)
	}
	state.KeyInsights = insights
	state.CurrentStep = models.StageSummariesGenerated

	query := queryFor(sp)
	if query != "" {
		answer, err := a.answerQuery(ctx, state.Chunks, chunkSummaries, query)
		if err == nil {
			state.QueryResponse = answer
			state.CurrentStep = models.StageQueryProcessed
		}
	}

	originalLen := len(text)
	summaryLen := len(docSummary)
	reduction := 0.0
	if originalLen > 0 {
		reduction = 100 * (1 - float64(summaryLen)/float64(originalLen))
	}
	state.Metadata = map[string]any{
		"original_length":      originalLen,
		"summary_length":       summaryLen,
		"reduction_percentage": reduction,
		"num_chunks":           len(state.Chunks),
		"num_insights":         len(insights),
	}
	state.CurrentStep = models.StageOutputFormatted
	state.Complete = true

	message := fmt.Sprintf("📄 **Document Analysis Complete**\n\n**Summary:** %s\n\n**Key Insights:** %s",
		docSummary, strings.Join(insights, "; "))
	result := map[string]any{
		"summary":      docSummary,
		"key_insights": insights,
		"metadata":     state.Metadata,
		"file_type":    state.DetectedType,
	}
	if state.QueryResponse != "" {
		result["query_response"] = state.QueryResponse
		message += fmt.Sprintf("\n\n**Answer:** %s", state.QueryResponse)
	}
	state.CurrentStep = models.StageComplete
	return models.SuccessResult(message, result)
}

func (a *Agent) ingest(state *models.FileSummaryState) error {
	maxBytes := a.cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	if len(state.Blob) == 0 {
		return fmt.Errorf("no file content provided")
	}
	if int64(len(state.Blob)) > maxBytes {
		return fmt.Errorf("file exceeds the %d byte limit", maxBytes)
	}
	ext := detectType(state.Name)
	if !supportedExtensions[ext] {
		return fmt.Errorf("unsupported file extension %q", ext)
	}
	state.DetectedType = ext
	return nil
}

func (a *Agent) summarizeChunks(ctx context.Context, chunks []models.Chunk, mode string) ([]string, error) {
	concurrency := a.cfg.MapConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	summaries := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summaries[i], errs[i] = a.summarizeChunk(ctx, text, mode)
		}(i, c.Text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (a *Agent) summarizeChunk(ctx context.Context, text, mode string) (string, error) {
	prompt := fmt.Sprintf(`Summarize the following text in %s style.

Text: %s`, mode, text)
	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *Agent) summarizeDocument(ctx context.Context, chunkSummaries []string, mode string, sp *models.Scratchpad) (string, error) {
	combined := strings.Join(chunkSummaries, "\n\n")
	prompt := fmt.Sprintf(`You are creating a %s summary of a document based on these chunk summaries.

Chunk summaries:
%s

User request: %s

Recent conversation:
%s

Write a single coherent %s-style summary of the whole document.`, mode, combined, sp.UserRequest, formatHistory(sp.HistorySnapshot), mode)

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *Agent) extractKeyInsights(ctx context.Context, documentSummary string) ([]string, error) {
	prompt := fmt.Sprintf(`Extract 3 to 5 key insights from this document summary. Respond with a strict JSON array of strings, nothing else.

Summary: %s`, documentSummary)
	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:    0.1,
		ResponseFormat: models.FormatJSON,
	})
	if err != nil {
		return nil, err
	}
	var insights []string
	if err := json.Unmarshal([]byte(resp.Content), &insights); err != nil {
		return nil, err
	}
	return insights, nil
}

func fallbackInsights(text string) []string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func (a *Agent) answerQuery(ctx context.Context, chunks []models.Chunk, summaries []string, query string) (string, error) {
	queryLower := strings.ToLower(query)
	tokens := strings.Fields(queryLower)

	var relevant []models.Chunk
	for _, c := range chunks {
		lower := strings.ToLower(c.Text)
		for _, t := range tokens {
			if t != "" && strings.Contains(lower, t) {
				relevant = append(relevant, c)
				break
			}
		}
	}
	if len(relevant) == 0 {
		relevant = chunks
	}
	if len(relevant) > 3 {
		relevant = relevant[:3]
	}

	var b strings.Builder
	for _, c := range relevant {
		t := c.Text
		if len(t) > qaChunkTruncate {
			t = t[:qaChunkTruncate]
		}
		b.WriteString(t)
		b.WriteString("\n\n")
	}

	prompt := fmt.Sprintf(`Answer the question using only the following document excerpts.

Excerpts:
%s

Question: %s`, b.String(), query)
	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// tryCachedAnswer scans the session's history for a prior substantive
// assistant message and, if this request looks like a follow-up
// question, asks the gateway to answer from it directly instead of
// re-running the full pipeline. The model must explicitly say there
// is insufficient information for this path to fall through.
func (a *Agent) tryCachedAnswer(ctx context.Context, sp *models.Scratchpad) (models.AgentResult, bool) {
	if !looksLikeQuestion(sp.UserRequest) {
		return models.AgentResult{}, false
	}
	prior := findSubstantivePrior(sp.HistorySnapshot)
	if prior == "" {
		return models.AgentResult{}, false
	}

	prompt := fmt.Sprintf(`A prior response summarized a document:

%s

The user is now asking: %s

If the prior summary contains enough information to answer, answer it directly.
If it does not, respond with exactly: insufficient information`, prior, sp.UserRequest)

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.1,
	})
	if err != nil {
		return models.AgentResult{}, false
	}
	if strings.Contains(strings.ToLower(resp.Content), "insufficient information") {
		return models.AgentResult{}, false
	}
	return models.SuccessResult(fmt.Sprintf("📄 %s", resp.Content), map[string]any{"query_response": resp.Content, "cached": true}), true
}

func looksLikeQuestion(request string) bool {
	if strings.Contains(request, "?") {
		return true
	}
	lower := strings.ToLower(request)
	for _, w := range interrogatives {
		if strings.HasPrefix(lower, w+" ") {
			return true
		}
	}
	return false
}

func findSubstantivePrior(history []models.HistoryEntry) string {
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		if e.Role != "assistant" && e.Role != "agent" {
			continue
		}
		if len(e.Body) < minSubstantiveLength {
			continue
		}
		lower := strings.ToLower(e.Body)
		for _, marker := range substantiveMarkers {
			if strings.Contains(lower, marker) {
				return e.Body
			}
		}
	}
	return ""
}

func summaryModeFor(sp *models.Scratchpad) string {
	if params, ok := sp.Plan.AgentParams[models.AgentFile]; ok {
		if mode, ok := params["summary_mode"].(string); ok && mode != "" {
			return mode
		}
	}
	return "brief"
}

func queryFor(sp *models.Scratchpad) string {
	if params, ok := sp.Plan.AgentParams[models.AgentFile]; ok {
		if q, ok := params["query"].(string); ok {
			return q
		}
	}
	return ""
}

func formatHistory(h []models.HistoryEntry) string {
	if len(h) == 0 {
		return "No previous conversation"
	}
	limit := 5
	if len(h) < limit {
		limit = len(h)
	}
	recent := h[len(h)-limit:]
	var b strings.Builder
	for _, e := range recent {
		fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Body)
	}
	return b.String()
}
