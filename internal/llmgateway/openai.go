package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/concierge/orchestrator/pkg/models"
)

// OpenAIDriver talks to any OpenAI-Chat-Completions-compatible HTTP
// endpoint (OpenAI itself, Azure OpenAI, or a LiteLLM/Ollama gateway
// configured in compatibility mode).
type OpenAIDriver struct {
	APIKey     string
	BaseURL    string // e.g. https://api.openai.com/v1
	Model      string
	HTTPClient *http.Client
}

func NewOpenAIDriver(apiKey, baseURL, model string) *OpenAIDriver {
	return &OpenAIDriver{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (d *OpenAIDriver) Kind() string { return "openai" }

type chatCompletionRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	Temperature    float64                `json:"temperature"`
	ResponseFormat map[string]string      `json:"response_format,omitempty"`
	Stream         bool                   `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (d *OpenAIDriver) Complete(ctx context.Context, req models.CompleteRequest) (models.CompleteResponse, error) {
	body := chatCompletionRequest{
		Model:       d.Model,
		Temperature: req.Temperature,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.ResponseFormat == models.FormatJSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return models.CompleteResponse{}, models.WrapError(models.ErrProviderPermanent, "openai.Complete", "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return models.CompleteResponse{}, models.WrapError(models.ErrProviderPermanent, "openai.Complete", "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.APIKey)

	resp, err := d.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return models.CompleteResponse{}, models.NewError(models.ErrCancelled, "openai.Complete", "request cancelled")
		}
		return models.CompleteResponse{}, models.WrapError(models.ErrProviderTransient, "openai.Complete", "transport error", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.CompleteResponse{}, models.NewError(models.ErrProviderRateLimited, "openai.Complete", "rate limited")
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return models.CompleteResponse{}, models.NewError(models.ErrAuthExpired, "openai.Complete", "invalid or expired API key")
	}
	if resp.StatusCode >= 500 {
		return models.CompleteResponse{}, models.NewError(models.ErrProviderTransient, "openai.Complete", fmt.Sprintf("server error: %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return models.CompleteResponse{}, models.NewError(models.ErrProviderPermanent, "openai.Complete", fmt.Sprintf("client error: %d: %s", resp.StatusCode, string(data)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return models.CompleteResponse{}, models.WrapError(models.ErrProviderPermanent, "openai.Complete", "failed to parse response", err)
	}
	if len(parsed.Choices) == 0 {
		return models.CompleteResponse{}, models.NewError(models.ErrProviderPermanent, "openai.Complete", "no choices returned")
	}

	return models.CompleteResponse{
		Content:  parsed.Choices[0].Message.Content,
		Provider: d.Kind(),
		Model:    d.Model,
		Usage: models.TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
	}, nil
}
