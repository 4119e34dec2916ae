package general

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/internal/clock"
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

func TestClassify(t *testing.T) {
	require.Equal(t, taskManagement, classify("add a task to call the bank"))
	require.Equal(t, planning, classify("help me plan my product roadmap"))
	require.Equal(t, questionAnswer, classify("what is the capital of France?"))
	require.Equal(t, generalAssist, classify("good morning"))
}

func TestProcess_DispatchesToClassifiedPrompt(t *testing.T) {
	var seenPrompt string
	g := newTestGateway(func(req models.CompleteRequest) (string, error) {
		seenPrompt = req.Messages[0].Content
		return "a structured task list", nil
	})
	a := New(g, clock.NewFixed(time.Date(2025, 10, 24, 0, 0, 0, 0, time.UTC)))

	res := a.Process(context.Background(), &models.Scratchpad{UserRequest: "add a task to review the budget"})
	require.Equal(t, models.ResultSuccess, res.Status)
	require.Contains(t, seenPrompt, "task management assistant")
	require.Equal(t, "task_management", res.Result["request_type"])
}

type blockingDriver struct{}

func (blockingDriver) Kind() string { return "blocking" }

func (blockingDriver) Complete(ctx context.Context, req models.CompleteRequest) (models.CompleteResponse, error) {
	<-ctx.Done()
	return models.CompleteResponse{}, models.NewError(models.ErrCancelled, "blocking.Complete", "cancelled")
}

func TestProcess_TimeoutYieldsSpecificError(t *testing.T) {
	g := llmgateway.New(llmgateway.StrategyFallback, 4)
	g.Register(blockingDriver{})
	a := New(g, clock.Real())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := a.Process(ctx, &models.Scratchpad{UserRequest: "what time is it?"})
	require.Equal(t, models.ResultError, res.Status)
	require.Contains(t, res.Message, "timed out")
}
