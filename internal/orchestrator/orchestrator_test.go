package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/internal/agent"
	"github.com/concierge/orchestrator/internal/compiler"
	"github.com/concierge/orchestrator/internal/config"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/internal/sessionstore"
	"github.com/concierge/orchestrator/pkg/models"
)

// stubAgent records the scratchpad it saw and returns a fixed result.
type stubAgent struct {
	result models.AgentResult
	seen   *models.Scratchpad
}

func (s *stubAgent) Process(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	s.seen = sp
	return s.result
}

func testTimeoutsFromConfig() config.TimeoutConfig {
	return config.TimeoutConfig{
		LLMCall: testTimeout, Calendar: testTimeout, Email: testTimeout, General: testTimeout, File: testTimeout, OuterRequest: testTimeout,
	}
}

const testTimeout = 5000000000 // 5s, expressed in ns to avoid importing time just for this

func TestHandle_PlansAndDispatchesSingleAgentAndPersistsTranscript(t *testing.T) {
	gw := llmgateway.New(llmgateway.StrategyFallback, 4)
	gw.Register(&llmgateway.MockDriver{
		FixedResponse: `{"agents_to_invoke":["general_agent"],"reasoning":"small talk","workflow_type":"single_agent","agent_actions":{},"confidence":0.9}`,
	})

	stub := &stubAgent{result: models.SuccessResult("Hello there!", nil)}
	registry := agent.NewRegistry(map[models.AgentName]agent.Agent{
		models.AgentGeneral: stub,
	})

	store, err := sessionstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	comp := compiler.New(gw)
	orch := New(gw, registry, store, comp, testTimeoutsFromConfig())

	resp, err := orch.Handle(context.Background(), Request{
		SessionID:       "sess-1",
		UserRequest:     "hi there",
		ThirdPartyToken: "tok",
	})
	require.NoError(t, err)
	require.Equal(t, "Hello there!", resp.Text)
	require.NotNil(t, stub.seen)
	require.Equal(t, "tok", stub.seen.ThirdPartyToken)

	history, err := store.LoadHistory(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.SenderUser, history[0].Sender)
	require.Equal(t, models.SenderAgent, history[1].Sender)
}

func TestHandle_KeywordFallbackAddsFileAgentAheadOfEmail(t *testing.T) {
	gw := llmgateway.New(llmgateway.StrategyFallback, 4)
	gw.Register(&llmgateway.MockDriver{
		FixedResponse: `{"agents_to_invoke":["email_agent"],"reasoning":"send an email","workflow_type":"multi_agent","agent_actions":{},"confidence":0.9}`,
	})

	email := &stubAgent{result: models.SuccessResult("Drafted.", nil)}
	file := &stubAgent{result: models.SuccessResult("Summarized.", nil)}
	registry := agent.NewRegistry(map[models.AgentName]agent.Agent{
		models.AgentEmail: email,
		models.AgentFile:  file,
	})

	store, err := sessionstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	comp := compiler.New(gw)
	orch := New(gw, registry, store, comp, testTimeoutsFromConfig())

	_, err = orch.Handle(context.Background(), Request{
		SessionID:       "sess-2",
		UserRequest:     "summarize this attached file and email the summary",
		ThirdPartyToken: "tok",
	})
	require.NoError(t, err)
	require.NotNil(t, file.seen, "keyword fallback should have added the file agent")
	require.NotNil(t, email.seen)
	require.Equal(t, []models.AgentName{models.AgentFile, models.AgentEmail}, email.seen.Plan.Agents)
}
