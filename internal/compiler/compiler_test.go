package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

func TestCompile_MultiAgentConcatenatesInFixedOrder(t *testing.T) {
	c := New(nil)
	sp := &models.Scratchpad{
		Plan: models.OrchestratorPlan{Agents: []models.AgentName{models.AgentCalendar, models.AgentNotes}},
		PartialResults: map[models.AgentName]models.AgentResult{
			models.AgentCalendar: models.SuccessResult("Event 'standup' created.", nil),
			models.AgentNotes:    models.SuccessResult("Note 'Standup' created.", nil),
		},
	}

	out, err := c.Compile(context.Background(), sp)
	require.NoError(t, err)
	require.True(t, indexOf(out, "Note") < indexOf(out, "Event"), "notes section must precede calendar section")
}

func TestCompile_MultiAgentSkipsErroredSlots(t *testing.T) {
	c := New(nil)
	sp := &models.Scratchpad{
		Plan: models.OrchestratorPlan{Agents: []models.AgentName{models.AgentCalendar, models.AgentNotes}},
		PartialResults: map[models.AgentName]models.AgentResult{
			models.AgentCalendar: models.ErrorResult("calendar failed"),
			models.AgentNotes:    models.SuccessResult("Note 'Standup' created.", nil),
		},
	}

	out, err := c.Compile(context.Background(), sp)
	require.NoError(t, err)
	require.Contains(t, out, "Note 'Standup' created.")
	require.NotContains(t, out, "calendar failed")
}

func TestCompile_SingleAgentUsesDedicatedEmailFormatter(t *testing.T) {
	c := New(nil)
	sp := &models.Scratchpad{
		Plan: models.OrchestratorPlan{Agents: []models.AgentName{models.AgentEmail}},
		PartialResults: map[models.AgentName]models.AgentResult{
			models.AgentEmail: models.SuccessResult("📧 Draft created.", map[string]any{
				"draft_id": "d1", "status": string(models.DraftPendingApproval),
			}),
		},
	}

	out, err := c.Compile(context.Background(), sp)
	require.NoError(t, err)
	require.Contains(t, out, "status: PendingApproval")
}

func TestCompile_SingleAgentSentEmailOmitsStatusLine(t *testing.T) {
	c := New(nil)
	sp := &models.Scratchpad{
		Plan: models.OrchestratorPlan{Agents: []models.AgentName{models.AgentEmail}},
		PartialResults: map[models.AgentName]models.AgentResult{
			models.AgentEmail: models.SuccessResult("✅ Email sent successfully.", map[string]any{
				"draft_id": "d1", "provider_message_id": "m1",
			}),
		},
	}

	out, err := c.Compile(context.Background(), sp)
	require.NoError(t, err)
	require.Equal(t, "✅ Email sent successfully.", out)
}

func TestCompile_NoAgentsReturnsFallbackMessage(t *testing.T) {
	c := New(nil)
	out, err := c.Compile(context.Background(), &models.Scratchpad{})
	require.NoError(t, err)
	require.Contains(t, out, "wasn't able to determine")
}

func TestCompile_SingleAgentFallsThroughToSynthesisWhenSlotMissing(t *testing.T) {
	g := llmgateway.New(llmgateway.StrategyFallback, 4)
	d := llmgateway.NewMockDriver("mock")
	d.FixedResponse = "synthesized answer"
	g.Register(d)
	c := New(g)

	sp := &models.Scratchpad{
		UserRequest: "what's on my plate today?",
		Plan:        models.OrchestratorPlan{Agents: []models.AgentName{models.AgentGeneral}},
		PartialResults: map[models.AgentName]models.AgentResult{
			models.AgentCalendar: models.SuccessResult("Event created.", nil),
		},
	}

	out, err := c.Compile(context.Background(), sp)
	require.NoError(t, err)
	require.Equal(t, "synthesized answer", out)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
