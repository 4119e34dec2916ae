package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/pkg/models"
)

func TestMatchesKeywordTrigger(t *testing.T) {
	require.True(t, matchesKeywordTrigger(models.AgentEmail, "please draft email to the team"))
	require.True(t, matchesKeywordTrigger(models.AgentCalendar, "can you schedule a meeting for friday"))
	require.False(t, matchesKeywordTrigger(models.AgentEmail, "what's the weather like today"))
}

func TestAppendKeywordFallback_UsesExprTriggers(t *testing.T) {
	agents := appendKeywordFallback(nil, "please summarize this pdf and draft an email")
	require.Contains(t, agents, models.AgentFile)
	require.Contains(t, agents, models.AgentEmail)
}
