package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/pkg/models"
)

func TestEnforceOrdering_FixesReversedPair(t *testing.T) {
	in := []models.AgentName{models.AgentEmail, models.AgentFile}
	out := enforceOrdering(in)
	require.Equal(t, []models.AgentName{models.AgentFile, models.AgentEmail}, out)
}

func TestEnforceOrdering_TransitiveChainIsRespected(t *testing.T) {
	// Calendar before Email before File, all reversed from precedence.
	in := []models.AgentName{models.AgentCalendar, models.AgentEmail, models.AgentFile}
	out := enforceOrdering(in)

	fi := indexOf(out, models.AgentFile)
	ei := indexOf(out, models.AgentEmail)
	ci := indexOf(out, models.AgentCalendar)
	require.True(t, fi < ei, "file must precede email")
	require.True(t, ei < ci, "email must precede calendar")
}

func TestEnforceOrdering_AlreadyOrderedIsUnchanged(t *testing.T) {
	in := []models.AgentName{models.AgentFile, models.AgentNotes, models.AgentEmail, models.AgentCalendar}
	out := enforceOrdering(in)
	require.Equal(t, in, out)
}

func TestEnforceOrdering_MissingAgentsAreIgnored(t *testing.T) {
	in := []models.AgentName{models.AgentGeneral}
	out := enforceOrdering(in)
	require.Equal(t, in, out)
}

func TestDedupePreserveOrder(t *testing.T) {
	in := []models.AgentName{models.AgentEmail, models.AgentFile, models.AgentEmail, models.AgentNotes, models.AgentFile}
	out := dedupePreserveOrder(in)
	require.Equal(t, []models.AgentName{models.AgentEmail, models.AgentFile, models.AgentNotes}, out)
}
