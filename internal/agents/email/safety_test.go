package email

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/pkg/models"
)

func draftWith(body string) models.EmailDraft {
	return models.EmailDraft{
		Subject: "Project update",
		Body:    body,
		To:      []string{"alice@example.org"},
	}
}

func TestRunSafetyChecks_CleanDraftPasses(t *testing.T) {
	d := draftWith("Hi Alice, here is the weekly status report. Everything is on track.")
	res := runSafetyChecks(d)
	require.True(t, res.Passed)
	require.Equal(t, models.RiskLow, res.Risk)
	require.Empty(t, res.Flags)
}

func TestRunSafetyChecks_PIIFailsDraft(t *testing.T) {
	d := draftWith("My SSN is 123-45-6789, please file it.")
	res := runSafetyChecks(d)
	require.False(t, res.Passed)
	require.False(t, res.PerCheck["pii"].Passed)
	require.Contains(t, res.Flags, "possible SSN detected")
}

func TestRunSafetyChecks_EmptySubjectFails(t *testing.T) {
	d := draftWith("Some reasonably long message body for testing.")
	d.Subject = "   "
	res := runSafetyChecks(d)
	require.False(t, res.Passed)
	require.False(t, res.PerCheck["subject"].Passed)
}

func TestRunSafetyChecks_LengthNeverFailsDraft(t *testing.T) {
	d := draftWith("hi")
	res := runSafetyChecks(d)
	require.True(t, res.PerCheck["length"].Passed)
	require.Contains(t, res.PerCheck["length"].Flags, "body is very short")
}

func TestRunSafetyChecks_InvalidRecipientFailsDraft(t *testing.T) {
	d := draftWith("Hello, this is a normal message with enough length.")
	d.To = []string{"not-an-email"}
	res := runSafetyChecks(d)
	require.False(t, res.Passed)
	require.False(t, res.PerCheck["recipients"].Passed)
}

func TestRiskLevel_Thresholds(t *testing.T) {
	require.Equal(t, models.RiskLow, riskLevel(0, 0))
	require.Equal(t, models.RiskLow, riskLevel(0, 2))
	require.Equal(t, models.RiskMedium, riskLevel(1, 0))
	require.Equal(t, models.RiskMedium, riskLevel(0, 3))
	require.Equal(t, models.RiskHigh, riskLevel(2, 0))
	require.Equal(t, models.RiskHigh, riskLevel(0, 5))
}

func TestCheckRecipients_BlockedDomainFails(t *testing.T) {
	res := checkRecipients([]string{"user@spam.com"}, nil, nil)
	require.False(t, res.Passed)
	require.Contains(t, res.Flags[0], "blocked recipient domain")
}

func TestCheckRecipients_TooManyRecipientsFlagsButDoesNotFail(t *testing.T) {
	to := make([]string, 11)
	for i := range to {
		to[i] = "person@example.org"
	}
	res := checkRecipients(to, nil, nil)
	require.True(t, res.Passed)
	require.Contains(t, res.Flags, "more than 10 total recipients")
}
