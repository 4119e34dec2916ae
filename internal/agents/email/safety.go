package email

import (
	"regexp"
	"strings"

	"github.com/concierge/orchestrator/pkg/models"
)

var (
	ssnRE        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	creditCardRE = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)
	passwordRE   = regexp.MustCompile(`(?i)(password|pwd|passwd)[\s:=]+[\w!@#$%^&*]+`)
	emailRE      = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

var toxicKeywords = []string{
	"hate", "kill", "die", "stupid", "idiot", "moron", "damn", "hell", "crap", "shut up",
}

var blockedDomains = []string{"example.com", "test.com", "spam.com"}

var spamWords = []string{"free", "click here", "act now", "$$", "winner"}

// runSafetyChecks runs the five independent checks against a draft and
// aggregates them into a single risk verdict.
func runSafetyChecks(d models.EmailDraft) models.SafetyCheckResult {
	checks := map[string]models.CheckResult{
		"pii":        checkPII(d.Body),
		"toxic":      checkToxic(d.Subject, d.Body),
		"recipients": checkRecipients(d.To, d.CC, d.BCC),
		"length":     checkLength(d.Body),
		"subject":    checkSubject(d.Subject),
	}

	failed := 0
	var allFlags []string
	var allRecs []string
	for name, c := range checks {
		if name != "length" && !c.Passed {
			failed++
		}
		allFlags = append(allFlags, c.Flags...)
		allRecs = append(allRecs, c.Recommendations...)
	}

	passed := checks["pii"].Passed && checks["toxic"].Passed && checks["recipients"].Passed && checks["subject"].Passed

	return models.SafetyCheckResult{
		Passed:          passed,
		PerCheck:        checks,
		Flags:           allFlags,
		Risk:            riskLevel(failed, len(allFlags)),
		Recommendations: allRecs,
	}
}

func riskLevel(failed, flagCount int) models.RiskLevel {
	switch {
	case failed >= 2 || flagCount >= 5:
		return models.RiskHigh
	case failed == 1 || flagCount >= 3:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func checkPII(body string) models.CheckResult {
	var flags []string
	if ssnRE.MatchString(body) {
		flags = append(flags, "possible SSN detected")
	}
	if creditCardRE.MatchString(body) {
		flags = append(flags, "possible credit card number detected")
	}
	if passwordRE.MatchString(body) {
		flags = append(flags, "possible password or credential detected")
	}
	res := models.CheckResult{Passed: len(flags) == 0, Flags: flags}
	if len(flags) > 0 {
		res.Recommendations = append(res.Recommendations, "remove sensitive personal information before sending")
	}
	return res
}

func checkToxic(subject, body string) models.CheckResult {
	var flags []string
	lowerBody := strings.ToLower(body)
	for _, kw := range toxicKeywords {
		if strings.Contains(lowerBody, kw) {
			flags = append(flags, "potentially inappropriate language: "+kw)
		}
	}
	if len(subject) > 10 && subject == strings.ToUpper(subject) && strings.ToLower(subject) != strings.ToUpper(subject) {
		flags = append(flags, "subject is in all caps")
	}
	res := models.CheckResult{Passed: len(flags) == 0, Flags: flags}
	if len(flags) > 0 {
		res.Recommendations = append(res.Recommendations, "review tone before sending")
	}
	return res
}

func checkRecipients(to, cc, bcc []string) models.CheckResult {
	var flags []string
	total := len(to) + len(cc) + len(bcc)

	for _, addr := range to {
		if !emailRE.MatchString(addr) {
			flags = append(flags, "invalid recipient address: "+addr)
			continue
		}
		if isBlockedDomain(addr) {
			flags = append(flags, "blocked recipient domain: "+addr)
		}
	}
	for _, addr := range append(append([]string{}, cc...), bcc...) {
		if !emailRE.MatchString(addr) {
			flags = append(flags, "invalid cc/bcc address: "+addr)
		} else if isBlockedDomain(addr) {
			flags = append(flags, "blocked cc/bcc domain: "+addr)
		}
	}
	if total > 10 {
		flags = append(flags, "more than 10 total recipients")
	}

	passed := true
	for _, f := range flags {
		if strings.HasPrefix(f, "invalid") || strings.HasPrefix(f, "blocked") {
			passed = false
			break
		}
	}
	res := models.CheckResult{Passed: passed, Flags: flags}
	if !passed {
		res.Recommendations = append(res.Recommendations, "fix or remove invalid/blocked recipients")
	}
	return res
}

func isBlockedDomain(addr string) bool {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(addr[at+1:])
	for _, b := range blockedDomains {
		if domain == b {
			return true
		}
	}
	return false
}

// checkLength is advisory only: it never fails the draft.
func checkLength(body string) models.CheckResult {
	var flags []string
	if len(body) < 10 {
		flags = append(flags, "body is very short")
	}
	if len(body) > 5000 {
		flags = append(flags, "body is very long")
	}
	return models.CheckResult{Passed: true, Flags: flags}
}

func checkSubject(subject string) models.CheckResult {
	trimmed := strings.TrimSpace(subject)
	if trimmed == "" {
		return models.CheckResult{
			Passed:          false,
			Flags:           []string{"subject is empty"},
			Recommendations: []string{"add a subject line"},
		}
	}
	var flags []string
	if len(trimmed) < 5 {
		flags = append(flags, "subject is very short")
	}
	if len(trimmed) > 100 {
		flags = append(flags, "subject is very long")
	}
	lower := strings.ToLower(trimmed)
	for _, w := range spamWords {
		if strings.Contains(lower, w) {
			flags = append(flags, "subject contains spam-like phrase: "+w)
		}
	}
	return models.CheckResult{Passed: true, Flags: flags}
}
