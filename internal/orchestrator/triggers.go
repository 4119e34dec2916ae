package orchestrator

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/concierge/orchestrator/pkg/models"
)

// matchesKeywordTrigger evaluates an agent's keyword set as a single
// expr-lang boolean expression against the (already lower-cased)
// request text.
func matchesKeywordTrigger(name models.AgentName, lowerRequest string) bool {
	keywords := keywordMap[name]
	if len(keywords) == 0 {
		return false
	}
	clauses := make([]string, len(keywords))
	for i, kw := range keywords {
		clauses[i] = fmt.Sprintf("contains(request, %q)", kw)
	}
	code := strings.Join(clauses, " or ")

	env := map[string]any{
		"request":  lowerRequest,
		"contains": strings.Contains,
	}
	out, err := expr.Eval(code, env)
	if err != nil {
		return false
	}
	matched, _ := out.(bool)
	return matched
}
