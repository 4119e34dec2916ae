// Package compiler implements the Response Compiler: it turns the
// scratchpad's per-agent results into the single string returned to
// the user.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

// multiAgentOrder is the fixed concatenation order for the multi-agent
// regime.
var multiAgentOrder = []models.AgentName{
	models.AgentNotes, models.AgentEmail, models.AgentCalendar, models.AgentFile, models.AgentGeneral,
}

type Compiler struct {
	gateway *llmgateway.Gateway
}

func New(gw *llmgateway.Gateway) *Compiler {
	return &Compiler{gateway: gw}
}

// Compile builds the final response string from the scratchpad's
// accumulated partial results.
func (c *Compiler) Compile(ctx context.Context, sp *models.Scratchpad) (string, error) {
	invoked := sp.Plan.Agents
	if len(invoked) >= 2 {
		return c.compileMultiAgent(sp), nil
	}
	if len(invoked) == 1 {
		return c.compileSingleAgent(ctx, invoked[0], sp)
	}
	return "I wasn't able to determine an action to take for that request.", nil
}

func (c *Compiler) compileMultiAgent(sp *models.Scratchpad) string {
	var sections []string
	for _, name := range multiAgentOrder {
		res, ok := sp.PartialResults[name]
		if !ok || res.Status != models.ResultSuccess {
			continue
		}
		sections = append(sections, formatAgentSection(name, res))
	}
	if len(sections) == 0 {
		return "I wasn't able to complete that request — please see the details above."
	}
	return strings.Join(sections, "\n\n")
}

func formatAgentSection(name models.AgentName, res models.AgentResult) string {
	switch name {
	case models.AgentEmail:
		return formatEmail(res)
	default:
		return res.Message
	}
}

func (c *Compiler) compileSingleAgent(ctx context.Context, name models.AgentName, sp *models.Scratchpad) (string, error) {
	res, ok := sp.PartialResults[name]
	if !ok {
		return c.synthesize(ctx, sp)
	}
	if res.Status != models.ResultSuccess {
		return res.Message, nil
	}
	switch name {
	case models.AgentEmail:
		return formatEmail(res), nil
	default:
		return res.Message, nil
	}
}

// formatEmail is the most elaborate single-agent formatter,
// distinguishing drafted/approved/sent/list/read outcomes by the
// structured fields the email agent attaches to its result. The agent
// already renders a human-readable message per outcome; this formatter
// appends a status line for draft-shaped results that haven't reached
// a terminal state, without duplicating the body text.
func formatEmail(res models.AgentResult) string {
	if res.Result == nil {
		return res.Message
	}
	if _, ok := res.Result["provider_message_id"]; ok {
		return res.Message
	}
	if _, ok := res.Result["email_summaries"]; ok || res.Result["email"] != nil {
		return res.Message
	}
	if status, ok := res.Result["status"].(string); ok {
		if !models.DraftStatus(status).IsTerminal() {
			return fmt.Sprintf("%s\n_(status: %s)_", res.Message, status)
		}
	}
	return res.Message
}

func (c *Compiler) synthesize(ctx context.Context, sp *models.Scratchpad) (string, error) {
	var b strings.Builder
	for name, res := range sp.PartialResults {
		fmt.Fprintf(&b, "%s: %s\n", name, res.Message)
	}
	prompt := fmt.Sprintf(`Synthesize a single, coherent response to the user's request from the following agent outputs.

User request: %s

Agent outputs:
%s`, sp.UserRequest, b.String())

	resp, err := c.gateway.Complete(ctx, models.CompleteRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
