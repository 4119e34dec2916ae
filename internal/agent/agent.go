// Package agent defines the common Agent contract and the
// compile-time-fixed registry the orchestrator dispatches through.
package agent

import (
	"context"

	"github.com/concierge/orchestrator/pkg/models"
)

// Agent is the single operation every agent in the registry exposes.
// Implementations may read shared Scratchpad fields but must not
// mutate anything outside their own slot in partial_results — the
// caller (the orchestrator) owns writing the result back.
type Agent interface {
	Process(ctx context.Context, sp *models.Scratchpad) models.AgentResult
}

// Registry is the compile-time-fixed mapping from agent name to
// implementation: calendar_agent, notes_agent, file_agent, email_agent,
// general_agent.
type Registry struct {
	agents map[models.AgentName]Agent
}

// NewRegistry builds a registry from the five fixed agents. Any name
// not present in models.AllAgentNames is ignored — the registry never
// grows dynamically.
func NewRegistry(agents map[models.AgentName]Agent) *Registry {
	r := &Registry{agents: make(map[models.AgentName]Agent, len(models.AllAgentNames))}
	for name, a := range agents {
		if models.AllAgentNames[name] {
			r.agents[name] = a
		}
	}
	return r
}

// Get returns the agent registered for name, or ok=false if none is.
func (r *Registry) Get(name models.AgentName) (Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}
