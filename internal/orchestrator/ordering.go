package orchestrator

import "github.com/concierge/orchestrator/pkg/models"

// precedencePairs lists (before, after) constraints the planner is
// instructed to honor; the orchestrator enforces them regardless.
var precedencePairs = [][2]models.AgentName{
	{models.AgentFile, models.AgentEmail},
	{models.AgentEmail, models.AgentCalendar},
	{models.AgentFile, models.AgentNotes},
}

// enforceOrdering stable-re-sorts agents so every precedence pair
// present in the list is satisfied, without disturbing relative order
// beyond what's required.
func enforceOrdering(agents []models.AgentName) []models.AgentName {
	out := append([]models.AgentName{}, agents...)
	for pass := 0; pass < len(out)+1; pass++ {
		changed := false
		for _, pair := range precedencePairs {
			before, after := pair[0], pair[1]
			bi, ai := indexOf(out, before), indexOf(out, after)
			if bi == -1 || ai == -1 || bi < ai {
				continue
			}
			// before currently appears after "after" — move it to
			// just ahead of "after", preserving everything else.
			item := out[bi]
			out = append(out[:bi], out[bi+1:]...)
			ai = indexOf(out, after)
			out = append(out[:ai], append([]models.AgentName{item}, out[ai:]...)...)
			changed = true
		}
		if !changed {
			break
		}
	}
	return out
}

func indexOf(agents []models.AgentName, target models.AgentName) int {
	for i, a := range agents {
		if a == target {
			return i
		}
	}
	return -1
}

func dedupePreserveOrder(agents []models.AgentName) []models.AgentName {
	seen := make(map[models.AgentName]bool, len(agents))
	out := make([]models.AgentName, 0, len(agents))
	for _, a := range agents {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
