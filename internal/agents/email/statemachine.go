package email

import "github.com/concierge/orchestrator/pkg/models"

type transition string

const (
	transitionCreate            transition = "create"
	transitionRequestApproval   transition = "request_approval"
	transitionApprove           transition = "approve"
	transitionReject            transition = "reject"
	transitionTimeout           transition = "timeout"
	transitionSendSucceeded     transition = "send_succeeded"
	transitionSendFailed        transition = "send_failed_after_max_retries"
)

// permitted maps a current status to the set of transitions that may
// be applied to it. The zero status ("") represents "no draft yet".
var permitted = map[models.DraftStatus]map[transition]models.DraftStatus{
	"": {
		transitionCreate: models.DraftDrafted,
	},
	models.DraftDrafted: {
		transitionRequestApproval: models.DraftPendingApproval,
	},
	models.DraftPendingApproval: {
		transitionApprove: models.DraftApproved,
		transitionReject:  models.DraftRejected,
		transitionTimeout: models.DraftRejected,
	},
	models.DraftApproved: {
		transitionSendSucceeded: models.DraftSent,
		transitionSendFailed:    models.DraftFailed,
	},
}

// applyTransition returns the resulting status for (current, t), or
// ok=false if the transition is not permitted from current.
func applyTransition(current models.DraftStatus, t transition) (models.DraftStatus, bool) {
	allowed, ok := permitted[current]
	if !ok {
		return "", false
	}
	next, ok := allowed[t]
	return next, ok
}
