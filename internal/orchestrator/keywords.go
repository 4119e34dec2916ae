package orchestrator

import "github.com/concierge/orchestrator/pkg/models"

// keywordMap mirrors the per-agent keyword sets used both by the plan
// fallback here and, historically, by the single-purpose agents this
// system replaced.
var keywordMap = map[models.AgentName][]string{
	models.AgentEmail: {
		"email", "mail", "inbox", "message", "unread", "gmail",
		"latest email", "recent email", "send email", "draft email", "compose",
	},
	models.AgentCalendar: {
		"calendar", "meeting", "schedule", "reschedule", "appointment",
		"event", "availability", "time slot", "book", "invite",
	},
	models.AgentFile: {
		"file", "document", "pdf", "docx", "ppt", "slide", "slides",
		"summarize", "extract", "analyze", "report",
	},
	models.AgentNotes: {
		"note", "notes", "notebook", "remember", "save this", "to-do",
		"todo", "task list", "minutes",
	},
	models.AgentGeneral: {
		"task", "todo", "to-do", "reminder", "question", "answer", "explain",
		"help me", "plan", "planning", "strategy", "goal", "how to",
		"what is", "why", "when", "where",
	},
}

// orderedAgentNames fixes iteration order for the fallback scan so the
// resulting plan tail is deterministic.
var orderedAgentNames = []models.AgentName{
	models.AgentCalendar, models.AgentNotes, models.AgentFile, models.AgentEmail, models.AgentGeneral,
}
