// Package general implements the General Agent: keyword classification
// into one of four request types, each dispatched to its own
// purpose-specific prompt template.
package general

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/pkg/models"
)

const timeout = 90 * time.Second

type requestType string

const (
	taskManagement requestType = "task_management"
	questionAnswer requestType = "question_answer"
	planning       requestType = "planning"
	generalAssist  requestType = "general_assistance"
)

var taskKeywords = []string{
	"task", "todo", "to-do", "reminder", "schedule", "deadline", "complete",
	"finish", "done", "add task", "create task", "manage tasks",
}

var planningKeywords = []string{
	"plan", "planning", "goal", "strategy", "roadmap", "timeline",
	"project plan", "organize", "structure", "break down",
}

var questionKeywords = []string{
	"what", "how", "why", "when", "where", "who", "explain", "tell me",
	"help me understand", "can you", "do you know",
}

type Agent struct {
	gateway *llmgateway.Gateway
	clock   clock.Clock
}

func New(gw *llmgateway.Gateway, c clock.Clock) *Agent {
	return &Agent{gateway: gw, clock: c}
}

func (a *Agent) Process(ctx context.Context, sp *models.Scratchpad) models.AgentResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	kind := classify(sp.UserRequest)
	content, err := a.dispatch(ctx, kind, sp)
	if err != nil {
		if ctx.Err() != nil {
			return models.ErrorResult("❌ General agent timed out while composing a response.")
		}
		return models.ErrorResult(fmt.Sprintf("❌ General agent failed: %v", err))
	}

	emoji, label := presentation(kind)
	return models.SuccessResult(
		fmt.Sprintf("%s **%s**\n\n%s", emoji, label, content),
		map[string]any{"request_type": string(kind), "content": content},
	)
}

func classify(request string) requestType {
	lower := strings.ToLower(request)
	if containsAny(lower, taskKeywords) {
		return taskManagement
	}
	if containsAny(lower, planningKeywords) {
		return planning
	}
	if containsAny(lower, questionKeywords) || strings.HasSuffix(strings.TrimSpace(request), "?") {
		return questionAnswer
	}
	return generalAssist
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func (a *Agent) dispatch(ctx context.Context, kind requestType, sp *models.Scratchpad) (string, error) {
	var prompt string
	now := a.clock.Now().Format("2006-01-02")
	history := formatHistory(sp.HistorySnapshot)

	switch kind {
	case taskManagement:
		prompt = fmt.Sprintf(`You are a task management assistant. Help the user organize and track their tasks.

Current date: %s
User request: %s

Recent conversation:
%s

Analyze the request and provide:
1. Task identification and categorization
2. Priority assessment (high/medium/low)
3. Suggested deadlines if not specified
4. Action items or subtasks
5. Any dependencies or prerequisites

Format your response as a structured task list with clear priorities and timelines.
Be proactive in suggesting task breakdowns for complex requests.`, now, sp.UserRequest, history)
	case planning:
		prompt = fmt.Sprintf(`You are a planning specialist. Help users create structured plans for projects, goals, and activities.

Current date: %s
Planning request: %s

Recent conversation:
%s

Create a comprehensive plan that includes:
1. Clear objectives and goals
2. Step-by-step action plan
3. Timeline with milestones
4. Required resources or prerequisites
5. Potential challenges and mitigation strategies
6. Success metrics or completion criteria
7. Regular check-in points

Structure the plan clearly with phases, timelines, and actionable steps.
Make the plan realistic and achievable.`, now, sp.UserRequest, history)
	case questionAnswer:
		prompt = fmt.Sprintf(`You are a knowledgeable assistant that provides clear, accurate answers to questions.
Use the conversation context and any available information to give comprehensive responses.

Current date: %s
User question: %s

Recent conversation context:
%s

Available context from other agents:
%s

Provide a clear, well-structured answer that:
1. Directly addresses the question
2. Uses available context when relevant
3. Breaks down complex topics into understandable parts
4. Offers additional relevant information when helpful
5. Suggests follow-up questions or actions if appropriate

Keep responses conversational but informative.`, now, sp.UserRequest, history, formatPartial(sp))
	default:
		prompt = fmt.Sprintf(`You are a helpful general assistant. Provide useful, actionable responses to user requests.

Current date: %s
User request: %s

Recent conversation:
%s

Provide helpful assistance that:
1. Understands the user's intent
2. Offers practical advice or solutions
3. Suggests next steps or related actions
4. Uses conversation context appropriately
5. Maintains a supportive, professional tone

Focus on being genuinely helpful and proactive.`, now, sp.UserRequest, history)
	}

	resp, err := a.gateway.Complete(ctx, models.CompleteRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func presentation(kind requestType) (emoji, label string) {
	switch kind {
	case taskManagement:
		return "📋", "Task Management"
	case planning:
		return "📅", "Planning & Strategy"
	case questionAnswer:
		return "🤔", "Question & Answer"
	default:
		return "💡", "General Assistance"
	}
}

func formatHistory(h []models.HistoryEntry) string {
	if len(h) == 0 {
		return "No previous conversation"
	}
	limit := 5
	if len(h) < limit {
		limit = len(h)
	}
	recent := h[len(h)-limit:]
	var b strings.Builder
	for _, e := range recent {
		fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Body)
	}
	return b.String()
}

func formatPartial(sp *models.Scratchpad) string {
	if len(sp.PartialResults) == 0 {
		return "No additional context available"
	}
	var b strings.Builder
	for name, res := range sp.PartialResults {
		fmt.Fprintf(&b, "%s: %s\n", name, res.Message)
	}
	return b.String()
}
