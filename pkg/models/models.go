// Package models holds the shared data types passed between the
// orchestrator, the agents, the LLM gateway, and the session store.
package models

import "time"

// ── Chat ─────────────────────────────────────────────────────

// Sender identifies who authored a ChatMessage.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// ChatMessage is one append-only entry in a session's transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    Sender    `json:"sender"`
	AgentType string    `json:"agent_type,omitempty"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEntry is the role-tagged view of a ChatMessage handed to agents
// and the LLM gateway; it drops storage-only fields.
type HistoryEntry struct {
	Role string `json:"role"`
	Body string `json:"body"`
}

// ── Orchestrator plan & scratchpad ───────────────────────────

// AgentName enumerates the compile-time-fixed agent registry.
type AgentName string

const (
	AgentCalendar       AgentName = "calendar_agent"
	AgentNotes          AgentName = "notes_agent"
	AgentFile           AgentName = "file_agent"
	AgentEmail          AgentName = "email_agent"
	AgentGeneral        AgentName = "general_agent"
)

// AllAgentNames lists the full registry, used to validate plans.
var AllAgentNames = map[AgentName]bool{
	AgentCalendar: true,
	AgentNotes:    true,
	AgentFile:     true,
	AgentEmail:    true,
	AgentGeneral:  true,
}

// OrchestratorPlan is the transient per-request execution plan.
type OrchestratorPlan struct {
	Agents        []AgentName            `json:"agents_to_invoke"`
	Reasoning     string                 `json:"reasoning"`
	WorkflowLabel string                 `json:"workflow_type"`
	AgentParams   map[AgentName]map[string]any `json:"agent_actions"`
	Confidence    float64                `json:"confidence"`
}

// Scratchpad is the transient per-request shared state threaded through
// the orchestrator and every agent it invokes.
type Scratchpad struct {
	UserRequest     string
	SessionID       string
	UserID          string
	ThirdPartyToken string
	FileBlob        []byte
	FileName        string
	HistorySnapshot []HistoryEntry
	Plan            OrchestratorPlan
	PartialResults  map[AgentName]AgentResult
	FinalResponse   string

	// DraftCreated is set by the email agent when it creates a new draft
	// this request, and surfaced by the compiler as a sidecar value.
	DraftCreated *DraftSidecar
}

// DraftSidecar is the structural summary of a draft created this request.
type DraftSidecar struct {
	ID        string    `json:"id"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    DraftStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentResultStatus is the discriminator for AgentResult.
type AgentResultStatus string

const (
	ResultSuccess AgentResultStatus = "success"
	ResultError   AgentResultStatus = "error"
)

// AgentResult is the uniform value every agent returns from Process.
type AgentResult struct {
	Status            AgentResultStatus `json:"status"`
	Message            string           `json:"message"`
	Result             map[string]any   `json:"result,omitempty"`
	CollaborationData  map[string]any   `json:"collaboration_data,omitempty"`
}

func ErrorResult(message string) AgentResult {
	return AgentResult{Status: ResultError, Message: message}
}

func SuccessResult(message string, result map[string]any) AgentResult {
	return AgentResult{Status: ResultSuccess, Message: message, Result: result}
}

// ── Email draft & approval ───────────────────────────────────

type DraftStatus string

const (
	DraftDrafted         DraftStatus = "Drafted"
	DraftPendingApproval DraftStatus = "PendingApproval"
	DraftApproved        DraftStatus = "Approved"
	DraftRejected        DraftStatus = "Rejected"
	DraftScheduled       DraftStatus = "Scheduled"
	DraftSent            DraftStatus = "Sent"
	DraftFailed          DraftStatus = "Failed"
)

// IsTerminal reports whether no further transitions are permitted.
func (s DraftStatus) IsTerminal() bool {
	return s == DraftSent || s == DraftRejected || s == DraftFailed
}

// EmailDraft is the long-lived persistent record of a drafted email.
type EmailDraft struct {
	ID                 string            `json:"id"`
	SessionID          string            `json:"session_id"`
	UserID             string            `json:"user_id,omitempty"`
	To                 []string          `json:"to"`
	CC                 []string          `json:"cc,omitempty"`
	BCC                []string          `json:"bcc,omitempty"`
	Subject            string            `json:"subject"`
	Body               string            `json:"body"`
	Tone               string            `json:"tone,omitempty"`
	Priority           string            `json:"priority,omitempty"`
	Status             DraftStatus       `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	ApprovedAt         *time.Time        `json:"approved_at,omitempty"`
	SentAt             *time.Time        `json:"sent_at,omitempty"`
	ConversationContext string           `json:"conversation_context,omitempty"`
	AIReasoning        string            `json:"ai_reasoning,omitempty"`
	SafetyChecks       *SafetyCheckResult `json:"safety_checks,omitempty"`
	ProviderMessageID  string            `json:"provider_message_id,omitempty"`
	ProviderThreadID   string            `json:"provider_thread_id,omitempty"`
	RetryCount         int               `json:"retry_count"`
	RejectFeedback     string            `json:"reject_feedback,omitempty"`
}

// CheckResult is the uniform shape of one safety check.
type CheckResult struct {
	Passed          bool     `json:"passed"`
	Flags           []string `json:"flags,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SafetyCheckResult aggregates the five independent email safety checks.
type SafetyCheckResult struct {
	Passed          bool                   `json:"passed"`
	PerCheck        map[string]CheckResult `json:"per_check"`
	Flags           []string               `json:"flags"`
	Risk            RiskLevel              `json:"risk"`
	Recommendations []string               `json:"recommendations"`
}

// ApprovalRequest tracks an outstanding approval wait for a draft.
type ApprovalRequest struct {
	DraftID     string    `json:"draft_id"`
	UserID      string    `json:"user_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Notified    bool      `json:"notified"`
}

// ApprovalDecision is the input to process_decision.
type ApprovalDecision struct {
	Approve      bool
	FieldEdits   map[string]string
	RejectReason string
}

// ── Notes / Docs ─────────────────────────────────────────────

// DocRef is the search-result shaped pointer the core holds for a
// remote Docs document — the document body itself is never cached.
type DocRef struct {
	ProviderID string    `json:"provider_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ── File summarizer ──────────────────────────────────────────

// FileStage enumerates the file-summarizer pipeline's states, in order.
type FileStage string

const (
	StageIngested         FileStage = "file_ingested"
	StageTextExtracted     FileStage = "text_extracted"
	StageTextChunked       FileStage = "text_chunked"
	StageSummariesGenerated FileStage = "summaries_generated"
	StageQueryProcessed    FileStage = "query_processed"
	StageOutputFormatted   FileStage = "output_formatted"
	StageComplete          FileStage = "complete"
)

// DocumentStructure records size information used for page estimation.
type DocumentStructure struct {
	TotalPages      int            `json:"total_pages,omitempty"`
	TotalChars      int            `json:"total_chars"`
	SectionCounts   map[string]int `json:"section_counts,omitempty"`
	TopLevelKeys    []string       `json:"top_level_keys,omitempty"`
}

// Chunk is one piece of a chunked document.
type Chunk struct {
	ChunkID       int    `json:"chunk_id"`
	Text          string `json:"text"`
	Length        int    `json:"length"`
	StartChar     int    `json:"start_char"`
	EndChar       int    `json:"end_char"`
	EstimatedPage int    `json:"estimated_page,omitempty"`
}

// FileSummaryState is the transient per-invocation state of the file
// summarizer pipeline.
type FileSummaryState struct {
	Blob              []byte
	Name              string
	DetectedType      string
	ExtractedText     string
	DocumentStructure DocumentStructure
	Chunks            []Chunk
	ChunkSummaries    []string
	FinalSummary      string
	KeyInsights       []string
	Metadata          map[string]any
	QueryResponse     string
	Errors            []string
	CurrentStep       FileStage
	Complete          bool
}

// ── LLM gateway ───────────────────────────────────────────────

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json_object"
)

// CompleteRequest is the single LLM Gateway operation's input.
type CompleteRequest struct {
	Messages       []Message
	Temperature    float64
	ResponseFormat ResponseFormat
	Timeout        time.Duration
	Stream         bool
}

// TokenUsage holds per-call token and cost accounting.
type TokenUsage struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	EstimatedCost  float64 `json:"estimated_cost"`
}

// CompleteResponse is the single LLM Gateway operation's output.
type CompleteResponse struct {
	Content   string     `json:"content"`
	Provider  string     `json:"provider"`
	Model     string     `json:"model"`
	Usage     TokenUsage `json:"usage"`
	LatencyMs int64      `json:"latency_ms"`
}

// StreamChunk is one token-delta of a streaming completion.
type StreamChunk struct {
	Delta string
	Done  bool
	Err   error
}

// ── Capability clients (Mail / Calendar / Docs) ──────────────

type EmailSummary struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"thread_id"`
	From     string    `json:"from"`
	Subject  string    `json:"subject"`
	Snippet  string    `json:"snippet"`
	Date     time.Time `json:"date"`
	IsUnread bool      `json:"is_unread"`
}

type EmailFull struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	CC        []string  `json:"cc,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Date      time.Time `json:"date"`
	IsUnread  bool      `json:"is_unread"`
	Labels    []string  `json:"labels,omitempty"`
}

type MailListQuery struct {
	Max   int
	Query string
}

type SendResult struct {
	ProviderMessageID string
	ProviderThreadID  string
}

type CalendarEvent struct {
	ID        string            `json:"id,omitempty"`
	Summary   string            `json:"summary"`
	Start     string            `json:"start"` // RFC-3339, offset optional
	End       string            `json:"end"`
	Attendees []string          `json:"attendees,omitempty"`
	Location  string            `json:"location,omitempty"`
}

type CalendarPatch struct {
	Summary   *string
	Start     *string
	End       *string
	Attendees []string
	Location  *string
}

type CalendarListQuery struct {
	TimeMin time.Time
	TimeMax time.Time
	Max     int
}

type FreeBusyQuery struct {
	TimeMin          time.Time
	TimeMax          time.Time
	DurationMinutes  int
	Attendees        []string
}

type FreeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type DocCreate struct {
	Title   string
	Content string
	Folder  string
}

type DocCreated struct {
	ID  string
	URL string
}

type DocFull struct {
	ID        string
	Title     string
	URL       string
	PlainText string
	ModifiedAt time.Time
}

type DocUpdate struct {
	Title   *string
	Content *string
	Append  bool
}

// ── Error taxonomy ────────────────────────────────────────────

// ErrorKind enumerates the core error taxonomy shared across agents.
type ErrorKind string

const (
	ErrInputInvalid       ErrorKind = "InputInvalid"
	ErrAuthMissing        ErrorKind = "AuthMissing"
	ErrAuthExpired        ErrorKind = "AuthExpired"
	ErrLLMParse           ErrorKind = "LLMParseError"
	ErrProviderNotFound   ErrorKind = "ProviderNotFound"
	ErrProviderPermission ErrorKind = "ProviderPermission"
	ErrProviderRateLimited ErrorKind = "ProviderRateLimited"
	ErrProviderTransient  ErrorKind = "ProviderTransient"
	ErrProviderPermanent  ErrorKind = "ProviderPermanent"
	ErrTimeout            ErrorKind = "Timeout"
	ErrCancelled          ErrorKind = "Cancelled"
	ErrInvariantViolated  ErrorKind = "InvariantViolated"
)

// Retryable reports whether the retry policy may retry an error of
// this kind: only Transient and RateLimited get bounded backoff.
func (k ErrorKind) Retryable() bool {
	return k == ErrProviderTransient || k == ErrProviderRateLimited
}
