package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/zavora-ai/adk-go/pkg/content"
)

// Reserved author names.
const (
	AuthorUser   = "user"
	AuthorSystem = "system"
)

// Event is the atomic output unit produced by an Agent. Once appended to a
// session it is immutable; any further mutation happens only through a new
// Event's Actions.StateDelta.
type Event struct {
	ID           string
	InvocationID string
	Author       string
	Timestamp    time.Time
	Content      *content.Content
	Actions      EventActions
	LlmResponse  *LlmResponseMeta

	// Branch identifies which delegation path produced this event, as a
	// dot-delimited path of agent names (e.g. "root.researcher"). History
	// reconstruction for a sub-agent includes only ancestor-branch events,
	// so a delegate never sees a sibling's private turns.
	Branch string

	// LongRunningToolIDs lists the call IDs of this event's tool calls that
	// are paused awaiting human approval rather than executed.
	LongRunningToolIDs []string

	// Partial marks a streaming-incremental chunk of one LLM turn.
	Partial bool
	// TurnComplete marks the terminal chunk of one LLM turn. Exactly one
	// event in a turn's stream has this set, and it is always the last.
	TurnComplete bool

	FinishReason string
	ErrorCode    string
	ErrorMessage string
}

// LlmResponseMeta carries the subset of a model response worth attaching to
// an event without pulling the model package's types into agent (which
// would create an import cycle through tool -> agent and model -> tool).
type LlmResponseMeta struct {
	Usage        *Usage
	FinishReason string
	ErrorCode    string
	ErrorMessage string
}

// Usage mirrors a provider's token accounting for one LLM call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// EventActions carries every side effect an Agent step produced, the only
// channel through which session state, artifacts, delegation, loop control,
// and compaction markers flow.
type EventActions struct {
	StateDelta        map[string]any
	ArtifactDelta     map[string]int64
	TransferToAgent   string
	Escalate          bool
	Compaction        *Compaction
	SkipSummarization bool
	RequireInput      bool
	InputPrompt       string
}

// Compaction marks an event as a summarization boundary: every event with a
// timestamp at or before EndTimestamp is considered replaced by
// CompactedContent when reconstructing conversation history.
type Compaction struct {
	StartTimestamp time.Time
	EndTimestamp   time.Time
	CompactedContent content.Content
}

// NewEvent allocates an Event with a fresh ID and timestamp for the given
// invocation.
func NewEvent(invocationID string) *Event {
	return &Event{
		ID:           uuid.NewString(),
		InvocationID: invocationID,
		Timestamp:    time.Now().UTC(),
	}
}

// IsFinalResponse reports whether this event concludes its LLM turn from
// the caller's point of view: not a partial chunk, and not carrying
// unresolved function calls.
func (e *Event) IsFinalResponse() bool {
	if e.Partial {
		return false
	}
	if e.HasFunctionCalls() && !e.Actions.SkipSummarization {
		return false
	}
	return true
}

// HasFunctionCalls reports whether the event's content carries any
// FunctionCall parts.
func (e *Event) HasFunctionCalls() bool {
	if e.Content == nil {
		return false
	}
	return e.Content.HasFunctionCalls()
}

// TextContent returns the concatenation of every Text part in the event's
// content, or "" if there is none.
func (e *Event) TextContent() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.TextContent()
}
