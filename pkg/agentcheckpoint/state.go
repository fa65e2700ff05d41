package agentcheckpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zavora-ai/adk-go/pkg/agent"
)

// Phase identifies where in an agent's reasoning loop a checkpoint was taken.
type Phase string

const (
	PhaseInitialized   Phase = "initialized"
	PhasePreLLM        Phase = "pre_llm"
	PhasePostLLM       Phase = "post_llm"
	PhaseToolExecution Phase = "tool_execution"
	PhasePostTool      Phase = "post_tool"
	PhaseIterationEnd  Phase = "iteration_end"
	PhaseToolApproval  Phase = "tool_approval"
	PhaseError         Phase = "error"
)

// Type records why a checkpoint was created.
type Type string

const (
	TypeEvent    Type = "event"
	TypeInterval Type = "interval"
	TypeManual   Type = "manual"
	TypeError    Type = "error"
)

// State is a full snapshot of one agent's execution, sufficient to resume it:
// which task/session it belongs to, what it was asked, where its loop was,
// and any tool call waiting on human approval.
type State struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	AppName   string `json:"app_name"`

	Query string `json:"query"`

	AgentName      string              `json:"agent_name"`
	AgentState     *AgentStateSnapshot `json:"agent_state,omitempty"`
	InvocationID   string              `json:"invocation_id"`
	LastEventIndex int                 `json:"last_event_index"`

	PendingToolCall *PendingToolCall `json:"pending_tool_call,omitempty"`

	Phase          Phase     `json:"phase"`
	CheckpointType Type      `json:"checkpoint_type"`
	CheckpointTime time.Time `json:"checkpoint_time"`

	Error string `json:"error,omitempty"`
}

// AgentStateSnapshot captures one LLM agent's loop position, including, for
// workflow agents (sequential/parallel/loop), their stage/iteration within
// the workflow.
type AgentStateSnapshot struct {
	Iteration   int `json:"iteration"`
	TotalTokens int `json:"total_tokens"`

	History     []*agent.Event `json:"history,omitempty"`
	LastEvent   *agent.Event   `json:"last_event,omitempty"`
	CurrentTurn []*agent.Event `json:"current_turn,omitempty"`

	AccumulatedResponse string `json:"accumulated_response,omitempty"`
	FinalResponseAdded  bool   `json:"final_response_added"`

	PendingToolCalls        []*ToolCallSnapshot `json:"pending_tool_calls,omitempty"`
	FirstIterationToolCalls []*ToolCallSnapshot `json:"first_iteration_tool_calls,omitempty"`

	SubAgents   []string `json:"sub_agents,omitempty"`
	ParentAgent string   `json:"parent_agent,omitempty"`
	Branch      string   `json:"branch,omitempty"`

	WorkflowType      string `json:"workflow_type,omitempty"`
	WorkflowStage     int    `json:"workflow_stage,omitempty"`
	LoopIteration     int    `json:"loop_iteration,omitempty"`
	LoopMaxIterations int    `json:"loop_max_iterations,omitempty"`

	Custom map[string]any `json:"custom,omitempty"`
}

// PendingToolCall is a tool call awaiting execution or human approval.
type PendingToolCall struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Arguments        map[string]any `json:"arguments,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
}

// ToolCallSnapshot captures one tool call's progress.
type ToolCallSnapshot struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Completed bool           `json:"completed"`
}

// Serialize converts the State to JSON bytes.
func (s *State) Serialize() ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("agentcheckpoint: cannot serialize nil state")
	}
	return json.Marshal(s)
}

// Deserialize reconstructs a State from JSON bytes.
func Deserialize(data []byte) (*State, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("agentcheckpoint: cannot deserialize empty data")
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("agentcheckpoint: unmarshal state: %w", err)
	}
	return &state, nil
}

// NewState creates a State with its required identifiers set and Phase
// initialized to PhaseInitialized.
func NewState(taskID, sessionID, userID, appName, query, agentName, invocationID string) *State {
	return &State{
		TaskID:         taskID,
		SessionID:      sessionID,
		UserID:         userID,
		AppName:        appName,
		Query:          query,
		AgentName:      agentName,
		InvocationID:   invocationID,
		Phase:          PhaseInitialized,
		CheckpointType: TypeEvent,
		CheckpointTime: time.Now(),
	}
}

func (s *State) WithPhase(phase Phase) *State {
	s.Phase = phase
	s.CheckpointTime = time.Now()
	return s
}

func (s *State) WithType(t Type) *State {
	s.CheckpointType = t
	return s
}

func (s *State) WithAgentState(as *AgentStateSnapshot) *State {
	s.AgentState = as
	return s
}

func (s *State) WithPendingToolCall(tc *PendingToolCall) *State {
	s.PendingToolCall = tc
	return s
}

func (s *State) WithError(err error) *State {
	if err != nil {
		s.Error = err.Error()
		s.Phase = PhaseError
		s.CheckpointType = TypeError
	}
	return s
}

func (s *State) WithLastEventIndex(idx int) *State {
	s.LastEventIndex = idx
	return s
}

// IsExpired reports whether the checkpoint is older than timeout. A
// non-positive timeout disables expiry.
func (s *State) IsExpired(timeout time.Duration) bool {
	if s.CheckpointTime.IsZero() || timeout <= 0 {
		return false
	}
	return time.Since(s.CheckpointTime) > timeout
}

// IsRecoverable reports whether the checkpoint has enough state to resume
// from.
func (s *State) IsRecoverable() bool {
	return s.Phase != ""
}

// NeedsUserInput reports whether the checkpoint is paused on a tool call
// awaiting human approval.
func (s *State) NeedsUserInput() bool {
	return s.Phase == PhaseToolApproval && s.PendingToolCall != nil && s.PendingToolCall.RequiresApproval
}
