// Package tool defines the interfaces agents use to invoke external
// capabilities. Tools are layered: every Tool carries identity and
// HITL/async flags; CallableTool adds synchronous execution; StreamingTool
// adds incremental output for long-running operations (command execution,
// nested agent calls) that benefit from progressive feedback.
package tool

import (
	"context"
	"iter"

	"github.com/zavora-ai/adk-go/pkg/agent"
)

// Tool is the base capability surface every tool implements.
type Tool interface {
	Name() string
	Description() string

	// IsLongRunning marks an async operation that returns a job id and is
	// polled for completion, with no human in the loop.
	IsLongRunning() bool

	// RequiresApproval marks a tool that must pause for human approval
	// before it executes; the agent loop surfaces this as an event with
	// Actions.RequireInput set rather than calling the tool immediately.
	RequiresApproval() bool
}

// CallableTool executes synchronously and returns a single result.
type CallableTool interface {
	Tool
	Call(ctx Context, args map[string]any) (map[string]any, error)
	// Schema returns the JSON schema for the tool's parameters, or nil if
	// the tool takes none.
	Schema() map[string]any
}

// StreamingTool executes and yields incremental Result chunks, terminated
// by one non-streaming Result carrying the final output.
type StreamingTool interface {
	Tool
	CallStreaming(ctx Context, args map[string]any) iter.Seq2[*Result, error]
	Schema() map[string]any
}

// Result is one chunk (or the final value) of a tool's output.
type Result struct {
	Content   any
	Streaming bool
	Error     string
	Metadata  map[string]any
}

// Context is the execution context passed to a tool invocation: the
// invocation it's running within, plus the call's own identity and action
// sink.
type Context interface {
	agent.InvocationContext

	// FunctionCallID is the correlation id of this invocation's
	// content.FunctionCall, echoed back on the resulting FunctionResponse.
	FunctionCallID() string

	// Actions returns the EventActions the tool can populate (state
	// deltas, escalate, transfer_to_agent) to be merged into the event the
	// agent loop emits for this call.
	Actions() *agent.EventActions

	// SearchMemory delegates to the invocation's memory searcher, if any.
	SearchMemory(ctx context.Context, query string) ([]agent.MemoryEntry, error)
}

// Toolset groups related tools with dynamic, context-dependent resolution
// (e.g. an MCP server's currently advertised tool list).
type Toolset interface {
	Name() string
	Tools(ctx agent.InvocationContext) ([]Tool, error)
}

// Predicate decides whether a tool should be offered to the model in a
// given invocation.
type Predicate func(ctx agent.InvocationContext, t Tool) bool

// StringPredicate allows only the named tools.
func StringPredicate(allowed []string) Predicate {
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}
	return func(_ agent.InvocationContext, t Tool) bool { return set[t.Name()] }
}

// AllowAll allows every tool.
func AllowAll() Predicate { return func(agent.InvocationContext, Tool) bool { return true } }

// DenyAll allows no tool.
func DenyAll() Predicate { return func(agent.InvocationContext, Tool) bool { return false } }

// Combine ANDs predicates together.
func Combine(predicates ...Predicate) Predicate {
	return func(ctx agent.InvocationContext, t Tool) bool {
		for _, p := range predicates {
			if !p(ctx, t) {
				return false
			}
		}
		return true
	}
}

// Or ORs predicates together.
func Or(predicates ...Predicate) Predicate {
	return func(ctx agent.InvocationContext, t Tool) bool {
		for _, p := range predicates {
			if p(ctx, t) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(ctx agent.InvocationContext, t Tool) bool { return !p(ctx, t) }
}

// ToolCall is one function call an LLM response requested: the call's
// correlation id (paired back onto the eventual FunctionResponse), the
// tool name, and its already-parsed arguments.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// Definition is a tool's shape as advertised to an LLM for function calling.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToDefinition derives a Definition from any Tool, pulling Schema() from
// whichever calling interface it implements.
func ToDefinition(t Tool) Definition {
	def := Definition{Name: t.Name(), Description: t.Description()}
	switch v := t.(type) {
	case CallableTool:
		def.Parameters = v.Schema()
	case StreamingTool:
		def.Parameters = v.Schema()
	}
	return def
}

// RequestProcessor lets a tool mutate the outgoing model request before
// it's sent, e.g. to inject retrieved context or credentials.
type RequestProcessor interface {
	ProcessRequest(ctx Context, req *Request) error
}

// Request is the subset of an outgoing model request a RequestProcessor may
// observe and mutate.
type Request struct {
	SystemInstruction string
	Metadata          map[string]any
}
