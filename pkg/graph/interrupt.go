package graph

import "fmt"

// Interrupt pauses graph execution to ask a caller for input — typically
// human approval — before continuing. A node returns one from its
// NodeOutput; a compiled graph can also force one unconditionally via
// WithInterruptBefore/WithInterruptAfter.
type Interrupt struct {
	Message string
	Data    any
}

// NodeOutput is what a NodeFunc returns: the partial state update to fold
// into the running state, and an optional interrupt request.
type NodeOutput struct {
	Updates   State
	Interrupt *Interrupt
}

// Interrupted is returned by Invoke/Run when execution pauses for an
// interrupt. It is not a failure: callers inspect Interrupt, optionally
// call CompiledGraph.UpdateState to inject a decision, and resume by
// invoking the graph again with the same thread id.
type Interrupted struct {
	Interrupt    Interrupt
	ThreadID     string
	CheckpointID string
	State        State
}

func (e *Interrupted) Error() string {
	return fmt.Sprintf("graph: interrupted at thread %q: %s", e.ThreadID, e.Interrupt.Message)
}
