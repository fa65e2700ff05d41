package graph

import (
	"errors"
	"fmt"
)

// Start and End are the reserved pseudo-node names for a graph's entry
// point and termination.
const (
	Start = "__start__"
	End   = "__end__"
)

var (
	ErrNoEntryPoint   = errors.New("graph: no entry point (add an edge from graph.Start)")
	ErrRecursionLimit = errors.New("graph: recursion limit exceeded")
)

// NodeNotFoundError reports a reference to a node that was never
// registered with AddNode.
type NodeNotFoundError struct {
	Node string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("graph: node not found: %q", e.Node)
}

// Is makes NodeNotFoundError match errors.Is(err, ErrNodeNotFound)
// regardless of which node the error names.
func (e *NodeNotFoundError) Is(target error) bool {
	_, ok := target.(*NodeNotFoundError)
	return ok
}

// EdgeTargetNotFoundError reports an edge whose source or target node was
// never registered with AddNode.
type EdgeTargetNotFoundError struct {
	Edge string // the referencing edge's source, or "start" for an entry edge
	Node string // the dangling node name
}

func (e *EdgeTargetNotFoundError) Error() string {
	return fmt.Sprintf("graph: edge from %q references unknown node %q", e.Edge, e.Node)
}

func (e *EdgeTargetNotFoundError) Is(target error) bool {
	_, ok := target.(*EdgeTargetNotFoundError)
	return ok
}

// ErrNodeNotFound and ErrEdgeTargetNotFound are usable with errors.Is as
// class sentinels; the concrete error returned by Compile/Run carries the
// offending node names.
var (
	ErrNodeNotFound       = &NodeNotFoundError{}
	ErrEdgeTargetNotFound = &EdgeTargetNotFoundError{}
)
