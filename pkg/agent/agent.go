// Package agent defines the Agent abstraction: a named unit that consumes an
// InvocationContext and produces a stream of Events. Concrete agents are
// LLM-backed (pkg/agent/llmagent), workflow combinators
// (pkg/agent/workflowagent), or arbitrary custom Go functions wrapped with
// New.
package agent

import (
	"errors"
	"fmt"
	"iter"
)

// MaxDelegationDepth bounds transfer_to_agent chains to keep a misconfigured
// agent tree from recursing forever (Open Question 4: the source used
// implicit stack depth; this runtime enforces an explicit limit instead).
const MaxDelegationDepth = 25

// ErrDelegationDepthExceeded is returned when a transfer_to_agent chain
// would exceed MaxDelegationDepth.
var ErrDelegationDepthExceeded = errors.New("agent: delegation depth exceeded")

// Agent is a named unit that runs within an invocation and yields Events.
type Agent interface {
	Name() string
	Description() string
	SubAgents() []Agent
	Run(ctx InvocationContext) iter.Seq2[*Event, error]

	// internal prevents implementations outside this package from
	// satisfying the interface without going through New, so every Agent
	// gets the shared validation and event author stamping baseAgent provides.
	internal()
}

// Checkpointable lets an agent opt into execution-state capture for
// crash recovery / HITL pause-resume (see pkg/agentcheckpoint).
type Checkpointable interface {
	CaptureCheckpointState(ctx InvocationContext) (any, error)
	RestoreCheckpointState(ctx InvocationContext, state any) error
}

// RunFunc is the body of a custom agent constructed with New.
type RunFunc func(ctx InvocationContext) iter.Seq2[*Event, error]

// Config describes a custom agent to be built with New. Workflow
// combinators (Sequential/Parallel/Loop/Conditional) are themselves built
// this way: they are Run funcs over SubAgents, nothing more.
type Config struct {
	Name        string
	Description string
	SubAgents   []Agent
	Run         RunFunc
}

type baseAgent struct {
	name        string
	description string
	subAgents   []Agent
	run         RunFunc
}

func (a *baseAgent) internal() {}

// New validates cfg and returns an Agent wrapping cfg.Run.
func New(cfg Config) (Agent, error) {
	if cfg.Name == "" {
		return nil, errors.New("agent: name is required")
	}
	if cfg.Name == AuthorUser {
		return nil, fmt.Errorf("agent: name %q is reserved", AuthorUser)
	}
	if cfg.Run == nil {
		return nil, errors.New("agent: Run is required")
	}
	seen := make(map[string]bool, len(cfg.SubAgents))
	for _, sub := range cfg.SubAgents {
		if seen[sub.Name()] {
			return nil, fmt.Errorf("agent: duplicate sub-agent name %q", sub.Name())
		}
		seen[sub.Name()] = true
	}
	return &baseAgent{
		name:        cfg.Name,
		description: cfg.Description,
		subAgents:   cfg.SubAgents,
		run:         cfg.Run,
	}, nil
}

func (a *baseAgent) Name() string        { return a.name }
func (a *baseAgent) Description() string { return a.description }
func (a *baseAgent) SubAgents() []Agent  { return a.subAgents }

func (a *baseAgent) Run(ctx InvocationContext) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for event, err := range a.run(ctx) {
			if event != nil && event.Author == "" {
				event.Author = a.name
			}
			if !yield(event, err) {
				return
			}
		}
	}
}

// FindAgent performs a depth-first search for the sub-agent (or self) named
// name, starting from root.
func FindAgent(root Agent, name string) Agent {
	if root.Name() == name {
		return root
	}
	for _, sub := range root.SubAgents() {
		if found := FindAgent(sub, name); found != nil {
			return found
		}
	}
	return nil
}

// WalkAgents calls fn for root and every descendant, depth-first.
func WalkAgents(root Agent, fn func(Agent)) {
	fn(root)
	for _, sub := range root.SubAgents() {
		WalkAgents(sub, fn)
	}
}
