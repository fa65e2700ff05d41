package graph

import (
	"context"
	"sync"
)

// NodeFunc executes one graph step, returning the partial state update (and
// optional interrupt request) to fold into the running state via the
// graph's Schema.
type NodeFunc func(ctx context.Context, state State) (NodeOutput, error)

// RouterFunc inspects state after a node runs and returns the name of the
// route to follow (a key of the conditional edge's targets map, or End).
type RouterFunc func(state State) string

type nodeDef struct {
	name  string
	fn    NodeFunc
	retry *RetryConfig
}

// NodeOption configures a node at AddNode time.
type NodeOption func(*nodeDef)

// WithRetry retries a node's execution on failure per cfg.
func WithRetry(cfg RetryConfig) NodeOption {
	return func(n *nodeDef) { n.retry = &cfg }
}

type edgeKind int

const (
	edgeEntry edgeKind = iota
	edgeDirect
	edgeConditional
)

type edge struct {
	kind edgeKind
	// source/target are used by edgeDirect.
	source string
	target string
	// router/targets are used by edgeConditional.
	router  RouterFunc
	targets map[string]string
	// entryTargets is used by edgeEntry, in declaration order: map
	// iteration order is randomized, and entry-node execution order must
	// be deterministic (spec: concurrent updates merge by declaration
	// order).
	entryTargets []string
}

// StateGraph builds a graph of named nodes and the edges connecting them.
type StateGraph struct {
	schema *Schema
	nodes  map[string]*nodeDef
	edges  []edge
}

// NewStateGraph starts a builder over the given schema.
func NewStateGraph(schema *Schema) *StateGraph {
	if schema == nil {
		schema = NewSchema()
	}
	return &StateGraph{schema: schema, nodes: make(map[string]*nodeDef)}
}

// AddNode registers fn under name.
func (g *StateGraph) AddNode(name string, fn NodeFunc, opts ...NodeOption) *StateGraph {
	n := &nodeDef{name: name, fn: fn}
	for _, opt := range opts {
		opt(n)
	}
	g.nodes[name] = n
	return g
}

// AddEdge adds a direct edge from source to target. Passing graph.Start as
// source marks target as an entry node.
func (g *StateGraph) AddEdge(source, target string) *StateGraph {
	if source == Start {
		for i := range g.edges {
			if g.edges[i].kind == edgeEntry {
				g.edges[i].entryTargets = append(g.edges[i].entryTargets, target)
				return g
			}
		}
		g.edges = append(g.edges, edge{kind: edgeEntry, entryTargets: []string{target}})
		return g
	}
	g.edges = append(g.edges, edge{kind: edgeDirect, source: source, target: target})
	return g
}

// AddConditionalEdges adds a router-driven edge from source: after source
// runs, router(state) selects a key from targets, whose value is the next
// node to run (or End).
func (g *StateGraph) AddConditionalEdges(source string, router RouterFunc, targets map[string]string) *StateGraph {
	g.edges = append(g.edges, edge{kind: edgeConditional, source: source, router: router, targets: targets})
	return g
}

// CompileOption configures Compile.
type CompileOption func(*CompiledGraph)

// WithRecursionLimit caps the number of execution steps a single Invoke may
// perform before returning ErrRecursionLimit, guarding against unbounded
// cycles. Defaults to 50.
func WithRecursionLimit(limit int) CompileOption {
	return func(c *CompiledGraph) { c.recursionLimit = limit }
}

// WithCheckpointer wires cp to persist a checkpoint before and after every
// step, enabling interrupts and resume-by-thread-id.
func WithCheckpointer(cp Checkpointer) CompileOption {
	return func(c *CompiledGraph) { c.checkpointer = cp }
}

// WithInterruptBefore pauses execution, unconditionally, just before any of
// the named nodes would run.
func WithInterruptBefore(nodes ...string) CompileOption {
	return func(c *CompiledGraph) {
		for _, n := range nodes {
			c.interruptBefore[n] = true
		}
	}
}

// WithInterruptAfter pauses execution, unconditionally, just after any of
// the named nodes has run and its step has committed.
func WithInterruptAfter(nodes ...string) CompileOption {
	return func(c *CompiledGraph) {
		for _, n := range nodes {
			c.interruptAfter[n] = true
		}
	}
}

// Compile validates the graph (an entry point exists, every edge
// references a registered node) and returns an executable CompiledGraph.
func (g *StateGraph) Compile(opts ...CompileOption) (*CompiledGraph, error) {
	var entry []string
	hasEntry := false
	for _, e := range g.edges {
		if e.kind == edgeEntry {
			hasEntry = true
			entry = append(entry, e.entryTargets...)
		}
	}
	if !hasEntry {
		return nil, ErrNoEntryPoint
	}

	for _, name := range entry {
		if _, ok := g.nodes[name]; !ok {
			return nil, &EdgeTargetNotFoundError{Edge: "start", Node: name}
		}
	}
	for _, e := range g.edges {
		switch e.kind {
		case edgeDirect:
			if _, ok := g.nodes[e.source]; !ok {
				return nil, &NodeNotFoundError{Node: e.source}
			}
			if e.target != End {
				if _, ok := g.nodes[e.target]; !ok {
					return nil, &EdgeTargetNotFoundError{Edge: e.source, Node: e.target}
				}
			}
		case edgeConditional:
			if _, ok := g.nodes[e.source]; !ok {
				return nil, &NodeNotFoundError{Node: e.source}
			}
			for _, target := range e.targets {
				if target != End {
					if _, ok := g.nodes[target]; !ok {
						return nil, &EdgeTargetNotFoundError{Edge: e.source, Node: target}
					}
				}
			}
		}
	}

	c := &CompiledGraph{
		schema:          g.schema,
		nodes:           g.nodes,
		edges:           g.edges,
		entry:           entry,
		recursionLimit:  50,
		interruptBefore: make(map[string]bool),
		interruptAfter:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CompiledGraph is a validated, executable StateGraph.
type CompiledGraph struct {
	schema         *Schema
	nodes          map[string]*nodeDef
	edges          []edge
	entry          []string
	recursionLimit int

	checkpointer    Checkpointer
	interruptBefore map[string]bool
	interruptAfter  map[string]bool

	threadLocks sync.Map // thread id -> *sync.Mutex
}

// EntryNodes returns the graph's entry node names.
func (c *CompiledGraph) EntryNodes() []string {
	return append([]string(nil), c.entry...)
}

// Config carries per-invocation execution settings.
type Config struct {
	// ThreadID identifies the execution to resume or persist checkpoints
	// for. Required to use interrupts, checkpointing, or UpdateState; a
	// zero-value Config runs the graph to completion in one shot with no
	// persistence.
	ThreadID string
}

// Run executes the graph to completion from a fresh, uncheckpointed state;
// equivalent to Invoke(ctx, input, Config{}).
func (c *CompiledGraph) Run(ctx context.Context, input State) (State, error) {
	return c.Invoke(ctx, input, Config{})
}

// Invoke runs the graph per cfg.ThreadID: starting fresh if no checkpoint
// exists for the thread (or ThreadID is empty), or resuming from the
// thread's latest checkpoint otherwise. It returns the final state, or an
// *Interrupted value (wrapped as the returned error) if execution paused.
func (c *CompiledGraph) Invoke(ctx context.Context, input State, cfg Config) (State, error) {
	final := State{}
	for ev, err := range c.Stream(ctx, input, cfg, StreamValues) {
		if err != nil {
			return final, err
		}
		if ev.Kind == EventStateUpdate && ev.State != nil {
			final = ev.State
		}
	}
	return final, nil
}

func (c *CompiledGraph) nextNodes(source string, state State) []string {
	var next []string
	for _, e := range c.edges {
		switch e.kind {
		case edgeDirect:
			if e.source == source && e.target != End {
				next = append(next, e.target)
			}
		case edgeConditional:
			if e.source == source {
				route := e.router(state)
				if target, ok := e.targets[route]; ok && target != End {
					next = append(next, target)
				}
			}
		}
	}
	return next
}

func (c *CompiledGraph) computeNextFrontier(executedThisStep []string, state State) []string {
	seen := make(map[string]bool)
	var next []string
	for _, name := range executedThisStep {
		for _, n := range c.nextNodes(name, state) {
			if !seen[n] {
				seen[n] = true
				next = append(next, n)
			}
		}
	}
	return next
}

func (c *CompiledGraph) lockThread(threadID string) func() {
	v, _ := c.threadLocks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
