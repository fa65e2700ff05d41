package agent

import (
	"context"
	"iter"
	"time"

	"github.com/zavora-ai/adk-go/pkg/content"
)

// State is a keyed value store with scope-prefixed keys (see the KeyPrefix*
// constants). It is the session.Session's state surface; pkg/agent only
// depends on this narrow interface so that workflow/LLM agent code never
// needs to import pkg/session.
type State interface {
	Get(key string) (any, error)
	Set(key string, val any) error
	Delete(key string) error
	All() iter.Seq2[string, any]

	// ClearTempKeys removes every key under KeyPrefixTemp. The Runner
	// calls this once an invocation's final event has been appended.
	ClearTempKeys()
}

// Scope prefixes for session state keys (spec.md §4.11).
const (
	KeyPrefixApp  = "app:"
	KeyPrefixUser = "user:"
	KeyPrefixTemp = "temp:"
)

// Events is an append-only, ordered event log.
type Events interface {
	All() iter.Seq[*Event]
	Len() int
	At(i int) *Event
}

// Session is the narrow session surface an InvocationContext exposes to
// agents and tools.
type Session interface {
	ID() string
	AppName() string
	UserID() string
	State() State
	Events() Events
	LastUpdateTime() time.Time
}

// MemorySearcher is the optional long-term memory collaborator (spec.md §6).
type MemorySearcher interface {
	Search(ctx context.Context, query string) ([]MemoryEntry, error)
}

// MemoryEntry is one long-term memory search result.
type MemoryEntry struct {
	Content content.Content
	Score   float64
}

// ArtifactService is the optional artifact storage collaborator (spec.md §6).
type ArtifactService interface {
	Save(ctx context.Context, namespace, name string, data []byte, mimeType string) (string, error)
	Load(ctx context.Context, namespace, name string, version string) ([]byte, error)
}

// RunConfig carries per-invocation knobs (streaming, token caps, and
// provider-specific passthrough).
type RunConfig struct {
	Streaming             bool
	MaxOutputTokens       int
	ProviderOverrides     map[string]any
}

// InvocationContext is threaded through one user-initiated turn and every
// agent/tool it touches. It is built once by the Runner and narrowed (same
// session, new Agent/Branch) for each sub-agent invocation.
type InvocationContext interface {
	context.Context

	InvocationID() string
	Agent() Agent
	Session() Session
	Artifacts() ArtifactService
	Memory() MemorySearcher
	UserContent() *content.Content
	RunConfig() RunConfig
	Branch() string

	// DelegationDepth returns how many branch-changing derivations
	// (transfer_to_agent hops and workflow sub-agent runs alike) produced
	// this context, starting at 0 for the Runner's own invocation.
	DelegationDepth() int

	// EmitAction merges delta into the EventActions the current step
	// will carry, used by tools to write state deltas through ToolContext.
	EmitAction(delta EventActions)

	// Ended reports whether the invocation's cancellation has fired.
	Ended() bool
	// EndInvocation fires the invocation's cancellation.
	EndInvocation()
}

// InvocationContextParams configures NewInvocationContext.
type InvocationContextParams struct {
	Agent       Agent
	Session     Session
	Artifacts   ArtifactService
	Memory      MemorySearcher
	UserContent *content.Content
	RunConfig   RunConfig
	Branch      string
}

type invocationContext struct {
	context.Context
	cancel context.CancelFunc

	invocationID string
	agent        Agent
	session      Session
	artifacts    ArtifactService
	memory       MemorySearcher
	userContent  *content.Content
	runConfig    RunConfig
	branch       string
	depth        int
}

// NewRootInvocationContext creates the top-level InvocationContext for a
// fresh Runner.Run call.
func NewRootInvocationContext(ctx context.Context, invocationID string, p InvocationContextParams) InvocationContext {
	cctx, cancel := context.WithCancel(ctx)
	return &invocationContext{
		Context:      cctx,
		cancel:       cancel,
		invocationID: invocationID,
		agent:        p.Agent,
		session:      p.Session,
		artifacts:    p.Artifacts,
		memory:       p.Memory,
		userContent:  p.UserContent,
		runConfig:    p.RunConfig,
		branch:       p.Branch,
	}
}

// NewInvocationContext derives a child context for a sub-agent invocation
// (workflow combinator fan-out, delegation), sharing the parent's
// cancellation and invocation id but carrying a narrowed Agent/Branch.
func NewInvocationContext(parent InvocationContext, p InvocationContextParams) InvocationContext {
	depth := parent.DelegationDepth()
	if p.Branch != parent.Branch() {
		depth++
	}
	return &invocationContext{
		Context:      parent,
		cancel:       func() {},
		invocationID: parent.InvocationID(),
		agent:        p.Agent,
		session:      p.Session,
		artifacts:    p.Artifacts,
		memory:       p.Memory,
		userContent:  p.UserContent,
		runConfig:    p.RunConfig,
		branch:       p.Branch,
		depth:        depth,
	}
}

func (c *invocationContext) InvocationID() string          { return c.invocationID }
func (c *invocationContext) Agent() Agent                  { return c.agent }
func (c *invocationContext) Session() Session               { return c.session }
func (c *invocationContext) Artifacts() ArtifactService     { return c.artifacts }
func (c *invocationContext) Memory() MemorySearcher         { return c.memory }
func (c *invocationContext) UserContent() *content.Content  { return c.userContent }
func (c *invocationContext) RunConfig() RunConfig           { return c.runConfig }
func (c *invocationContext) Branch() string                 { return c.branch }
func (c *invocationContext) DelegationDepth() int            { return c.depth }

func (c *invocationContext) EmitAction(EventActions) {
	// Root/child contexts without an explicit action sink are no-ops; the
	// llmagent/tool layer attaches a real sink via context values where
	// action emission matters (ToolContext). Kept as a narrow interface
	// method so callers don't need a type assertion.
}

func (c *invocationContext) Ended() bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func (c *invocationContext) EndInvocation() {
	if c.cancel != nil {
		c.cancel()
	}
}
