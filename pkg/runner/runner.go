// Package runner provides the orchestration layer that drives agent
// execution across turns.
//
// A Runner owns session lookup/creation, picks which agent in the tree
// should continue a conversation (honoring any transfer restrictions),
// drives that agent's Run iterator, persists its events, and — once the
// turn completes — clears temp-scoped state and runs the agent's
// compaction strategy if it has one.
package runner

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/agentcheckpoint"
	"github.com/zavora-ai/adk-go/pkg/compaction"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/plugin"
	"github.com/zavora-ai/adk-go/pkg/session"
)

// Config configures a Runner.
type Config struct {
	// AppName identifies the application the sessions belong to.
	AppName string

	// Agent is the root of the agent tree to run.
	Agent agent.Agent

	// SessionService is the source of truth for session state and history.
	SessionService session.Service

	// ArtifactService is optional artifact storage, forwarded to every
	// invocation context.
	ArtifactService agent.ArtifactService

	// Memory is optional long-term memory search, forwarded to every
	// invocation context.
	Memory agent.MemorySearcher

	// Plugins, if set, intercepts user messages, persisted events, and the
	// agent's run at the turn boundary (on_user_message, before_run/
	// after_run, on_event, before_agent/after_agent). Model/tool-level
	// hooks are wired separately into the agent itself via
	// Manager.BeforeModelCallback/AfterModelCallback/BeforeToolCallback/
	// AfterToolCallback, since those fire inside the agent's own reasoning
	// loop, not the Runner's.
	Plugins *plugin.Manager

	// Checkpoint, if set, enables saving and clearing an execution-state
	// checkpoint for every turn the Runner drives, keyed on the turn's
	// invocation ID. A nil Checkpoint (or one with Enabled unset) leaves
	// checkpointing off.
	Checkpoint *agentcheckpoint.Config
}

// Runner orchestrates agent execution within sessions.
type Runner struct {
	appName         string
	rootAgent       agent.Agent
	sessionService  session.Service
	artifactService agent.ArtifactService
	memory          agent.MemorySearcher
	plugins         *plugin.Manager
	parents         ParentMap
	checkpoints     *agentcheckpoint.Manager
	checkpointHooks *agentcheckpoint.Hooks
}

// New creates a Runner for the given agent tree.
func New(cfg Config) (*Runner, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("runner: root agent is required")
	}
	if cfg.SessionService == nil {
		return nil, fmt.Errorf("runner: session service is required")
	}

	parents, err := BuildParentMap(cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("runner: building agent tree: %w", err)
	}

	checkpointMgr := agentcheckpoint.NewManager(cfg.Checkpoint, cfg.SessionService)

	return &Runner{
		appName:         cfg.AppName,
		rootAgent:       cfg.Agent,
		sessionService:  cfg.SessionService,
		artifactService: cfg.ArtifactService,
		memory:          cfg.Memory,
		plugins:         cfg.Plugins,
		parents:         parents,
		checkpoints:     checkpointMgr,
		checkpointHooks: agentcheckpoint.NewHooks(checkpointMgr),
	}, nil
}

// Checkpoints exposes the Runner's checkpoint manager, for a server to call
// RecoverOnStartup/ResumeTask/GetPendingCheckpoints against.
func (r *Runner) Checkpoints() *agentcheckpoint.Manager { return r.checkpoints }

// Run executes one user turn: it gets or creates the named session,
// determines which agent in the tree should continue it, appends the
// user message, drives that agent, and persists every non-partial event
// it yields. Once the agent's Run iterator is drained, it clears the
// session's temp-scoped state and, if the agent that ran carries a
// compaction strategy, checks whether the turn pushed it over its
// threshold and persists a summary event if so.
func (r *Runner) Run(ctx context.Context, userID, sessionID string, userContent *content.Content, cfg agent.RunConfig) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		sess, err := r.getOrCreateSession(ctx, userID, sessionID)
		if err != nil {
			yield(nil, err)
			return
		}

		agentToRun := r.findAgentToRun(sess)

		defer r.clearTempState(sess)
		defer r.checkAndSummarize(ctx, sess, agentToRun)

		invID := invocationID(sess)
		invCtx := agent.NewRootInvocationContext(ctx, invID, agent.InvocationContextParams{
			Agent:       agentToRun,
			Session:     sess,
			Artifacts:   r.artifactService,
			Memory:      r.memory,
			UserContent: userContent,
			RunConfig:   cfg,
		})
		defer invCtx.EndInvocation()

		cpState := agentcheckpoint.NewState(invID, sess.ID(), userID, r.appName, contentText(userContent), agentToRun.Name(), invID)
		if err := r.checkpoints.SaveCheckpoint(ctx, cpState); err != nil {
			slog.Warn("runner: save initial checkpoint failed", "task_id", invID, "error", err)
		}

		if r.plugins != nil {
			defer r.plugins.RunAfterRun(invCtx)

			if userContent != nil {
				modified, err := r.plugins.RunOnUserMessage(invCtx, *userContent)
				if err != nil {
					yield(nil, err)
					return
				}
				if modified != nil {
					userContent = modified
				}
			}

			early, err := r.plugins.RunBeforeRun(invCtx)
			if err != nil {
				yield(nil, err)
				return
			}
			if early != nil {
				r.emitShortCircuit(ctx, sess, invCtx, early, yield)
				return
			}

			early, err = r.plugins.RunBeforeAgent(invCtx)
			if err != nil {
				yield(nil, err)
				return
			}
			if early != nil {
				r.emitShortCircuit(ctx, sess, invCtx, early, yield)
				return
			}
		}

		if err := r.appendUserMessage(ctx, sess, userContent, invCtx.InvocationID()); err != nil {
			yield(nil, err)
			return
		}

		for event, err := range agentToRun.Run(invCtx) {
			if err != nil {
				r.checkpointHooks.OnError(ctx, cpState, err)
				yield(nil, err)
				return
			}
			if r.plugins != nil {
				if modified, err := r.plugins.RunOnEvent(invCtx, event); err != nil {
					yield(nil, err)
					return
				} else if modified != nil {
					event = modified
				}
			}
			if !event.Partial {
				if err := r.sessionService.AppendEvent(ctx, sess, event); err != nil {
					yield(nil, fmt.Errorf("runner: persisting event: %w", err))
					return
				}
			}
			if !yield(event, nil) {
				return
			}
		}

		if r.plugins != nil {
			replacement, err := r.plugins.RunAfterAgent(invCtx)
			if err != nil {
				yield(nil, err)
				return
			}
			if replacement != nil {
				r.emitShortCircuit(ctx, sess, invCtx, replacement, yield)
			}
		}

		r.checkpointHooks.OnComplete(ctx, r.appName, userID, sess.ID(), invID)
	}
}

func contentText(c *content.Content) string {
	if c == nil {
		return ""
	}
	return c.TextContent()
}

// emitShortCircuit persists and yields a single event carrying content
// produced by a plugin hook that preempted the agent's own turn (or
// appended a trailing one after it).
func (r *Runner) emitShortCircuit(ctx context.Context, sess agent.Session, invCtx agent.InvocationContext, c *content.Content, yield func(*agent.Event, error) bool) {
	ev := agent.NewEvent(invCtx.InvocationID())
	ev.Author = invCtx.Agent().Name()
	ev.Content = c
	if err := r.sessionService.AppendEvent(ctx, sess, ev); err != nil {
		yield(nil, fmt.Errorf("runner: persisting plugin event: %w", err))
		return
	}
	yield(ev, nil)
}

// compactionInvocationCountKey tracks, per session, how many Runner
// invocations have completed. A Provider's CompactionConfig.Interval gates
// compaction checks against this counter rather than running one every turn.
const compactionInvocationCountKey = "_compaction_invocation_count"

// checkAndSummarize asks the agent that just ran for its compaction
// strategy (if it has one) and, on invocations that fall on its
// CompactionConfig interval, persists the resulting summary event — reading
// events since the last compaction marker and excluding a trailing overlap
// window so the most recent exchanges always survive a compaction pass
// untouched.
func (r *Runner) checkAndSummarize(ctx context.Context, sess agent.Session, ag agent.Agent) {
	provider, ok := ag.(compaction.Provider)
	if !ok {
		return
	}
	strategy := provider.CompactionStrategy()
	if strategy == nil {
		return
	}

	count := r.nextInvocationCount(sess)
	cfg := provider.CompactionConfig()
	if !cfg.ShouldRun(count) {
		return
	}

	var all []*agent.Event
	for ev := range sess.Events().All() {
		all = append(all, ev)
	}

	boundary := compaction.LatestCompactionBoundary(all)
	var sinceBoundary []*agent.Event
	for _, ev := range all {
		if boundary.IsZero() || ev.Timestamp.After(boundary) {
			sinceBoundary = append(sinceBoundary, ev)
		}
	}

	eligible := sinceBoundary
	if cfg.OverlapSize > 0 {
		if len(eligible) > cfg.OverlapSize {
			eligible = eligible[:len(eligible)-cfg.OverlapSize]
		} else {
			eligible = nil
		}
	}

	summaryEvent, err := strategy.CheckAndSummarize(ctx, eligible)
	if err != nil {
		slog.Warn("runner: compaction check failed", "session_id", sess.ID(), "strategy", strategy.Name(), "error", err)
		return
	}
	if summaryEvent == nil {
		return
	}
	if err := r.sessionService.AppendEvent(ctx, sess, summaryEvent); err != nil {
		slog.Error("runner: persisting summary event failed", "session_id", sess.ID(), "error", err)
		return
	}
	slog.Info("runner: compacted session history", "session_id", sess.ID(), "strategy", strategy.Name())
}

// nextInvocationCount increments and persists the session's compaction
// invocation counter, returning its new value. Counters round-trip through
// JSON on SQLService-backed sessions (ints come back as float64), so the
// stored value is read back through toInt rather than a direct type assertion.
func (r *Runner) nextInvocationCount(sess agent.Session) int {
	state := sess.State()
	if state == nil {
		return 1
	}
	count := 0
	if val, err := state.Get(compactionInvocationCountKey); err == nil {
		count = toInt(val)
	}
	count++
	if err := state.Set(compactionInvocationCountKey, count); err != nil {
		slog.Warn("runner: persisting compaction invocation counter failed", "session_id", sess.ID(), "error", err)
	}
	return count
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func (r *Runner) clearTempState(sess agent.Session) {
	sess.State().ClearTempKeys()
}

// FindAgent searches the runner's agent tree by name.
func (r *Runner) FindAgent(name string) agent.Agent {
	return agent.FindAgent(r.rootAgent, name)
}

// RootAgent returns the root of the agent tree.
func (r *Runner) RootAgent() agent.Agent { return r.rootAgent }

// AppName returns the application name sessions are scoped under.
func (r *Runner) AppName() string { return r.appName }

func (r *Runner) getOrCreateSession(ctx context.Context, userID, sessionID string) (agent.Session, error) {
	resp, err := r.sessionService.Get(ctx, &session.GetRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err == nil && resp != nil {
		return resp.Session, nil
	}

	createResp, err := r.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: creating session: %w", err)
	}
	return createResp.Session, nil
}

func (r *Runner) appendUserMessage(ctx context.Context, sess agent.Session, c *content.Content, invocationID string) error {
	if c == nil {
		return nil
	}
	event := agent.NewEvent(invocationID)
	event.Author = agent.AuthorUser
	event.Content = c
	return r.sessionService.AppendEvent(ctx, sess, event)
}

// findAgentToRun walks the session history backwards for the most recent
// non-user event and resumes with the agent that authored it, provided
// the tree still allows transferring back to it; otherwise it falls back
// to the root agent.
func (r *Runner) findAgentToRun(sess agent.Session) agent.Agent {
	events := sess.Events()
	for i := events.Len() - 1; i >= 0; i-- {
		event := events.At(i)
		if event == nil || event.Author == agent.AuthorUser {
			continue
		}

		sub := agent.FindAgent(r.rootAgent, event.Author)
		if sub == nil {
			slog.Debug("runner: event from unknown agent", "agent", event.Author, "event_id", event.ID)
			continue
		}
		if r.isTransferableAcrossTree(sub) {
			return sub
		}
	}
	return r.rootAgent
}

// TransferRestrictable is implemented by agents that can restrict
// transfers back up the tree (llmAgent.DisallowTransferToParent/Peers).
type TransferRestrictable interface {
	DisallowTransferToParent() bool
	DisallowTransferToPeers() bool
}

func (r *Runner) isTransferableAcrossTree(ag agent.Agent) bool {
	for current := ag; current != nil; current = r.parents[current.Name()] {
		if restrictable, ok := current.(TransferRestrictable); ok {
			if restrictable.DisallowTransferToParent() {
				slog.Debug("runner: transfer blocked by DisallowTransferToParent", "agent", current.Name())
				return false
			}
		}
	}
	return true
}

// ParentMap maps an agent's name to its parent in the tree (nil for the
// root).
type ParentMap map[string]agent.Agent

// BuildParentMap walks the tree rooted at root and records each agent's
// parent, erroring on a duplicate agent name (which would make the map
// ambiguous).
func BuildParentMap(root agent.Agent) (ParentMap, error) {
	parents := make(ParentMap)
	if err := buildParentMap(root, nil, parents); err != nil {
		return nil, err
	}
	return parents, nil
}

func buildParentMap(ag, parent agent.Agent, parents ParentMap) error {
	if ag == nil {
		return nil
	}
	if _, exists := parents[ag.Name()]; exists {
		return fmt.Errorf("runner: duplicate agent name in tree: %s", ag.Name())
	}
	parents[ag.Name()] = parent
	for _, sub := range ag.SubAgents() {
		if err := buildParentMap(sub, ag, parents); err != nil {
			return err
		}
	}
	return nil
}

func invocationID(sess agent.Session) string {
	return fmt.Sprintf("inv-%s-%d", sess.ID(), sess.Events().Len())
}
