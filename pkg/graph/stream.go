package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"golang.org/x/sync/errgroup"
)

// StreamMode controls what CompiledGraph.Stream's per-node state-update
// events carry. Node start/end and interrupt events are emitted in every
// mode.
type StreamMode int

const (
	// StreamValues attaches the full state snapshot after every update.
	StreamValues StreamMode = iota
	// StreamUpdates attaches only the partial update each node contributed.
	StreamUpdates
	// StreamDebug attaches both the partial update and the full snapshot.
	StreamDebug
)

// StreamEventKind classifies a StreamEvent.
type StreamEventKind int

const (
	EventNodeStart StreamEventKind = iota
	EventNodeEnd
	EventStateUpdate
	EventInterrupt
)

// StreamEvent is one unit of progress from CompiledGraph.Stream.
type StreamEvent struct {
	Kind StreamEventKind
	Node string

	// State carries the full snapshot in StreamValues/StreamDebug mode.
	State State
	// Update carries the node's partial contribution in StreamUpdates/StreamDebug mode.
	Update State

	Interrupt *Interrupt
}

// ErrNoCheckpointer is returned by UpdateState when the graph was compiled
// without a Checkpointer.
var ErrNoCheckpointer = errors.New("graph: no checkpointer configured")

// Stream executes the graph per cfg exactly like Invoke, yielding node
// lifecycle, state-update, and interrupt events as they occur. The final
// value yielded is either a nil error (graph ran to completion) or a
// non-nil error (an *Interrupted pause, ErrRecursionLimit, or a node
// failure).
func (c *CompiledGraph) Stream(ctx context.Context, input State, cfg Config, mode StreamMode) iter.Seq2[*StreamEvent, error] {
	return func(yield func(*StreamEvent, error) bool) {
		threadID := cfg.ThreadID
		if threadID != "" {
			unlock := c.lockThread(threadID)
			defer unlock()
		}

		state, frontier, executedNodes, resumed, err := c.resume(ctx, threadID, input)
		if err != nil {
			yield(nil, err)
			return
		}
		if !yield(&StreamEvent{Kind: EventStateUpdate, State: state}, nil) {
			return
		}

		step := 0
		for len(frontier) > 0 {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			default:
			}

			if step >= c.recursionLimit {
				yield(nil, fmt.Errorf("%w: after %d steps", ErrRecursionLimit, step))
				return
			}

			// A frontier just loaded from a checkpoint already paid for its
			// interrupt_before check when that checkpoint was written;
			// resuming must make forward progress rather than refire it.
			skipInterruptBefore := step == 0 && resumed
			if !skipInterruptBefore {
				if interrupted, ok := c.checkInterruptBefore(ctx, threadID, frontier, state, executedNodes); ok {
					if interrupted.event != nil && !yield(interrupted.event, nil) {
						return
					}
					yield(nil, interrupted.err)
					return
				}
			}

			for _, name := range frontier {
				if !yield(&StreamEvent{Kind: EventNodeStart, Node: name}, nil) {
					return
				}
			}

			outputs, err := c.runFrontier(ctx, frontier, state)
			if err != nil {
				yield(nil, err)
				return
			}

			var firstInterrupt *Interrupt
			for i, name := range frontier {
				out := outputs[i]
				if len(out.Updates) > 0 {
					state = c.schema.ApplyUpdate(state, out.Updates)
					ev := &StreamEvent{Kind: EventStateUpdate, Node: name}
					switch mode {
					case StreamUpdates:
						ev.Update = out.Updates
					case StreamDebug:
						ev.Update = out.Updates
						ev.State = state
					default:
						ev.State = state
					}
					if !yield(ev, nil) {
						return
					}
				}
				if out.Interrupt != nil && firstInterrupt == nil {
					firstInterrupt = out.Interrupt
				}
				if !yield(&StreamEvent{Kind: EventNodeEnd, Node: name}, nil) {
					return
				}
				executedNodes = append(executedNodes, name)
			}
			step++

			nextFrontier := c.computeNextFrontier(frontier, state)

			afterInterrupt := false
			for _, name := range frontier {
				if c.interruptAfter[name] {
					afterInterrupt = true
					break
				}
			}

			if firstInterrupt != nil || afterInterrupt {
				msg := Interrupt{Message: "interrupt_after"}
				// A dynamic interrupt (a node's own NodeOutput.Interrupt, as
				// opposed to the static interrupt_after set) resumes onto the
				// same frontier that produced it rather than the frontier
				// after it: the interrupting node is expected to inspect
				// updated state (e.g. an approval flag set via UpdateState)
				// and decide for itself whether to proceed, the way the
				// worked review/approve/execute flow does. interrupt_after
				// has already let its node run to completion, so it resumes
				// forward onto the next frontier instead.
				resumeFrontier := nextFrontier
				if firstInterrupt != nil {
					msg = *firstInterrupt
					resumeFrontier = frontier
				}
				cpID, cpErr := c.persistCheckpoint(ctx, threadID, state, executedNodes, resumeFrontier)
				if cpErr != nil {
					yield(nil, cpErr)
					return
				}
				if !yield(&StreamEvent{Kind: EventInterrupt, Interrupt: &msg}, nil) {
					return
				}
				yield(nil, &Interrupted{Interrupt: msg, ThreadID: threadID, CheckpointID: cpID, State: state})
				return
			}

			if _, err := c.persistCheckpoint(ctx, threadID, state, executedNodes, nextFrontier); err != nil {
				yield(nil, err)
				return
			}

			frontier = nextFrontier
		}
	}
}

type interruptSignal struct {
	event *StreamEvent
	err   error
}

func (c *CompiledGraph) checkInterruptBefore(ctx context.Context, threadID string, frontier []string, state State, executed []string) (interruptSignal, bool) {
	for _, name := range frontier {
		if !c.interruptBefore[name] {
			continue
		}
		msg := Interrupt{Message: fmt.Sprintf("interrupt_before: %s", name)}
		cpID, err := c.persistCheckpoint(ctx, threadID, state, executed, frontier)
		if err != nil {
			return interruptSignal{err: err}, true
		}
		return interruptSignal{
			event: &StreamEvent{Kind: EventInterrupt, Node: name, Interrupt: &msg},
			err:   &Interrupted{Interrupt: msg, ThreadID: threadID, CheckpointID: cpID, State: state},
		}, true
	}
	return interruptSignal{}, false
}

// runFrontier executes every node in frontier concurrently against a
// shared, read-only state snapshot, per the step fan-out model: nodes only
// ever contribute updates, never mutate state directly, so running them
// concurrently over the same snapshot is safe.
func (c *CompiledGraph) runFrontier(ctx context.Context, frontier []string, state State) ([]NodeOutput, error) {
	outputs := make([]NodeOutput, len(frontier))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range frontier {
		nd, ok := c.nodes[name]
		if !ok {
			return nil, &NodeNotFoundError{Node: name}
		}
		i, nd := i, nd
		g.Go(func() error {
			out, err := c.runNode(gctx, nd, state)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (c *CompiledGraph) runNode(ctx context.Context, nd *nodeDef, state State) (NodeOutput, error) {
	if nd.retry == nil {
		return nd.fn(ctx, state)
	}
	r := newRetryer(*nd.retry)
	return r.do(ctx, nd.name, func() (NodeOutput, error) { return nd.fn(ctx, state) })
}

// resume loads a thread's persisted checkpoint, if any, folding input on
// top of its state; otherwise it starts fresh from the graph's entry
// nodes.
func (c *CompiledGraph) resume(ctx context.Context, threadID string, input State) (state State, frontier, executed []string, resumed bool, err error) {
	if c.checkpointer != nil && threadID != "" {
		cp, ok, getErr := c.checkpointer.Get(ctx, threadID, "")
		if getErr != nil {
			return nil, nil, nil, false, fmt.Errorf("graph: load checkpoint: %w", getErr)
		}
		if ok {
			st := fromCheckpointState(cp.State)
			if len(input) > 0 {
				st = c.schema.ApplyUpdate(st, input)
			}
			return st, append([]string(nil), cp.NextNodes...), append([]string(nil), cp.ExecutedNodes...), true, nil
		}
	}
	return c.schema.ApplyUpdate(State{}, input), append([]string(nil), c.entry...), nil, false, nil
}

// persistCheckpoint saves the current state and frontier for threadID; it
// is a no-op (returning an empty checkpoint id) when no checkpointer is
// configured or threadID is empty.
func (c *CompiledGraph) persistCheckpoint(ctx context.Context, threadID string, state State, executed, next []string) (string, error) {
	if c.checkpointer == nil || threadID == "" {
		return "", nil
	}
	cp, err := c.checkpointer.Put(ctx, threadID, Checkpoint{
		State:         toCheckpointState(state),
		ExecutedNodes: append([]string(nil), executed...),
		NextNodes:     append([]string(nil), next...),
	})
	if err != nil {
		return "", fmt.Errorf("graph: persist checkpoint: %w", err)
	}
	return cp.CheckpointID, nil
}

// UpdateState patches a paused thread's persisted state with delta, folded
// through the graph's schema reducers, without advancing its frontier.
// Used to inject a human decision (e.g. {"approved": true}) before
// resuming with Invoke/Stream using the same thread id.
func (c *CompiledGraph) UpdateState(ctx context.Context, threadID string, delta State) error {
	if c.checkpointer == nil {
		return ErrNoCheckpointer
	}
	unlock := c.lockThread(threadID)
	defer unlock()

	cp, ok, err := c.checkpointer.Get(ctx, threadID, "")
	if err != nil {
		return fmt.Errorf("graph: load checkpoint for update: %w", err)
	}
	if !ok {
		return fmt.Errorf("graph: no checkpoint for thread %q", threadID)
	}

	state := c.schema.ApplyUpdate(fromCheckpointState(cp.State), delta)
	_, err = c.checkpointer.Put(ctx, threadID, Checkpoint{
		State:         toCheckpointState(state),
		ExecutedNodes: cp.ExecutedNodes,
		NextNodes:     cp.NextNodes,
	})
	return err
}
