package workflowagent

import (
	"context"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zavora-ai/adk-go/pkg/agent"
)

// ParallelConfig configures a parallel agent.
type ParallelConfig struct {
	Name        string
	Description string

	// SubAgents all receive the same input and run simultaneously, each on
	// its own branch.
	SubAgents []agent.Agent

	// CancelSiblingsOnEscalate, if true, cancels the other still-running
	// sub-agents as soon as any one of them yields an event with
	// Actions.Escalate set. The default (false) lets every sub-agent run to
	// completion regardless of a sibling's escalation.
	CancelSiblingsOnEscalate bool
}

// NewParallel builds an agent that runs its sub-agents concurrently, each in
// isolation on its own branch. Use it for gathering multiple perspectives on
// the same input, such as running several candidate solutions for an
// evaluator agent to compare.
func NewParallel(cfg ParallelConfig) (agent.Agent, error) {
	cancelOnEscalate := cfg.CancelSiblingsOnEscalate
	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		SubAgents:   cfg.SubAgents,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return runParallel(ctx, cancelOnEscalate)
		},
	})
}

type parallelResult struct {
	event *agent.Event
	err   error
}

type parallelChild struct {
	agent agent.Agent
	ctx   agent.InvocationContext
	stop  context.CancelFunc
}

func runParallel(ctx agent.InvocationContext, cancelOnEscalate bool) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		curAgent := ctx.Agent()
		children := make([]parallelChild, 0, len(curAgent.SubAgents()))
		for _, sa := range curAgent.SubAgents() {
			base := agent.NewInvocationContext(ctx, agent.InvocationContextParams{
				Agent:       sa,
				Session:     ctx.Session(),
				Artifacts:   ctx.Artifacts(),
				Memory:      ctx.Memory(),
				UserContent: ctx.UserContent(),
				RunConfig:   ctx.RunConfig(),
				Branch:      childBranch(childBranch(ctx.Branch(), curAgent.Name()), sa.Name()),
			})
			cancelable, stop := withCancel(base)
			children = append(children, parallelChild{agent: sa, ctx: cancelable, stop: stop})
		}

		stopAll := func() {
			for _, c := range children {
				c.stop()
			}
		}

		var group errgroup.Group
		done := make(chan bool)
		results := make(chan parallelResult)

		for _, c := range children {
			child := c
			group.Go(func() error {
				if err := runParallelChild(child.ctx, child.agent, results, done); err != nil {
					stopAll()
					return fmt.Errorf("failed to run sub-agent %q: %w", child.agent.Name(), err)
				}
				return nil
			})
		}

		go func() {
			_ = group.Wait()
			close(results)
		}()

		defer close(done)
		for res := range results {
			if cancelOnEscalate && res.event != nil && res.event.Actions.Escalate {
				stopAll()
			}
			if !yield(res.event, res.err) {
				break
			}
		}
	}
}

func runParallelChild(ctx agent.InvocationContext, ag agent.Agent, results chan<- parallelResult, done <-chan bool) error {
	for event, err := range ag.Run(ctx) {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			select {
			case <-done:
			case results <- parallelResult{err: ctx.Err()}:
			}
			return ctx.Err()
		case results <- parallelResult{event: event, err: err}:
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// withCancel wraps an InvocationContext with its own cancelable Done/Err,
// independent of its parent, so a workflow combinator can stop one
// sub-agent (or all of them) without tearing down the invocation that
// spawned it.
func withCancel(parent agent.InvocationContext) (agent.InvocationContext, context.CancelFunc) {
	cctx, cancel := context.WithCancel(parent)
	return &cancelableContext{InvocationContext: parent, ctx: cctx, cancel: cancel}, cancel
}

type cancelableContext struct {
	agent.InvocationContext
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *cancelableContext) Deadline() (time.Time, bool) { return c.ctx.Deadline() }
func (c *cancelableContext) Done() <-chan struct{}       { return c.ctx.Done() }
func (c *cancelableContext) Err() error                  { return c.ctx.Err() }
func (c *cancelableContext) Value(key any) any           { return c.ctx.Value(key) }

func (c *cancelableContext) Ended() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

func (c *cancelableContext) EndInvocation() { c.cancel() }
