package workflowagent

import (
	"iter"

	"github.com/zavora-ai/adk-go/pkg/agent"
)

// LoopConfig configures a loop agent.
type LoopConfig struct {
	Name        string
	Description string

	// SubAgents run in sequence on every iteration.
	SubAgents []agent.Agent

	// MaxIterations bounds how many times the sub-agents run. Zero means
	// run indefinitely, until a sub-agent escalates.
	MaxIterations uint
}

// NewLoop builds an agent that repeatedly runs its sub-agents in sequence,
// either for MaxIterations rounds or until one of them escalates (sets
// Event.Actions.Escalate on a yielded event).
//
// Use it for iterative refinement, such as a reviewer/improver pair revising
// a draft until the reviewer is satisfied.
func NewLoop(cfg LoopConfig) (agent.Agent, error) {
	maxIterations := cfg.MaxIterations

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		SubAgents:   cfg.SubAgents,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return runLoop(ctx, maxIterations)
		},
	})
}

func runLoop(ctx agent.InvocationContext, maxIterations uint) iter.Seq2[*agent.Event, error] {
	remaining := maxIterations

	return func(yield func(*agent.Event, error) bool) {
		for {
			escalated := false

			for _, subAgent := range ctx.Agent().SubAgents() {
				subCtx := agent.NewInvocationContext(ctx, agent.InvocationContextParams{
					Agent:       subAgent,
					Session:     ctx.Session(),
					Artifacts:   ctx.Artifacts(),
					Memory:      ctx.Memory(),
					UserContent: ctx.UserContent(),
					RunConfig:   ctx.RunConfig(),
					Branch:      childBranch(ctx.Branch(), subAgent.Name()),
				})

				for event, err := range subAgent.Run(subCtx) {
					if !yield(event, err) {
						return
					}
					if event != nil && event.Actions.Escalate {
						escalated = true
					}
				}

				if escalated {
					return
				}
			}

			if maxIterations > 0 {
				remaining--
				if remaining == 0 {
					return
				}
			}
		}
	}
}

func childBranch(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
