package workflowagent

import (
	"iter"

	"github.com/zavora-ai/adk-go/pkg/agent"
)

// Predicate decides which branch a conditional agent takes. It is
// evaluated once, at the start of the invocation, over the same
// InvocationContext the chosen branch will then run with.
type Predicate func(ctx agent.InvocationContext) bool

// ConditionalConfig configures a conditional agent.
type ConditionalConfig struct {
	Name        string
	Description string

	// If selects Then when true, Else otherwise.
	If Predicate

	// Then runs when If returns true.
	Then agent.Agent

	// Else runs when If returns false. May be nil, in which case the
	// invocation yields no events when If returns false.
	Else agent.Agent
}

// NewConditional builds an agent that runs exactly one of two sub-agents,
// chosen by a predicate evaluated once at the start of the invocation.
//
// Use it for routing: sending a turn down one of two fixed paths based on
// state accumulated so far, such as escalating to a human-handoff agent
// once a frustration score crosses a threshold.
func NewConditional(cfg ConditionalConfig) (agent.Agent, error) {
	if cfg.If == nil {
		return nil, errMissingPredicate
	}
	if cfg.Then == nil {
		return nil, errMissingThen
	}

	subAgents := []agent.Agent{cfg.Then}
	if cfg.Else != nil {
		subAgents = append(subAgents, cfg.Else)
	}

	predicate := cfg.If
	then := cfg.Then
	els := cfg.Else

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		SubAgents:   subAgents,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return runConditional(ctx, predicate, then, els)
		},
	})
}

func runConditional(ctx agent.InvocationContext, predicate Predicate, then, els agent.Agent) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		chosen := els
		if predicate(ctx) {
			chosen = then
		}
		if chosen == nil {
			return
		}

		subCtx := agent.NewInvocationContext(ctx, agent.InvocationContextParams{
			Agent:       chosen,
			Session:     ctx.Session(),
			Artifacts:   ctx.Artifacts(),
			Memory:      ctx.Memory(),
			UserContent: ctx.UserContent(),
			RunConfig:   ctx.RunConfig(),
			Branch:      childBranch(ctx.Branch(), chosen.Name()),
		})

		for event, err := range chosen.Run(subCtx) {
			if !yield(event, err) {
				return
			}
		}
	}
}
