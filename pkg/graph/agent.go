package graph

import (
	"encoding/json"
	"errors"
	"iter"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/content"
)

var errNilGraph = errors.New("graph: Graph is required")

// InputMapper builds a graph's initial State from an invocation.
type InputMapper func(ctx agent.InvocationContext) State

// OutputMapper turns a graph's final State into the event content an
// agent.Agent emits.
type OutputMapper func(state State) content.Content

// AgentConfig configures NewAgent.
type AgentConfig struct {
	Name        string
	Description string
	Graph       *CompiledGraph

	// InputMapper defaults to DefaultInputMapper.
	InputMapper InputMapper
	// OutputMapper defaults to DefaultOutputMapper.
	OutputMapper OutputMapper
}

// NewAgent adapts a CompiledGraph into an agent.Agent: each invocation maps
// the invocation context to an initial State, runs the graph to
// completion, and maps the final State to a single output event.
func NewAgent(cfg AgentConfig) (agent.Agent, error) {
	if cfg.Graph == nil {
		return nil, errNilGraph
	}
	inputMapper := cfg.InputMapper
	if inputMapper == nil {
		inputMapper = DefaultInputMapper
	}
	outputMapper := cfg.OutputMapper
	if outputMapper == nil {
		outputMapper = DefaultOutputMapper
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				input := inputMapper(ctx)
				state, err := cfg.Graph.Run(ctx, input)
				if err != nil {
					yield(nil, err)
					return
				}

				c := outputMapper(state)
				ev := agent.NewEvent(ctx.InvocationID())
				ev.Author = ctx.Agent().Name()
				ev.Branch = ctx.Branch()
				ev.Content = &c
				yield(ev, nil)
			}
		},
	})
}

// DefaultInputMapper seeds the graph's "input" channel with the
// invocation's user text and "session_id" with the session's id.
func DefaultInputMapper(ctx agent.InvocationContext) State {
	state := State{"session_id": ctx.Session().ID()}
	if uc := ctx.UserContent(); uc != nil {
		if text := uc.TextContent(); text != "" {
			state["input"] = text
		}
	}
	return state
}

// DefaultOutputMapper looks for an "output" or "result" channel, falling
// back to JSON-encoding the whole final state when neither is present.
func DefaultOutputMapper(state State) content.Content {
	if v, ok := state.Get("output"); ok {
		if s, ok := v.(string); ok {
			return content.NewText(content.RoleModel, s)
		}
	}
	if v, ok := state.Get("result"); ok {
		if s, ok := v.(string); ok {
			return content.NewText(content.RoleModel, s)
		}
	}
	b, err := json.Marshal(state)
	if err != nil {
		return content.NewText(content.RoleModel, "")
	}
	return content.NewText(content.RoleModel, string(b))
}
