package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/checkpoint"
	"github.com/zavora-ai/adk-go/pkg/graph"
	"github.com/zavora-ai/adk-go/pkg/session"
)

func TestCompile_RequiresEntryPoint(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("x")).
		AddNode("process", func(context.Context, graph.State) (graph.NodeOutput, error) { return graph.NodeOutput{}, nil }).
		AddEdge("process", graph.End)

	_, err := g.Compile()
	require.ErrorIs(t, err, graph.ErrNoEntryPoint)
}

func TestCompile_RejectsMissingNode(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("x")).AddEdge(graph.Start, "missing")
	_, err := g.Compile()
	require.ErrorIs(t, err, graph.ErrEdgeTargetNotFound)
	var target *graph.EdgeTargetNotFoundError
	require.ErrorAs(t, err, &target)
	require.Equal(t, "missing", target.Node)
}

func TestRun_LinearGraph(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("value")).
		AddNode("set", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"value": 42}}, nil
		}).
		AddEdge(graph.Start, "set").
		AddEdge("set", graph.End)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(context.Background(), graph.State{})
	require.NoError(t, err)
	require.Equal(t, 42, out["value"])
}

func TestRun_ConditionalRouting(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("next", "visited")).
		AddNode("router", func(_ context.Context, s graph.State) (graph.NodeOutput, error) { return graph.NodeOutput{}, nil }).
		AddNode("path_a", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"visited": "a"}}, nil
		}).
		AddNode("path_b", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"visited": "b"}}, nil
		}).
		AddEdge(graph.Start, "router").
		AddConditionalEdges("router", func(s graph.State) string {
			return s.GetString("next")
		}, map[string]string{"path_a": "path_a", "path_b": "path_b"}).
		AddEdge("path_a", graph.End).
		AddEdge("path_b", graph.End)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(context.Background(), graph.State{"next": "path_b"})
	require.NoError(t, err)
	require.Equal(t, "b", out["visited"])
}

func TestRun_RecursionLimit(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("count")).
		AddNode("loop", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			n, _ := s.Get("count")
			count, _ := n.(int)
			return graph.NodeOutput{Updates: graph.State{"count": count + 1}}, nil
		}).
		AddEdge(graph.Start, "loop").
		AddEdge("loop", "loop")

	compiled, err := g.Compile(graph.WithRecursionLimit(5))
	require.NoError(t, err)

	_, err = compiled.Run(context.Background(), graph.State{"count": 0})
	require.ErrorIs(t, err, graph.ErrRecursionLimit)
}

func TestRun_NodeRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	g := graph.NewStateGraph(graph.SimpleSchema("ok")).
		AddNode("flaky", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			attempts++
			if attempts < 3 {
				return graph.NodeOutput{}, errors.New("timeout talking to upstream")
			}
			return graph.NodeOutput{Updates: graph.State{"ok": true}}, nil
		}, graph.WithRetry(graph.RetryConfig{MaxRetries: 5, BaseDelay: 0})).
		AddEdge(graph.Start, "flaky").
		AddEdge("flaky", graph.End)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(context.Background(), graph.State{})
	require.NoError(t, err)
	require.Equal(t, true, out["ok"])
	require.Equal(t, 3, attempts)
}

func TestRun_NodeRetriesExhausted(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("ok")).
		AddNode("alwaysFails", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{}, errors.New("connection refused")
		}, graph.WithRetry(graph.RetryConfig{MaxRetries: 2, BaseDelay: 0})).
		AddEdge(graph.Start, "alwaysFails").
		AddEdge("alwaysFails", graph.End)

	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Run(context.Background(), graph.State{})
	require.Error(t, err)
	var retryErr *graph.RetryError
	require.ErrorAs(t, err, &retryErr)
	require.Equal(t, 3, retryErr.Attempts)
}

func TestRun_ConcurrentFrontierMergesByDeclarationOrder(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("winner")).
		AddNode("a", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"winner": "a"}}, nil
		}).
		AddNode("b", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"winner": "b"}}, nil
		}).
		AddEdge(graph.Start, "a").
		AddEdge(graph.Start, "b").
		AddEdge("a", graph.End).
		AddEdge("b", graph.End)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(context.Background(), graph.State{})
	require.NoError(t, err)
	require.Equal(t, "b", out["winner"])
}

func buildApprovalGraph(t *testing.T) *graph.CompiledGraph {
	t.Helper()
	g := graph.NewStateGraph(graph.SimpleSchema("task", "risk", "approved", "result")).
		AddNode("plan", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"task": s.GetString("task")}}, nil
		}).
		AddNode("review", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			if s.GetString("risk") == "high" {
				if v, ok := s.Get("approved"); ok && v == true {
					return graph.NodeOutput{}, nil
				}
				return graph.NodeOutput{Interrupt: &graph.Interrupt{Message: "approval required", Data: s.GetString("task")}}, nil
			}
			return graph.NodeOutput{}, nil
		}).
		AddNode("execute", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"result": "done: " + s.GetString("task")}}, nil
		}).
		AddEdge(graph.Start, "plan").
		AddEdge("plan", "review").
		AddEdge("review", "execute").
		AddEdge("execute", graph.End)

	compiled, err := g.Compile(graph.WithCheckpointer(checkpoint.NewMemoryCheckpointer()))
	require.NoError(t, err)
	return compiled
}

func TestInvoke_InterruptsOnHighRiskAndResumesAfterApproval(t *testing.T) {
	compiled := buildApprovalGraph(t)
	ctx := context.Background()

	_, err := compiled.Invoke(ctx, graph.State{"task": "delete backups", "risk": "high"}, graph.Config{ThreadID: "tid-1"})
	require.Error(t, err)
	var interrupted *graph.Interrupted
	require.ErrorAs(t, err, &interrupted)
	require.Equal(t, "tid-1", interrupted.ThreadID)
	require.Equal(t, "approval required", interrupted.Interrupt.Message)

	require.NoError(t, compiled.UpdateState(ctx, "tid-1", graph.State{"approved": true}))

	final, err := compiled.Invoke(ctx, graph.State{}, graph.Config{ThreadID: "tid-1"})
	require.NoError(t, err)
	require.Equal(t, "done: delete backups", final["result"])
}

func TestInvoke_ResumeReRunsTheInterruptingNode(t *testing.T) {
	var reviewRuns, planRuns, executeRuns int
	g := graph.NewStateGraph(graph.SimpleSchema("task", "risk", "approved", "result")).
		AddNode("plan", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			planRuns++
			return graph.NodeOutput{Updates: graph.State{"task": s.GetString("task")}}, nil
		}).
		AddNode("review", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			reviewRuns++
			if s.GetString("risk") == "high" {
				if v, ok := s.Get("approved"); ok && v == true {
					return graph.NodeOutput{}, nil
				}
				return graph.NodeOutput{Interrupt: &graph.Interrupt{Message: "approval required"}}, nil
			}
			return graph.NodeOutput{}, nil
		}).
		AddNode("execute", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			executeRuns++
			return graph.NodeOutput{Updates: graph.State{"result": "done: " + s.GetString("task")}}, nil
		}).
		AddEdge(graph.Start, "plan").
		AddEdge("plan", "review").
		AddEdge("review", "execute").
		AddEdge("execute", graph.End)

	compiled, err := g.Compile(graph.WithCheckpointer(checkpoint.NewMemoryCheckpointer()))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = compiled.Invoke(ctx, graph.State{"task": "delete backups", "risk": "high"}, graph.Config{ThreadID: "tid-resume"})
	require.Error(t, err)
	var interrupted *graph.Interrupted
	require.ErrorAs(t, err, &interrupted)

	require.NoError(t, compiled.UpdateState(ctx, "tid-resume", graph.State{"approved": true}))
	final, err := compiled.Invoke(ctx, graph.State{}, graph.Config{ThreadID: "tid-resume"})
	require.NoError(t, err)
	require.Equal(t, "done: delete backups", final["result"])

	require.Equal(t, 1, planRuns)
	require.Equal(t, 2, reviewRuns, "the interrupting node re-runs on resume so it can see the approval")
	require.Equal(t, 1, executeRuns)
}

func TestInvoke_LowRiskCompletesWithoutInterrupt(t *testing.T) {
	compiled := buildApprovalGraph(t)
	out, err := compiled.Invoke(context.Background(), graph.State{"task": "read readme", "risk": "low"}, graph.Config{ThreadID: "tid-2"})
	require.NoError(t, err)
	require.Equal(t, "done: read readme", out["result"])
}

func TestCompile_WithInterruptBeforePausesUnconditionally(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("plan", "result")).
		AddNode("plan", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"plan": "do the thing"}}, nil
		}).
		AddNode("execute", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"result": "executed"}}, nil
		}).
		AddEdge(graph.Start, "plan").
		AddEdge("plan", "execute").
		AddEdge("execute", graph.End)

	compiled, err := g.Compile(
		graph.WithCheckpointer(checkpoint.NewMemoryCheckpointer()),
		graph.WithInterruptBefore("execute"),
	)
	require.NoError(t, err)

	_, err = compiled.Invoke(context.Background(), graph.State{}, graph.Config{ThreadID: "static"})
	require.Error(t, err)
	var interrupted *graph.Interrupted
	require.ErrorAs(t, err, &interrupted)
	require.Equal(t, "do the thing", interrupted.State["plan"])

	final, err := compiled.Invoke(context.Background(), graph.State{}, graph.Config{ThreadID: "static"})
	require.NoError(t, err)
	require.Equal(t, "executed", final["result"])
}

func TestStream_EmitsNodeAndStateEvents(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("value")).
		AddNode("set", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"value": 1}}, nil
		}).
		AddEdge(graph.Start, "set").
		AddEdge("set", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	var kinds []graph.StreamEventKind
	for ev, err := range compiled.Stream(context.Background(), graph.State{}, graph.Config{}, graph.StreamValues) {
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
	}
	require.Contains(t, kinds, graph.EventNodeStart)
	require.Contains(t, kinds, graph.EventNodeEnd)
	require.Contains(t, kinds, graph.EventStateUpdate)
}

func newGraphInvCtx(t *testing.T, root agent.Agent) agent.InvocationContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(t.Context(), &session.CreateRequest{AppName: "app", UserID: "u1"})
	require.NoError(t, err)
	return agent.NewRootInvocationContext(t.Context(), "inv-1", agent.InvocationContextParams{
		Agent:   root,
		Session: resp.Session,
	})
}

func TestNewAgent_RunsGraphAndEmitsOutputEvent(t *testing.T) {
	g := graph.NewStateGraph(graph.SimpleSchema("output")).
		AddNode("respond", func(_ context.Context, s graph.State) (graph.NodeOutput, error) {
			return graph.NodeOutput{Updates: graph.State{"output": "done: " + s.GetString("input")}}, nil
		}).
		AddEdge(graph.Start, "respond").
		AddEdge("respond", graph.End)

	compiled, err := g.Compile()
	require.NoError(t, err)

	a, err := graph.NewAgent(graph.AgentConfig{Name: "pipeline", Graph: compiled})
	require.NoError(t, err)

	var events []*agent.Event
	for ev, err := range a.Run(newGraphInvCtx(t, a)) {
		require.NoError(t, err)
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	require.Equal(t, "done: ", events[0].Content.TextContent())
	require.Equal(t, "pipeline", events[0].Author)
}

func TestNewAgent_RequiresGraph(t *testing.T) {
	_, err := graph.NewAgent(graph.AgentConfig{Name: "pipeline"})
	require.Error(t, err)
}
