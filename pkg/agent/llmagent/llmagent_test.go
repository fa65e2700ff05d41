package llmagent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/agent/llmagent"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
	"github.com/zavora-ai/adk-go/pkg/session"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

// drive runs agent through one invocation, appending every yielded event to
// the session the way pkg/runner would, and returns the collected events.
func drive(t *testing.T, a agent.Agent, svc session.Service, sess agent.Session, userText string) []*agent.Event {
	t.Helper()
	userContent := content.NewText(content.RoleUser, userText)
	require.NoError(t, svc.AppendEvent(t.Context(), sess, &agent.Event{
		Author:  agent.AuthorUser,
		Content: &userContent,
	}))

	ctx := agent.NewRootInvocationContext(t.Context(), "inv-1", agent.InvocationContextParams{
		Agent:       a,
		Session:     sess,
		UserContent: &userContent,
	})

	var events []*agent.Event
	for ev, err := range a.Run(ctx) {
		require.NoError(t, err)
		require.NoError(t, svc.AppendEvent(t.Context(), sess, ev))
		events = append(events, ev)
	}
	return events
}

func newSession(t *testing.T) (session.Service, agent.Session) {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(t.Context(), &session.CreateRequest{AppName: "app", UserID: "u1"})
	require.NoError(t, err)
	return svc, resp.Session
}

func TestLLMAgent_TextOnlyTurn(t *testing.T) {
	fixture := &model.Fixture{
		NameValue: "fixture-model",
		Turns: [][]*model.Response{
			{{Content: contentPtr(content.NewText(content.RoleModel, "hello there"))}},
		},
	}
	a, err := llmagent.New(llmagent.Config{
		Name:  "assistant",
		Model: fixture,
	})
	require.NoError(t, err)

	svc, sess := newSession(t)
	events := drive(t, a, svc, sess, "hi")

	require.Len(t, events, 1)
	require.Equal(t, "hello there", events[0].TextContent())
	require.Len(t, fixture.Requests, 1)
}

func TestLLMAgent_ToolCallRoundTrip(t *testing.T) {
	var gotArgs map[string]any
	echoTool, err := newEchoTool(func(args map[string]any) (map[string]any, error) {
		gotArgs = args
		return map[string]any{"content": "42"}, nil
	})
	require.NoError(t, err)

	fixture := &model.Fixture{
		NameValue: "fixture-model",
		Turns: [][]*model.Response{
			{{ToolCalls: []tool.ToolCall{{Name: "echo", Args: map[string]any{"value": "ping"}}}}},
			{{Content: contentPtr(content.NewText(content.RoleModel, "the answer is 42"))}},
		},
	}
	a, err := llmagent.New(llmagent.Config{
		Name:  "assistant",
		Model: fixture,
		Tools: []tool.Tool{echoTool},
	})
	require.NoError(t, err)

	svc, sess := newSession(t)
	events := drive(t, a, svc, sess, "what's the echo of ping?")

	require.Len(t, events, 3, "model call -> tool call, tool result, model call -> final text")
	require.True(t, events[0].HasFunctionCalls())
	require.Equal(t, "ping", gotArgs["value"])
	require.False(t, events[2].HasFunctionCalls())
	require.Equal(t, "the answer is 42", events[2].TextContent())
	require.Len(t, fixture.Requests, 2)
	// The second request must carry the first turn's history, including the
	// tool call and its result, not just the original user message.
	require.GreaterOrEqual(t, len(fixture.Requests[1].Messages), 2)
}

func TestLLMAgent_ExitLoopStopsReasoning(t *testing.T) {
	fixture := &model.Fixture{
		NameValue: "fixture-model",
		Turns: [][]*model.Response{
			{{
				Content:   contentPtr(content.NewText(content.RoleModel, "done")),
				ToolCalls: []tool.ToolCall{{Name: "exit_loop", Args: map[string]any{}}},
			}},
		},
	}
	a, err := llmagent.New(llmagent.Config{
		Name:  "assistant",
		Model: fixture,
		Reasoning: &llmagent.ReasoningConfig{
			EnableExitTool: true,
		},
	})
	require.NoError(t, err)

	svc, sess := newSession(t)
	events := drive(t, a, svc, sess, "wrap it up")

	require.Len(t, events, 2, "model turn calling exit_loop, then its tool-result event")
	require.Len(t, fixture.Requests, 1, "the model is never called again after exit_loop")
}

func TestLLMAgent_ToolRequiringApprovalPausesUntilDecided(t *testing.T) {
	var executed bool
	approvalTool, err := newApprovalTool(func(args map[string]any) (map[string]any, error) {
		executed = true
		return map[string]any{"content": "done"}, nil
	})
	require.NoError(t, err)

	fixture := &model.Fixture{
		NameValue: "fixture-model",
		Turns: [][]*model.Response{
			{{ToolCalls: []tool.ToolCall{{CallID: "call_1", Name: "danger", Args: map[string]any{}}}}},
		},
	}
	a, err := llmagent.New(llmagent.Config{
		Name:  "assistant",
		Model: fixture,
		Tools: []tool.Tool{approvalTool},
	})
	require.NoError(t, err)

	svc, sess := newSession(t)
	events := drive(t, a, svc, sess, "do the dangerous thing")

	require.Len(t, events, 2)
	require.True(t, events[1].Actions.RequireInput)
	require.Equal(t, []string{"call_1"}, events[1].LongRunningToolIDs)
	require.False(t, executed)
	require.Len(t, fixture.Requests, 1, "the loop stops rather than calling the model again while paused")
}

func TestLLMAgent_TransferToSubAgent(t *testing.T) {
	subFixture := &model.Fixture{
		NameValue: "sub-model",
		Turns: [][]*model.Response{
			{{Content: contentPtr(content.NewText(content.RoleModel, "handled by researcher"))}},
		},
	}
	sub, err := llmagent.New(llmagent.Config{Name: "researcher", Description: "looks things up", Model: subFixture})
	require.NoError(t, err)

	rootFixture := &model.Fixture{
		NameValue: "root-model",
		Turns: [][]*model.Response{
			{{ToolCalls: []tool.ToolCall{{Name: "transfer_to_researcher", Args: map[string]any{}}}}},
		},
	}
	root, err := llmagent.New(llmagent.Config{
		Name:      "root",
		Model:     rootFixture,
		SubAgents: []agent.Agent{sub},
	})
	require.NoError(t, err)

	svc, sess := newSession(t)
	events := drive(t, root, svc, sess, "find me something")

	require.Len(t, events, 3, "root's tool-call turn, its tool-result turn, then the researcher's reply")
	require.Equal(t, "handled by researcher", events[2].TextContent())
	require.Equal(t, "researcher", events[2].Author)
	require.Equal(t, "researcher", events[2].Branch)
}

func contentPtr(c content.Content) *content.Content { return &c }

// echoTool is a minimal CallableTool double, avoiding functiontool's generic
// struct-tag machinery for tests that only need a bare map[string]any call.
type echoTool struct {
	fn func(args map[string]any) (map[string]any, error)
}

func newEchoTool(fn func(args map[string]any) (map[string]any, error)) (tool.CallableTool, error) {
	return &echoTool{fn: fn}, nil
}

func (t *echoTool) Name() string                 { return "echo" }
func (t *echoTool) Description() string          { return "echoes its input" }
func (t *echoTool) IsLongRunning() bool          { return false }
func (t *echoTool) RequiresApproval() bool       { return false }
func (t *echoTool) Schema() map[string]any       { return nil }
func (t *echoTool) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	return t.fn(args)
}

type approvalTool struct {
	fn func(args map[string]any) (map[string]any, error)
}

func newApprovalTool(fn func(args map[string]any) (map[string]any, error)) (tool.CallableTool, error) {
	return &approvalTool{fn: fn}, nil
}

func (t *approvalTool) Name() string           { return "danger" }
func (t *approvalTool) Description() string    { return "does something irreversible" }
func (t *approvalTool) IsLongRunning() bool    { return false }
func (t *approvalTool) RequiresApproval() bool { return true }
func (t *approvalTool) Schema() map[string]any { return nil }
func (t *approvalTool) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	return t.fn(args)
}
