package plugin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
	"github.com/zavora-ai/adk-go/pkg/observability"
	"github.com/zavora-ai/adk-go/pkg/plugin"
	"github.com/zavora-ai/adk-go/pkg/session"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

func newInvCtx(t *testing.T) agent.InvocationContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(t.Context(), &session.CreateRequest{AppName: "app", UserID: "u1"})
	require.NoError(t, err)
	return agent.NewRootInvocationContext(t.Context(), "inv-1", agent.InvocationContextParams{Session: resp.Session})
}

func contentPtr(c content.Content) *content.Content { return &c }

func TestManager_OnUserMessage_ChainsModifications(t *testing.T) {
	upper := plugin.Plugin{
		Name: "upper",
		OnUserMessage: func(ctx agent.InvocationContext, c content.Content) (*content.Content, error) {
			return contentPtr(content.NewText(content.RoleUser, "UPPER:"+c.TextContent())), nil
		},
	}
	noop := plugin.Plugin{Name: "noop"}
	mgr := plugin.NewManager([]plugin.Plugin{upper, noop})

	out, err := mgr.RunOnUserMessage(newInvCtx(t), content.NewText(content.RoleUser, "hi"))
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, "UPPER:hi", out.TextContent())
}

func TestManager_OnUserMessage_NoHooksReturnsNil(t *testing.T) {
	mgr := plugin.NewManager([]plugin.Plugin{{Name: "noop"}})
	out, err := mgr.RunOnUserMessage(newInvCtx(t), content.NewText(content.RoleUser, "hi"))
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestManager_BeforeRun_FirstNonNilWins(t *testing.T) {
	never := plugin.Plugin{
		Name: "never",
		BeforeRun: func(ctx agent.InvocationContext) (*content.Content, error) {
			return contentPtr(content.NewText(content.RoleModel, "short circuited")), nil
		},
	}
	unreached := false
	second := plugin.Plugin{
		Name: "second",
		BeforeRun: func(ctx agent.InvocationContext) (*content.Content, error) {
			unreached = true
			return nil, nil
		},
	}
	mgr := plugin.NewManager([]plugin.Plugin{never, second})

	out, err := mgr.RunBeforeRun(newInvCtx(t))
	require.NoError(t, err)
	require.Equal(t, "short circuited", out.TextContent())
	require.False(t, unreached)
}

func TestManager_BeforeRun_PropagatesError(t *testing.T) {
	boom := plugin.Plugin{
		Name: "boom",
		BeforeRun: func(ctx agent.InvocationContext) (*content.Content, error) {
			return nil, errors.New("boom")
		},
	}
	mgr := plugin.NewManager([]plugin.Plugin{boom})
	_, err := mgr.RunBeforeRun(newInvCtx(t))
	require.Error(t, err)
}

func TestManager_AfterRun_RunsEveryHook(t *testing.T) {
	var calls []string
	mgr := plugin.NewManager([]plugin.Plugin{
		{Name: "a", AfterRun: func(agent.InvocationContext) { calls = append(calls, "a") }},
		{Name: "b", AfterRun: func(agent.InvocationContext) { calls = append(calls, "b") }},
	})
	mgr.RunAfterRun(newInvCtx(t))
	require.Equal(t, []string{"a", "b"}, calls)
}

func TestManager_BeforeModelCallback_SkipsOnFirstResponse(t *testing.T) {
	resp := &model.Response{Content: contentPtr(content.NewText(content.RoleModel, "cached"))}
	mgr := plugin.NewManager([]plugin.Plugin{
		{Name: "cache", BeforeModel: func(agent.InvocationContext, *model.Request) (*model.Response, error) { return resp, nil }},
	})
	cb := mgr.BeforeModelCallback()
	out, err := cb(newInvCtx(t), &model.Request{})
	require.NoError(t, err)
	require.Same(t, resp, out)
}

func TestManager_AfterModelCallback_ChainsOnSuccess(t *testing.T) {
	mgr := plugin.NewManager([]plugin.Plugin{
		{Name: "rewrite", AfterModel: func(ctx agent.InvocationContext, resp *model.Response, err error) (*model.Response, error) {
			return &model.Response{Content: contentPtr(content.NewText(content.RoleModel, "rewritten"))}, nil
		}},
	})
	cb := mgr.AfterModelCallback()
	out, err := cb(newInvCtx(t), &model.Response{Content: contentPtr(content.NewText(content.RoleModel, "original"))}, nil)
	require.NoError(t, err)
	require.Equal(t, "rewritten", out.TextContent())
}

func TestManager_AfterModelCallback_OnErrorUsesOnModelError(t *testing.T) {
	fallback := &model.Response{Content: contentPtr(content.NewText(content.RoleModel, "fallback"))}
	mgr := plugin.NewManager([]plugin.Plugin{
		{Name: "retry", OnModelError: func(agent.InvocationContext, *model.Request, string) (*model.Response, error) {
			return fallback, nil
		}},
	})
	cb := mgr.AfterModelCallback()
	out, err := cb(newInvCtx(t), nil, errors.New("rate limited"))
	require.NoError(t, err)
	require.Same(t, fallback, out)
}

func TestManager_AfterToolCallback_FallsBackOnError(t *testing.T) {
	mgr := plugin.NewManager([]plugin.Plugin{
		{Name: "fallback", OnToolError: func(ctx tool.Context, t tool.Tool, args map[string]any, errMsg string) (map[string]any, error) {
			return map[string]any{"content": "recovered"}, nil
		}},
	})
	cb := mgr.AfterToolCallback()
	out, err := cb(nil, nil, nil, nil, errors.New("tool exploded"))
	require.NoError(t, err)
	require.Equal(t, "recovered", out["content"])
}

func TestManager_AfterToolCallback_PropagatesErrorWithoutFallback(t *testing.T) {
	mgr := plugin.NewManager([]plugin.Plugin{{Name: "noop"}})
	cb := mgr.AfterToolCallback()
	_, err := cb(nil, nil, nil, nil, errors.New("tool exploded"))
	require.Error(t, err)
}

func TestManager_Close_RespectsTimeout(t *testing.T) {
	mgr := plugin.NewManager([]plugin.Plugin{
		{Name: "slow", Close: func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		}},
	}).WithCloseTimeout(time.Millisecond)

	done := make(chan struct{})
	go func() {
		mgr.Close(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return promptly after its timeout")
	}
}

func TestNewMetricsPlugin_RecordsToolErrors(t *testing.T) {
	recorder, mp, err := observability.NewPrometheusRecorder()
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	p := plugin.NewMetricsPlugin(recorder)
	require.Equal(t, "metrics", p.Name)
	require.NotNil(t, p.OnToolError)

	require.NotPanics(t, func() {
		_, _ = p.OnToolError(nil, fakeTool{}, nil, "boom")
	})
}

type fakeTool struct{}

func (fakeTool) Name() string             { return "fake" }
func (fakeTool) Description() string      { return "" }
func (fakeTool) IsLongRunning() bool      { return false }
func (fakeTool) RequiresApproval() bool   { return false }
func (fakeTool) Schema() map[string]any   { return nil }
