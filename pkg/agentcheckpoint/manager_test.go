package agentcheckpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agentcheckpoint"
	"github.com/zavora-ai/adk-go/pkg/session"
)

func enabledConfig() *agentcheckpoint.Config {
	cfg := &agentcheckpoint.Config{}
	enabled := true
	cfg.Enabled = &enabled
	cfg.AfterTools = &enabled
	cfg.BeforeLLM = &enabled
	cfg.SetDefaults()
	return cfg
}

func TestManager_SaveLoadClear(t *testing.T) {
	svc := session.InMemoryService()
	newTestSession(t, svc, "app", "u1", "sess-1")
	mgr := agentcheckpoint.NewManager(enabledConfig(), svc)
	ctx := t.Context()

	state := agentcheckpoint.NewState("task-1", "sess-1", "u1", "app", "q", "a", "inv-1")
	require.NoError(t, mgr.SaveCheckpoint(ctx, state))

	loaded, err := mgr.LoadCheckpoint(ctx, "app", "u1", "sess-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, "task-1", loaded.TaskID)

	require.NoError(t, mgr.ClearCheckpoint(ctx, "app", "u1", "sess-1", "task-1"))
}

func TestManager_SaveCheckpointNoOpWhenDisabled(t *testing.T) {
	svc := session.InMemoryService()
	mgr := agentcheckpoint.NewManager(nil, svc)
	require.False(t, mgr.IsEnabled())

	// Disabled: no session need exist, Save must not attempt anything.
	err := mgr.SaveCheckpoint(t.Context(), agentcheckpoint.NewState("t", "s", "u", "app", "q", "a", "inv"))
	require.NoError(t, err)
}

func TestHooks_BeforeLLMCallRespectsConfig(t *testing.T) {
	svc := session.InMemoryService()
	newTestSession(t, svc, "app", "u1", "sess-1")
	mgr := agentcheckpoint.NewManager(enabledConfig(), svc)
	hooks := agentcheckpoint.NewHooks(mgr)

	state := agentcheckpoint.NewState("task-1", "sess-1", "u1", "app", "q", "a", "inv-1")
	hooks.BeforeLLMCall(t.Context(), state)
	require.Equal(t, agentcheckpoint.PhasePreLLM, state.Phase)

	loaded, err := mgr.LoadCheckpoint(t.Context(), "app", "u1", "sess-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, agentcheckpoint.PhasePreLLM, loaded.Phase)
}

func TestHooks_NilIsNoOp(t *testing.T) {
	var hooks *agentcheckpoint.Hooks
	hooks.BeforeLLMCall(context.Background(), agentcheckpoint.NewState("t", "s", "u", "a", "q", "agent", "inv"))
	hooks.OnComplete(context.Background(), "a", "u", "s", "t")
}

func TestManager_RecoverOnStartupResumesEligibleTasks(t *testing.T) {
	svc := session.InMemoryService()
	newTestSession(t, svc, "app", "u1", "sess-1")

	cfg := enabledConfig()
	autoResume := true
	cfg.Recovery.AutoResume = &autoResume

	mgr := agentcheckpoint.NewManager(cfg, svc)
	resumed := make(chan string, 1)
	mgr.SetResumeCallback(func(ctx context.Context, state *agentcheckpoint.State) error {
		resumed <- state.TaskID
		return nil
	})

	state := agentcheckpoint.NewState("task-1", "sess-1", "u1", "app", "q", "a", "inv-1").
		WithPhase(agentcheckpoint.PhaseIterationEnd)
	require.NoError(t, mgr.SaveCheckpoint(t.Context(), state))

	require.NoError(t, mgr.RecoverOnStartup(t.Context(), "app", []string{"u1"}))
	require.Equal(t, "task-1", <-resumed)
}
