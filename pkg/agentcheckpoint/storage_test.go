package agentcheckpoint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agentcheckpoint"
	"github.com/zavora-ai/adk-go/pkg/session"
)

func newTestSession(t *testing.T, svc session.Service, appName, userID, sessionID string) {
	t.Helper()
	_, err := svc.Create(t.Context(), &session.CreateRequest{AppName: appName, UserID: userID, SessionID: sessionID})
	require.NoError(t, err)
}

func TestStorage_SaveLoadClear(t *testing.T) {
	svc := session.InMemoryService()
	newTestSession(t, svc, "app", "u1", "sess-1")
	storage := agentcheckpoint.NewStorage(svc)
	ctx := t.Context()

	state := agentcheckpoint.NewState("task-1", "sess-1", "u1", "app", "do it", "researcher", "inv-1")
	require.NoError(t, storage.Save(ctx, state))

	loaded, err := storage.Load(ctx, "app", "u1", "sess-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, "do it", loaded.Query)

	require.NoError(t, storage.Clear(ctx, "app", "u1", "sess-1", "task-1"))
	_, err = storage.Load(ctx, "app", "u1", "sess-1", "task-1")
	require.Error(t, err)
}

func TestStorage_ListPending(t *testing.T) {
	svc := session.InMemoryService()
	newTestSession(t, svc, "app", "u1", "sess-1")
	newTestSession(t, svc, "app", "u1", "sess-2")
	storage := agentcheckpoint.NewStorage(svc)
	ctx := t.Context()

	require.NoError(t, storage.Save(ctx, agentcheckpoint.NewState("task-1", "sess-1", "u1", "app", "q1", "a", "inv-1")))
	require.NoError(t, storage.Save(ctx, agentcheckpoint.NewState("task-2", "sess-2", "u1", "app", "q2", "a", "inv-2")))

	states, err := storage.ListPending(ctx, "app", "u1")
	require.NoError(t, err)
	require.Len(t, states, 2)
}

func TestStorage_ListPendingForUsers(t *testing.T) {
	svc := session.InMemoryService()
	newTestSession(t, svc, "app", "u1", "sess-1")
	newTestSession(t, svc, "app", "u2", "sess-2")
	storage := agentcheckpoint.NewStorage(svc)
	ctx := t.Context()

	require.NoError(t, storage.Save(ctx, agentcheckpoint.NewState("task-1", "sess-1", "u1", "app", "q1", "a", "inv-1")))
	require.NoError(t, storage.Save(ctx, agentcheckpoint.NewState("task-2", "sess-2", "u2", "app", "q2", "a", "inv-2")))

	states, err := storage.ListPendingForUsers(ctx, "app", []string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, states, 2)
}
