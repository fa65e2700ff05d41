package checkpoint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/checkpoint"
	"github.com/zavora-ai/adk-go/pkg/session"
)

func TestMemoryCheckpointer_PutGetList(t *testing.T) {
	cp := checkpoint.NewMemoryCheckpointer()
	ctx := t.Context()

	first, err := cp.Put(ctx, "thread-1", checkpoint.Checkpoint{
		State:         checkpoint.State{"step": 1},
		ExecutedNodes: []string{"plan"},
		NextNodes:     []string{"review"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.CheckpointID)
	require.Equal(t, 1, first.Version)

	second, err := cp.Put(ctx, "thread-1", checkpoint.Checkpoint{State: checkpoint.State{"step": 2}})
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)

	latest, ok, err := cp.Get(ctx, "thread-1", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.CheckpointID, latest.CheckpointID)

	byID, ok, err := cp.Get(ctx, "thread-1", first.CheckpointID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, byID.Version)

	list, err := cp.List(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, ok, err = cp.Get(ctx, "missing-thread", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionCheckpointer_PutGetRoundTrips(t *testing.T) {
	svc := session.InMemoryService()
	cp := checkpoint.NewSessionCheckpointer(svc, "app", "u1")
	ctx := t.Context()

	saved, err := cp.Put(ctx, "thread-a", checkpoint.Checkpoint{
		State:         checkpoint.State{"risk": "high"},
		ExecutedNodes: []string{"plan", "review"},
		NextNodes:     []string{"execute"},
	})
	require.NoError(t, err)
	require.Equal(t, "thread-a", saved.ThreadID)

	got, ok, err := cp.Get(ctx, "thread-a", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, saved.CheckpointID, got.CheckpointID)
	require.Equal(t, "high", got.State["risk"])

	list, err := cp.List(ctx, "thread-a")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
