package agentcheckpoint_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agentcheckpoint"
)

func TestPhaseAndTypeConstants(t *testing.T) {
	require.Equal(t, agentcheckpoint.Phase("tool_approval"), agentcheckpoint.PhaseToolApproval)
	require.Equal(t, agentcheckpoint.Type("interval"), agentcheckpoint.TypeInterval)
}

func TestState_SerializeDeserializeRoundTrips(t *testing.T) {
	state := agentcheckpoint.NewState("task-1", "sess-1", "user-1", "app", "do it", "researcher", "inv-1").
		WithPhase(agentcheckpoint.PhaseIterationEnd).
		WithType(agentcheckpoint.TypeInterval).
		WithAgentState(&agentcheckpoint.AgentStateSnapshot{Iteration: 3, WorkflowType: "loop", LoopIteration: 2})

	data, err := state.Serialize()
	require.NoError(t, err)

	restored, err := agentcheckpoint.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, "task-1", restored.TaskID)
	require.Equal(t, agentcheckpoint.PhaseIterationEnd, restored.Phase)
	require.Equal(t, agentcheckpoint.TypeInterval, restored.CheckpointType)
	require.Equal(t, 3, restored.AgentState.Iteration)
	require.False(t, restored.CheckpointTime.IsZero())
}

func TestState_WithErrorSetsErrorPhase(t *testing.T) {
	state := agentcheckpoint.NewState("t", "s", "u", "a", "q", "agent", "inv")
	state.WithError(errors.New("boom"))
	require.Equal(t, agentcheckpoint.PhaseError, state.Phase)
	require.Equal(t, agentcheckpoint.TypeError, state.CheckpointType)
	require.Equal(t, "boom", state.Error)
}

func TestState_IsExpired(t *testing.T) {
	state := &agentcheckpoint.State{CheckpointTime: time.Now().Add(-2 * time.Hour)}
	require.True(t, state.IsExpired(time.Hour))
	require.False(t, state.IsExpired(0))

	fresh := &agentcheckpoint.State{CheckpointTime: time.Now()}
	require.False(t, fresh.IsExpired(time.Hour))
}

func TestState_NeedsUserInput(t *testing.T) {
	state := agentcheckpoint.NewState("t", "s", "u", "a", "q", "agent", "inv").
		WithPhase(agentcheckpoint.PhaseToolApproval).
		WithPendingToolCall(&agentcheckpoint.PendingToolCall{Name: "delete_backups", RequiresApproval: true})
	require.True(t, state.NeedsUserInput())

	state.PendingToolCall.RequiresApproval = false
	require.False(t, state.NeedsUserInput())
}
