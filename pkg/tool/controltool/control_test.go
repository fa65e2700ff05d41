package controltool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/tool/controltool"
)

// fakeContext is the minimal tool.Context a control tool needs: it only
// ever touches Actions().
type fakeContext struct {
	agent.InvocationContext
	actions agent.EventActions
}

func (c *fakeContext) FunctionCallID() string          { return "call_1" }
func (c *fakeContext) Actions() *agent.EventActions    { return &c.actions }
func (c *fakeContext) SearchMemory(context.Context, string) ([]agent.MemoryEntry, error) {
	return nil, nil
}

func TestExitLoop(t *testing.T) {
	ctx := &fakeContext{}
	tl := controltool.ExitLoop()
	require.Equal(t, "exit_loop", tl.Name())
	require.False(t, tl.RequiresApproval())
	require.False(t, tl.IsLongRunning())

	result, err := tl.Call(ctx, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "completed", result["status"])
	require.True(t, ctx.actions.SkipSummarization)
}

func TestEscalate(t *testing.T) {
	ctx := &fakeContext{}
	tl := controltool.Escalate()
	require.Equal(t, "escalate", tl.Name())

	result, err := tl.Call(ctx, map[string]any{"reason": "stuck"})
	require.NoError(t, err)
	require.Equal(t, "escalated", result["status"])
	require.Equal(t, "stuck", result["reason"])
	require.True(t, ctx.actions.Escalate)
	require.True(t, ctx.actions.SkipSummarization)
}

func TestEscalate_DefaultsReasonWhenMissing(t *testing.T) {
	ctx := &fakeContext{}
	tl := controltool.Escalate()

	result, err := tl.Call(ctx, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "no reason provided", result["reason"])
}

func TestTransferTo(t *testing.T) {
	ctx := &fakeContext{}
	tl := controltool.TransferTo("researcher", "")
	require.Equal(t, "transfer_to_researcher", tl.Name())
	require.Contains(t, tl.Description(), "researcher")

	result, err := tl.Call(ctx, map[string]any{"request": "look this up"})
	require.NoError(t, err)
	require.Equal(t, "transferred", result["status"])
	require.Equal(t, "researcher", result["transferred_to"])
	require.Equal(t, "researcher", ctx.actions.TransferToAgent)
	require.True(t, ctx.actions.SkipSummarization)
}

func TestTransferTo_CustomDescription(t *testing.T) {
	tl := controltool.TransferTo("billing", "handles billing questions")
	require.Equal(t, "handles billing questions", tl.Description())
}
