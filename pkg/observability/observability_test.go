package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/observability"
)

func TestNoop_NeverPanics(t *testing.T) {
	var r observability.Noop
	r.RecordAgentTurn(context.Background(), "agent", time.Millisecond, nil)
	r.RecordToolCall("tool", time.Millisecond)
	r.RecordToolError("tool", "boom")
	r.RecordLLMCall(context.Background(), "model", time.Millisecond, 1, 2, errors.New("fail"))
}

func TestNilOTelRecorder_IsSafeToCall(t *testing.T) {
	var r *observability.OTelRecorder
	require.NotPanics(t, func() {
		r.RecordAgentTurn(context.Background(), "agent", time.Millisecond, nil)
		r.RecordToolCall("tool", time.Millisecond)
		r.RecordToolError("tool", "boom")
		r.RecordLLMCall(context.Background(), "model", time.Millisecond, 1, 2, nil)
	})
}

func TestNewPrometheusRecorder_RegistersInstrumentsAndRecords(t *testing.T) {
	r, mp, err := observability.NewPrometheusRecorder()
	require.NoError(t, err)
	require.NotNil(t, r)
	require.NotNil(t, mp)
	defer mp.Shutdown(context.Background())

	require.NotPanics(t, func() {
		r.RecordAgentTurn(context.Background(), "assistant", 10*time.Millisecond, nil)
		r.RecordAgentTurn(context.Background(), "assistant", 5*time.Millisecond, errors.New("boom"))
		r.RecordToolCall("search", time.Millisecond)
		r.RecordToolError("search", "timeout")
		r.RecordLLMCall(context.Background(), "fixture-model", time.Millisecond, 100, 20, nil)
	})
}
