package plugin

import (
	"context"
	"errors"
	"time"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
	"github.com/zavora-ai/adk-go/pkg/observability"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

// NewMetricsPlugin wraps an observability.Recorder as a Plugin, so a host
// can record agent/tool/model metrics through the same hook pipeline it
// uses for everything else rather than wiring the recorder separately into
// every agent. It times an agent's run from BeforeAgent to AfterAgent and
// records tool and model errors via the OnToolError and OnModelError hooks.
// Successful tool calls and model calls are not recorded by this plugin.
func NewMetricsPlugin(recorder observability.Recorder) Plugin {
	starts := make(map[string]time.Time)

	return Plugin{
		Name:     "metrics",
		Manifest: &Manifest{Description: "Records agent/tool/model metrics via the observability recorder."},

		BeforeAgent: func(ctx agent.InvocationContext) (*content.Content, error) {
			starts[ctx.InvocationID()] = time.Now()
			return nil, nil
		},
		AfterAgent: func(ctx agent.InvocationContext) (*content.Content, error) {
			start, ok := starts[ctx.InvocationID()]
			if !ok {
				return nil, nil
			}
			delete(starts, ctx.InvocationID())
			recorder.RecordAgentTurn(ctx, ctx.Agent().Name(), time.Since(start), nil)
			return nil, nil
		},

		OnToolError: func(ctx tool.Context, t tool.Tool, args map[string]any, errMsg string) (map[string]any, error) {
			recorder.RecordToolError(t.Name(), errMsg)
			return nil, nil
		},
		OnModelError: func(ctx agent.InvocationContext, req *model.Request, errMsg string) (*model.Response, error) {
			recorder.RecordLLMCall(ctx, "", 0, 0, 0, errors.New(errMsg))
			return nil, nil
		},
		Close: func(ctx context.Context) error { return nil },
	}
}
