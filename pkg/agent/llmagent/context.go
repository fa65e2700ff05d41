package llmagent

import (
	"context"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

// toolContext implements tool.Context by wrapping the invocation context
// that's running the current step and giving each tool call its own
// EventActions sink, merged into the step's event once every call in the
// turn has run.
type toolContext struct {
	agent.InvocationContext
	functionCallID string
	actions        *agent.EventActions
}

func newToolContext(inv agent.InvocationContext, functionCallID string) *toolContext {
	return &toolContext{
		InvocationContext: inv,
		functionCallID:    functionCallID,
		actions:           &agent.EventActions{StateDelta: make(map[string]any)},
	}
}

func (c *toolContext) FunctionCallID() string { return c.functionCallID }

func (c *toolContext) Actions() *agent.EventActions { return c.actions }

// EmitAction overrides the embedded InvocationContext's no-op so that
// agent.State mutations or loop-control flags a tool sets (via EmitAction
// rather than Actions() directly) land on this call's own action sink.
func (c *toolContext) EmitAction(delta agent.EventActions) {
	mergeEventActions(c.actions, &delta)
}

func (c *toolContext) SearchMemory(ctx context.Context, query string) ([]agent.MemoryEntry, error) {
	memory := c.InvocationContext.Memory()
	if memory == nil {
		return nil, nil
	}
	return memory.Search(ctx, query)
}

// mergeEventActions folds src into dst: state deltas and artifact deltas
// are merged key by key (src wins on conflict); flags OR together; the
// first non-empty TransferToAgent/InputPrompt wins.
func mergeEventActions(dst, src *agent.EventActions) {
	if src == nil {
		return
	}
	if dst.StateDelta == nil {
		dst.StateDelta = make(map[string]any)
	}
	for k, v := range src.StateDelta {
		dst.StateDelta[k] = v
	}
	if len(src.ArtifactDelta) > 0 {
		if dst.ArtifactDelta == nil {
			dst.ArtifactDelta = make(map[string]int64)
		}
		for k, v := range src.ArtifactDelta {
			dst.ArtifactDelta[k] = v
		}
	}
	if dst.TransferToAgent == "" {
		dst.TransferToAgent = src.TransferToAgent
	}
	dst.Escalate = dst.Escalate || src.Escalate
	dst.SkipSummarization = dst.SkipSummarization || src.SkipSummarization
	dst.RequireInput = dst.RequireInput || src.RequireInput
	if dst.InputPrompt == "" {
		dst.InputPrompt = src.InputPrompt
	}
	if dst.Compaction == nil {
		dst.Compaction = src.Compaction
	}
}

var _ tool.Context = (*toolContext)(nil)
