package llmagent

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

// flow runs one llmAgent's reasoning loop: build a request, call the model,
// execute any requested tool calls, and repeat until the model stops asking
// for tools, transfers to a sub-agent, or the safety limit is hit.
type flow struct {
	agent *llmAgent
}

func newFlow(a *llmAgent) *flow { return &flow{agent: a} }

// Run drives the loop. Each iteration runs exactly one model call and, if
// requested, one round of tool execution; the loop stops as soon as a
// model turn asks for no further tool calls, transfers to a sub-agent, or
// pauses on a tool awaiting human approval.
func (f *flow) Run(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		max := f.agent.reasoning.MaxIterations
		for iteration := 0; iteration < max; iteration++ {
			if ctx.Err() != nil {
				return
			}

			var transferred, moreWork bool
			stopped := false
			for ev, err := range f.runOneStep(ctx, &transferred, &moreWork) {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(ev, nil) {
					stopped = true
					break
				}
			}
			if stopped || transferred || !moreWork {
				return
			}
		}
		yield(nil, fmt.Errorf("llmagent: %q exceeded %d reasoning iterations", f.agent.Name(), max))
	}
}

// runOneStep builds and sends one request, yields the model's response as
// an event, and if it asked for tool calls, executes them and yields the
// tool-response event (following an agent transfer inline if one occurs).
// moreWork is set only when a tool round completed with a real result the
// model hasn't seen yet, so the outer loop knows to call the model again;
// a plain text turn, a transfer, a paused approval, or a control tool like
// exit_loop/escalate (SkipSummarization) all leave it false.
func (f *flow) runOneStep(ctx agent.InvocationContext, transferred, moreWork *bool) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		a := f.agent

		req := &model.Request{}
		if err := a.pipeline.ProcessRequest(ctx, req); err != nil {
			yield(nil, fmt.Errorf("llmagent: %w", err))
			return
		}

		if ctx.Ended() {
			return
		}

		resp, err := f.callModel(ctx, req, yield)
		if err != nil {
			yield(nil, err)
			return
		}
		if resp == nil {
			return
		}

		if err := a.pipeline.ProcessResponse(ctx, req, resp); err != nil {
			yield(nil, fmt.Errorf("llmagent: %w", err))
			return
		}

		if resp.Content == nil && resp.ErrorCode == "" && !resp.HasToolCalls() {
			return
		}

		modelEvent := f.buildModelEvent(ctx, resp)
		if !yield(modelEvent, nil) {
			return
		}
		if !resp.HasToolCalls() {
			return
		}

		toolEvent := f.handleToolCalls(ctx, resp.ToolCalls, yield)
		if toolEvent == nil {
			return
		}
		if !yield(toolEvent, nil) {
			return
		}

		if target := toolEvent.Actions.TransferToAgent; target != "" {
			*transferred = true
			f.handleTransfer(ctx, target, yield)
			return
		}
		// SkipSummarization means a control tool (exit_loop, escalate) ran:
		// its result is terminal, not something to feed back for another
		// model turn. RequireInput means a call is paused on approval, so
		// there's nothing new for the model to react to yet either.
		if !toolEvent.Actions.RequireInput && !toolEvent.Actions.SkipSummarization {
			*moreWork = true
		}
	}
}

// callModel runs the before-model callbacks (any non-nil response short
// circuits the call), streams the model's output (forwarding partial
// chunks as partial events), runs the after-model callbacks on the final
// response, and records the call's latency/token metrics.
func (f *flow) callModel(ctx agent.InvocationContext, req *model.Request, yield func(*agent.Event, error) bool) (*model.Response, error) {
	a := f.agent

	for _, cb := range a.beforeModelCallbacks {
		resp, err := cb(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("llmagent: before-model callback: %w", err)
		}
		if resp != nil {
			return resp, nil
		}
	}

	start := time.Now()
	var final *model.Response
	var genErr error

	for resp, err := range a.model.GenerateContent(ctx, req, a.enableStreaming) {
		if err != nil {
			genErr = err
			break
		}
		if resp == nil {
			continue
		}
		if resp.Partial {
			if !yield(f.buildPartialEvent(ctx, resp), nil) {
				return nil, fmt.Errorf("llmagent: stream consumer stopped early")
			}
			continue
		}
		for _, cb := range a.afterModelCallbacks {
			replaced, cbErr := cb(ctx, resp, nil)
			if cbErr != nil {
				return nil, fmt.Errorf("llmagent: after-model callback: %w", cbErr)
			}
			if replaced != nil {
				resp = replaced
			}
		}
		final = resp
	}

	if a.recorder != nil {
		inTokens, outTokens := 0, 0
		if final != nil && final.Usage != nil {
			inTokens, outTokens = final.Usage.PromptTokens, final.Usage.CompletionTokens
		}
		a.recorder.RecordLLMCall(ctx, a.model.Name(), time.Since(start), inTokens, outTokens, genErr)
	}
	if genErr != nil {
		return nil, fmt.Errorf("llmagent: generate: %w", genErr)
	}
	return final, nil
}

// buildModelEvent turns a final model response into the event an agent
// step emits: any thinking block first (so it stays ordered ahead of the
// text/tool-call parts it reasoned into), then the response's own content,
// then one FunctionCall part per requested tool call.
func (f *flow) buildModelEvent(ctx agent.InvocationContext, resp *model.Response) *agent.Event {
	a := f.agent
	populateCallIDs(resp)

	ev := agent.NewEvent(ctx.InvocationID())
	ev.Author = a.Name()
	ev.Branch = ctx.Branch()
	ev.FinishReason = string(resp.FinishReason)
	ev.ErrorCode = resp.ErrorCode
	ev.ErrorMessage = resp.ErrorMessage
	if resp.Usage != nil {
		ev.LlmResponse = &agent.LlmResponseMeta{
			Usage: &agent.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
			FinishReason: string(resp.FinishReason),
			ErrorCode:    resp.ErrorCode,
			ErrorMessage: resp.ErrorMessage,
		}
	}

	var parts []content.Part
	if resp.Thinking != nil && resp.Thinking.Content != "" {
		id := resp.Thinking.ID
		if id == "" {
			id = "thinking_" + uuid.NewString()
		}
		parts = append(parts, content.Thinking{ID: id, Text: resp.Thinking.Content, Signature: resp.Thinking.Signature})
	}
	if resp.Content != nil {
		parts = append(parts, resp.Content.Parts...)
	}
	for _, tc := range resp.ToolCalls {
		parts = append(parts, content.FunctionCall{Name: tc.Name, Args: tc.Args, CallID: tc.CallID})
	}
	c := content.Content{Role: content.RoleModel, Parts: parts}
	ev.Content = &c

	ev.Actions.StateDelta = make(map[string]any)
	if a.outputKey != "" {
		if text := c.TextContent(); text != "" {
			ev.Actions.StateDelta[a.outputKey] = text
		}
	}
	return ev
}

// buildPartialEvent mirrors buildModelEvent for one streaming chunk: no
// call ids are assigned yet (the model hasn't finished the turn) and no
// StateDelta is written, since only the aggregated final response counts
// toward OutputKey.
func (f *flow) buildPartialEvent(ctx agent.InvocationContext, resp *model.Response) *agent.Event {
	ev := agent.NewEvent(ctx.InvocationID())
	ev.Author = f.agent.Name()
	ev.Branch = ctx.Branch()
	ev.Partial = true

	var parts []content.Part
	if resp.Thinking != nil && resp.Thinking.Content != "" {
		parts = append(parts, content.Thinking{ID: resp.Thinking.ID, Text: resp.Thinking.Content, Signature: resp.Thinking.Signature})
	}
	if resp.Content != nil {
		parts = append(parts, resp.Content.Parts...)
	}
	if len(parts) > 0 {
		c := content.Content{Role: content.RoleModel, Parts: parts}
		ev.Content = &c
	}
	return ev
}

func populateCallIDs(resp *model.Response) {
	for i := range resp.ToolCalls {
		if resp.ToolCalls[i].CallID == "" {
			resp.ToolCalls[i].CallID = "call_" + uuid.NewString()
		}
	}
}

// handleToolCalls executes every requested call (approval-gated calls are
// checked against a pending decision first) and folds the results into a
// single tool-response event, so one model turn's worth of calls always
// produces exactly one follow-up event.
func (f *flow) handleToolCalls(ctx agent.InvocationContext, calls []tool.ToolCall, yield func(*agent.Event, error) bool) *agent.Event {
	a := f.agent

	var parts []content.Part
	merged := &agent.EventActions{StateDelta: make(map[string]any)}
	var longRunning []string
	var prompts []string

	for _, tc := range calls {
		result, isError, longRun, prompt := f.executeCall(ctx, tc, merged, yield)
		if longRun {
			longRunning = append(longRunning, tc.CallID)
			prompts = append(prompts, prompt)
		}
		parts = append(parts, content.FunctionResponse{
			Name:     tc.Name,
			CallID:   tc.CallID,
			Response: map[string]any{"result": result},
			IsError:  isError,
		})
	}

	ev := agent.NewEvent(ctx.InvocationID())
	ev.Author = a.Name()
	ev.Branch = ctx.Branch()
	c := content.Content{Role: content.RoleTool, Parts: parts}
	ev.Content = &c
	ev.Actions = *merged
	if len(longRunning) > 0 {
		ev.LongRunningToolIDs = longRunning
		ev.Actions.RequireInput = true
		ev.Actions.InputPrompt = strings.Join(prompts, "\n")
	}
	return ev
}

// executeCall runs one tool call to completion and returns the text to put
// in its FunctionResponse, whether that text describes an error, and
// whether the call is instead paused awaiting human approval.
func (f *flow) executeCall(ctx agent.InvocationContext, tc tool.ToolCall, merged *agent.EventActions, yield func(*agent.Event, error) bool) (result string, isError, longRunning bool, prompt string) {
	a := f.agent
	t := a.findTool(ctx, tc.Name)
	if t == nil {
		return fmt.Sprintf("error: tool %q is not available", tc.Name), true, false, ""
	}

	if t.RequiresApproval() {
		switch approvalDecision(ctx, tc.CallID, tc.Name) {
		case approvalApprove:
			clearApprovalDecision(ctx, tc.CallID, tc.Name)
		case approvalDeny:
			clearApprovalDecision(ctx, tc.CallID, tc.Name)
			merged.SkipSummarization = true
			return "tool execution denied by the user; do not retry this call", true, false, ""
		default:
			return "awaiting approval", false, true,
				fmt.Sprintf("tool %q requires approval with arguments %v", tc.Name, tc.Args)
		}
	}

	toolCtx := newToolContext(ctx, tc.CallID)
	var text string
	var err error
	if st, ok := t.(tool.StreamingTool); ok {
		text, err = f.callStreamingTool(ctx, toolCtx, st, tc, yield)
	} else {
		var res map[string]any
		res, err = f.callTool(toolCtx, t, tc.Args)
		text = formatToolResult(res)
	}
	mergeEventActions(merged, toolCtx.Actions())
	if err != nil {
		return fmt.Sprintf("error: %v", err), true, false, ""
	}
	return text, false, false, ""
}

// callTool runs the before/after-tool callbacks around a CallableTool
// invocation and records its latency/error metrics.
func (f *flow) callTool(toolCtx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error) {
	a := f.agent

	for _, cb := range a.beforeToolCallbacks {
		result, err := cb(toolCtx, t, args)
		if err != nil {
			return nil, fmt.Errorf("before-tool callback: %w", err)
		}
		if result != nil {
			return result, nil
		}
	}

	callable, ok := t.(tool.CallableTool)
	if !ok {
		return nil, fmt.Errorf("tool %q is not callable", t.Name())
	}

	start := time.Now()
	result, err := callable.Call(toolCtx, args)
	if a.recorder != nil {
		a.recorder.RecordToolCall(t.Name(), time.Since(start))
		if err != nil {
			a.recorder.RecordToolError(t.Name(), "execution_error")
		}
	}

	for _, cb := range a.afterToolCallbacks {
		replaced, cbErr := cb(toolCtx, t, args, result, err)
		if cbErr != nil {
			return nil, fmt.Errorf("after-tool callback: %w", cbErr)
		}
		if replaced != nil {
			result = replaced
		}
	}
	return result, err
}

// callStreamingTool runs a StreamingTool to completion, yielding a partial
// tool-response event for every incremental chunk so a caller can surface
// progress, and returns the final chunk's text.
func (f *flow) callStreamingTool(ctx agent.InvocationContext, toolCtx tool.Context, st tool.StreamingTool, tc tool.ToolCall, yield func(*agent.Event, error) bool) (string, error) {
	a := f.agent

	for _, cb := range a.beforeToolCallbacks {
		result, err := cb(toolCtx, st, tc.Args)
		if err != nil {
			return "", fmt.Errorf("before-tool callback: %w", err)
		}
		if result != nil {
			return formatToolResult(result), nil
		}
	}

	start := time.Now()
	var accumulated strings.Builder
	var final *tool.Result
	var streamErr error

	for chunk, err := range st.CallStreaming(toolCtx, tc.Args) {
		if err != nil {
			streamErr = err
			break
		}
		if chunk == nil {
			continue
		}
		if chunk.Streaming {
			fmt.Fprintf(&accumulated, "%v", chunk.Content)
			ev := agent.NewEvent(ctx.InvocationID())
			ev.Author = a.Name()
			ev.Branch = ctx.Branch()
			ev.Partial = true
			c := content.Content{Role: content.RoleTool, Parts: []content.Part{content.FunctionResponse{
				Name:     tc.Name,
				CallID:   tc.CallID,
				Response: map[string]any{"result": accumulated.String()},
			}}}
			ev.Content = &c
			if !yield(ev, nil) {
				return accumulated.String(), fmt.Errorf("stream consumer stopped early")
			}
			continue
		}
		final = chunk
	}

	if a.recorder != nil {
		a.recorder.RecordToolCall(st.Name(), time.Since(start))
		if streamErr != nil || (final != nil && final.Error != "") {
			a.recorder.RecordToolError(st.Name(), "execution_error")
		}
	}

	var result map[string]any
	var err error
	switch {
	case streamErr != nil:
		err = streamErr
	case final != nil && final.Error != "":
		err = fmt.Errorf("%s", final.Error)
	case final != nil:
		result = map[string]any{"content": final.Content}
	default:
		result = map[string]any{"content": accumulated.String()}
	}

	for _, cb := range a.afterToolCallbacks {
		replaced, cbErr := cb(toolCtx, st, tc.Args, result, err)
		if cbErr != nil {
			return "", fmt.Errorf("after-tool callback: %w", cbErr)
		}
		if replaced != nil {
			result = replaced
		}
	}
	if err != nil {
		return "", err
	}
	return formatToolResult(result), nil
}

func formatToolResult(result map[string]any) string {
	if result == nil {
		return "(no output)"
	}
	c, ok := result["content"]
	if !ok {
		return fmt.Sprintf("%v", result)
	}
	if s, ok := c.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return "(no output)"
		}
		return s
	}
	return fmt.Sprintf("%v", c)
}

// handleTransfer runs the named sub-agent to completion on a child context
// sharing the session but narrowed to the sub-agent's own branch,
// forwarding every event it produces.
func (f *flow) handleTransfer(ctx agent.InvocationContext, name string, yield func(*agent.Event, error) bool) {
	if ctx.DelegationDepth()+1 > agent.MaxDelegationDepth {
		yield(nil, agent.ErrDelegationDepthExceeded)
		return
	}

	var target agent.Agent
	for _, sub := range f.agent.SubAgents() {
		if sub.Name() == name {
			target = sub
			break
		}
	}
	if target == nil {
		yield(nil, fmt.Errorf("llmagent: transfer target %q is not a sub-agent of %q", name, f.agent.Name()))
		return
	}

	branch := target.Name()
	if parent := ctx.Branch(); parent != "" {
		branch = parent + "." + branch
	}
	childCtx := agent.NewInvocationContext(ctx, agent.InvocationContextParams{
		Agent:       target,
		Session:     ctx.Session(),
		Artifacts:   ctx.Artifacts(),
		Memory:      ctx.Memory(),
		UserContent: ctx.UserContent(),
		RunConfig:   ctx.RunConfig(),
		Branch:      branch,
	})

	for ev, err := range target.Run(childCtx) {
		if !yield(ev, err) || err != nil {
			return
		}
	}
}

// Approval state is tracked as ordinary temp-scoped session state, set by
// the host application (CLI, API handler) once a human has reviewed a
// paused call, keyed first by call id and falling back to tool name so one
// decision can cover every call to the same tool in a turn.
const (
	approvalApprove = "approve"
	approvalDeny    = "deny"

	approvalCallKeyPrefix = agent.KeyPrefixTemp + "approval:call:"
	approvalNameKeyPrefix = agent.KeyPrefixTemp + "approval:name:"
)

func approvalDecision(ctx agent.InvocationContext, callID, name string) string {
	session := ctx.Session()
	if session == nil {
		return ""
	}
	state := session.State()
	if state == nil {
		return ""
	}
	if callID != "" {
		if v, err := state.Get(approvalCallKeyPrefix + callID); err == nil {
			if s, _ := v.(string); s != "" {
				return s
			}
		}
	}
	if name != "" {
		if v, err := state.Get(approvalNameKeyPrefix + name); err == nil {
			if s, _ := v.(string); s != "" {
				return s
			}
		}
	}
	return ""
}

func clearApprovalDecision(ctx agent.InvocationContext, callID, name string) {
	session := ctx.Session()
	if session == nil {
		return
	}
	state := session.State()
	if state == nil {
		return
	}
	if callID != "" {
		_ = state.Delete(approvalCallKeyPrefix + callID)
	}
	if name != "" {
		_ = state.Delete(approvalNameKeyPrefix + name)
	}
}
