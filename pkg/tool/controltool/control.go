// Package controltool provides the tools a reasoning loop offers an LLM to
// explicitly control its own termination and delegation, rather than
// relying solely on "no tool calls" as the only signal to stop: exit_loop
// ends the turn, escalate hands the turn to a parent agent, and TransferTo
// builds a per-sub-agent delegation tool. All three are built on flagTool,
// since their only real difference is which EventActions fields they set
// and what schema they advertise.
package controltool

import "github.com/zavora-ai/adk-go/pkg/tool"

// flagTool is a CallableTool whose entire implementation is "run a closure
// that sets EventActions fields the reasoning loop already checks for
// termination or delegation."
type flagTool struct {
	name        string
	description string
	schema      map[string]any
	call        func(ctx tool.Context, args map[string]any) (map[string]any, error)
}

func (t *flagTool) Name() string           { return t.name }
func (t *flagTool) Description() string    { return t.description }
func (t *flagTool) Schema() map[string]any { return t.schema }
func (t *flagTool) IsLongRunning() bool    { return false }
func (t *flagTool) RequiresApproval() bool { return false }

func (t *flagTool) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	return t.call(ctx, args)
}

var noArgsSchema = map[string]any{"type": "object", "properties": map[string]any{}}

// ExitLoop returns a tool that ends the reasoning loop with the model's
// current output as the final answer.
//
// It sets only SkipSummarization, not Escalate: a bare exit_loop call ends
// the current agent's own loop but does not by itself route control to a
// parent the way Escalate does. An agent that wants "stop and hand off to
// my parent" in one call should be given Escalate instead of (or alongside)
// ExitLoop.
func ExitLoop() tool.CallableTool {
	return &flagTool{
		name:        "exit_loop",
		description: "Ends the reasoning loop. Call this when your task is complete and you have a final answer.",
		schema:      noArgsSchema,
		call: func(ctx tool.Context, args map[string]any) (map[string]any, error) {
			ctx.Actions().SkipSummarization = true
			return map[string]any{"status": "completed"}, nil
		},
	}
}

// Escalate returns a tool that hands the turn to the invoking agent's
// parent, for when the agent is stuck or the task is out of scope.
func Escalate() tool.CallableTool {
	return &flagTool{
		name:        "escalate",
		description: "Escalates to a parent agent. Call this when you need help or the task is outside your capabilities.",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{"type": "string", "description": "why you are escalating"},
			},
			"required": []string{"reason"},
		},
		call: func(ctx tool.Context, args map[string]any) (map[string]any, error) {
			reason, _ := args["reason"].(string)
			if reason == "" {
				reason = "no reason provided"
			}
			ctx.Actions().Escalate = true
			ctx.Actions().SkipSummarization = true
			return map[string]any{"status": "escalated", "reason": reason}, nil
		},
	}
}

// TransferTo returns a tool that transfers control to the named sub-agent.
// One is synthesized per delegable sub-agent so the model sees a distinct,
// named option for each instead of one generic "transfer" call.
func TransferTo(agentName, description string) tool.CallableTool {
	if description == "" {
		description = "Transfers control to the " + agentName + " agent."
	}
	return &flagTool{
		name:        "transfer_to_" + agentName,
		description: description,
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request": map[string]any{"type": "string", "description": "what you want " + agentName + " to do"},
			},
			"required": []string{"request"},
		},
		call: func(ctx tool.Context, args map[string]any) (map[string]any, error) {
			request, _ := args["request"].(string)
			ctx.Actions().TransferToAgent = agentName
			ctx.Actions().SkipSummarization = true
			return map[string]any{"status": "transferred", "transferred_to": agentName, "request": request}, nil
		},
	}
}

var _ tool.CallableTool = (*flagTool)(nil)
