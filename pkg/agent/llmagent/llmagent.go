// Package llmagent implements an agent.Agent whose behavior is driven by a
// model.LLM: it builds a request from instructions, conversation history,
// and tool definitions, calls the model, and executes any tool calls the
// response requests before deciding whether another round is needed.
//
// Usage:
//
//	a, err := llmagent.New(llmagent.Config{
//	    Name:        "assistant",
//	    Model:       myModel,
//	    Instruction: "You are a helpful assistant.",
//	    Tools:       []tool.Tool{searchTool},
//	})
package llmagent

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/compaction"
	"github.com/zavora-ai/adk-go/pkg/model"
	"github.com/zavora-ai/adk-go/pkg/observability"
	"github.com/zavora-ai/adk-go/pkg/tool"
	"github.com/zavora-ai/adk-go/pkg/tool/controltool"
)

// Config configures an LLM-driven agent.
type Config struct {
	Name        string
	Description string

	Model model.LLM

	// Instruction guides the agent's behavior. Supports {key} placeholders
	// resolved from session state at request time.
	Instruction         string
	InstructionProvider InstructionProvider

	// GlobalInstruction is prepended ahead of Instruction; conventionally
	// set only on a tree's root agent so every delegate inherits it.
	GlobalInstruction string

	EnableStreaming bool
	GenerateConfig  *model.GenerateConfig

	Tools     []tool.Tool
	Toolsets  []tool.Toolset
	SubAgents []agent.Agent

	DisallowTransferToParent bool
	DisallowTransferToPeers  bool

	IncludeContents IncludeContents
	OutputKey       string

	Reasoning  *ReasoningConfig
	Compaction compaction.Strategy

	// CompactionTrigger controls when the Runner considers this agent's
	// Compaction strategy at all: an invocation-count interval and a
	// trailing-event exclusion window. A zero value checks every turn
	// with no overlap exclusion.
	CompactionTrigger compaction.Config

	BeforeModelCallbacks []BeforeModelCallback
	AfterModelCallbacks  []AfterModelCallback
	BeforeToolCallbacks  []BeforeToolCallback
	AfterToolCallbacks   []AfterToolCallback

	// RequestProcessors/ResponseProcessors run after the default pipeline
	// (instruction, history, tools). Ignored if Pipeline is set.
	RequestProcessors  []RequestProcessor
	ResponseProcessors []ResponseProcessor
	Pipeline           *Pipeline

	Recorder observability.Recorder
}

// ReasoningConfig controls the reasoning loop's termination. Termination is
// primarily semantic (no tool calls requested, or exit_loop/escalate
// called); MaxIterations is only a safety backstop.
type ReasoningConfig struct {
	MaxIterations         int
	EnableExitTool        bool
	EnableEscalateTool    bool
	CompletionInstruction string
}

// IncludeContents controls how much session history a request carries.
type IncludeContents string

const (
	// IncludeContentsDefault includes the full branch-filtered history.
	IncludeContentsDefault IncludeContents = "default"
	// IncludeContentsNone includes only the current turn.
	IncludeContentsNone IncludeContents = "none"
)

// InstructionProvider generates an instruction dynamically from invocation
// state (e.g. to inline retrieved context or a per-user persona).
type InstructionProvider func(ctx agent.InvocationContext) (string, error)

// BeforeModelCallback runs before a model call. A non-nil Response skips
// the call and is used as the result directly.
type BeforeModelCallback func(ctx agent.InvocationContext, req *model.Request) (*model.Response, error)

// AfterModelCallback runs after a model call. A non-nil Response replaces
// the model's own response.
type AfterModelCallback func(ctx agent.InvocationContext, resp *model.Response, err error) (*model.Response, error)

// BeforeToolCallback runs before a tool executes. A non-nil result skips
// execution and is used as the result directly.
type BeforeToolCallback func(ctx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error)

// AfterToolCallback runs after a tool executes and may replace its result.
type AfterToolCallback func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error)

type llmAgent struct {
	agent.Agent

	model           model.LLM
	instruction     string
	tools           []tool.Tool
	toolsets        []tool.Toolset
	enableStreaming bool

	instructionProvider InstructionProvider
	globalInstruction   string
	generateConfig      *model.GenerateConfig

	beforeModelCallbacks []BeforeModelCallback
	afterModelCallbacks  []AfterModelCallback
	beforeToolCallbacks  []BeforeToolCallback
	afterToolCallbacks   []AfterToolCallback

	disallowTransferToParent bool
	disallowTransferToPeers  bool
	includeContents          IncludeContents
	outputKey                string

	reasoning          *ReasoningConfig
	compactionStrategy compaction.Strategy
	compactionTrigger  compaction.Config

	pipeline *Pipeline
	recorder observability.Recorder
}

// New builds an LLM agent. To expose an agent as a tool for agent-as-tool
// delegation, wrap it separately rather than nesting it in SubAgents.
func New(cfg Config) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("llmagent: name is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("llmagent: model is required")
	}

	reasoning := cfg.Reasoning
	if reasoning == nil {
		reasoning = &ReasoningConfig{}
	}
	if reasoning.MaxIterations == 0 {
		reasoning.MaxIterations = 100
	}

	strategy := cfg.Compaction
	if strategy == nil {
		strategy = compaction.NilStrategy{}
	}

	includeContents := cfg.IncludeContents
	if includeContents == "" {
		includeContents = IncludeContentsDefault
	}

	a := &llmAgent{
		model:                    cfg.Model,
		instruction:              cfg.Instruction,
		tools:                    cfg.Tools,
		toolsets:                 cfg.Toolsets,
		enableStreaming:          cfg.EnableStreaming,
		instructionProvider:      cfg.InstructionProvider,
		globalInstruction:        cfg.GlobalInstruction,
		generateConfig:           cfg.GenerateConfig,
		beforeModelCallbacks:     cfg.BeforeModelCallbacks,
		afterModelCallbacks:      cfg.AfterModelCallbacks,
		beforeToolCallbacks:      cfg.BeforeToolCallbacks,
		afterToolCallbacks:       cfg.AfterToolCallbacks,
		disallowTransferToParent: cfg.DisallowTransferToParent,
		disallowTransferToPeers:  cfg.DisallowTransferToPeers,
		includeContents:          includeContents,
		outputKey:                cfg.OutputKey,
		reasoning:                reasoning,
		compactionStrategy:       strategy,
		compactionTrigger:        cfg.CompactionTrigger,
		recorder:                 cfg.Recorder,
	}

	if cfg.Pipeline != nil {
		a.pipeline = cfg.Pipeline
	} else {
		a.pipeline = newDefaultPipeline(a)
		for _, p := range cfg.RequestProcessors {
			a.pipeline.AddRequestProcessor(p)
		}
		for _, p := range cfg.ResponseProcessors {
			a.pipeline.AddResponseProcessor(p)
		}
	}

	base, err := agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		SubAgents:   cfg.SubAgents,
		Run:         a.run,
	})
	if err != nil {
		return nil, fmt.Errorf("llmagent: %w", err)
	}
	a.Agent = base
	return a, nil
}

func (a *llmAgent) run(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
	return newFlow(a).Run(ctx)
}

// CompactionStrategy implements compaction.Provider.
func (a *llmAgent) CompactionStrategy() compaction.Strategy { return a.compactionStrategy }

// CompactionConfig implements compaction.Provider.
func (a *llmAgent) CompactionConfig() compaction.Config { return a.compactionTrigger }

var _ compaction.Provider = (*llmAgent)(nil)

func (a *llmAgent) buildCompletionInstruction() string {
	if a.reasoning.CompletionInstruction != "" {
		return a.reasoning.CompletionInstruction
	}
	var guidelines []string
	if a.reasoning.EnableExitTool {
		guidelines = append(guidelines, "- Call `exit_loop` when your task is complete and you have a final answer.")
	}
	if a.reasoning.EnableEscalateTool {
		guidelines = append(guidelines, "- Call `escalate` if you need help, are stuck, or the task is outside your capabilities.")
	}
	if len(guidelines) == 0 {
		return ""
	}
	return "## Completion Guidelines\n" + joinInstructions(guidelines)
}

func joinInstructions(parts []string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// resolveTemplate substitutes {key} placeholders with values from session
// state, leaving unresolved placeholders untouched.
func resolveTemplate(instruction string, ctx agent.InvocationContext) string {
	session := ctx.Session()
	if session == nil || !strings.Contains(instruction, "{") {
		return instruction
	}
	state := session.State()
	if state == nil {
		return instruction
	}
	var b strings.Builder
	for i := 0; i < len(instruction); {
		if instruction[i] == '{' {
			if end := strings.IndexByte(instruction[i:], '}'); end > 0 {
				key := instruction[i+1 : i+end]
				if v, err := state.Get(key); err == nil {
					fmt.Fprintf(&b, "%v", v)
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(instruction[i])
		i++
	}
	return b.String()
}

func (a *llmAgent) getControlTools() []tool.Tool {
	var tools []tool.Tool
	if a.reasoning.EnableExitTool {
		tools = append(tools, controltool.ExitLoop())
	}
	if a.reasoning.EnableEscalateTool {
		tools = append(tools, controltool.Escalate())
	}
	for _, sub := range a.SubAgents() {
		tools = append(tools, controltool.TransferTo(sub.Name(), sub.Description()))
	}
	return tools
}

func (a *llmAgent) collectToolDefinitions(ctx agent.InvocationContext) []tool.Definition {
	var defs []tool.Definition
	for _, t := range a.getControlTools() {
		defs = append(defs, tool.ToDefinition(t))
	}
	for _, t := range a.tools {
		defs = append(defs, tool.ToDefinition(t))
	}
	for _, ts := range a.toolsets {
		tools, err := ts.Tools(ctx)
		if err != nil {
			slog.Warn("llmagent: toolset failed to provide tools", "toolset", ts.Name(), "agent", a.Name(), "error", err)
			continue
		}
		for _, t := range tools {
			defs = append(defs, tool.ToDefinition(t))
		}
	}
	return defs
}

func (a *llmAgent) findTool(ctx agent.InvocationContext, name string) tool.Tool {
	for _, t := range a.getControlTools() {
		if t.Name() == name {
			return t
		}
	}
	for _, t := range a.tools {
		if t.Name() == name {
			return t
		}
	}
	for _, ts := range a.toolsets {
		tools, err := ts.Tools(ctx)
		if err != nil {
			continue
		}
		for _, t := range tools {
			if t.Name() == name {
				return t
			}
		}
	}
	return nil
}

func (a *llmAgent) DisallowTransferToParent() bool { return a.disallowTransferToParent }
func (a *llmAgent) DisallowTransferToPeers() bool  { return a.disallowTransferToPeers }
