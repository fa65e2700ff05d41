package llmagent

import (
	"fmt"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/model"
)

// RequestProcessor mutates an outgoing model request before it is sent, in
// the order it was added to a Pipeline.
type RequestProcessor interface {
	ProcessRequest(ctx agent.InvocationContext, req *model.Request) error
}

// ResponseProcessor observes (and may mutate) a model response after the
// call returns, before it is turned into an event.
type ResponseProcessor interface {
	ProcessResponse(ctx agent.InvocationContext, req *model.Request, resp *model.Response) error
}

// Pipeline is the ordered chain of processors a reasoning step runs a
// request and response through. The default pipeline (instruction,
// conversation history, tool definitions) runs first; Config.RequestProcessors
// and Config.ResponseProcessors are appended after it.
type Pipeline struct {
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) AddRequestProcessor(r RequestProcessor) {
	p.requestProcessors = append(p.requestProcessors, r)
}

func (p *Pipeline) AddResponseProcessor(r ResponseProcessor) {
	p.responseProcessors = append(p.responseProcessors, r)
}

func (p *Pipeline) ProcessRequest(ctx agent.InvocationContext, req *model.Request) error {
	for _, proc := range p.requestProcessors {
		if err := proc.ProcessRequest(ctx, req); err != nil {
			return fmt.Errorf("request processor: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) ProcessResponse(ctx agent.InvocationContext, req *model.Request, resp *model.Response) error {
	for _, proc := range p.responseProcessors {
		if err := proc.ProcessResponse(ctx, req, resp); err != nil {
			return fmt.Errorf("response processor: %w", err)
		}
	}
	return nil
}

// instructionProcessor sets the outgoing request's system instruction from
// the agent's static/dynamic instruction, its root's global instruction,
// and a completion guideline derived from the reasoning config.
type instructionProcessor struct{ agent *llmAgent }

func (p *instructionProcessor) ProcessRequest(ctx agent.InvocationContext, req *model.Request) error {
	a := p.agent
	var parts []string

	if a.globalInstruction != "" {
		parts = append(parts, resolveTemplate(a.globalInstruction, ctx))
	}

	instruction := a.instruction
	if a.instructionProvider != nil {
		resolved, err := a.instructionProvider(ctx)
		if err != nil {
			return fmt.Errorf("instruction provider: %w", err)
		}
		instruction = resolved
	}
	if instruction != "" {
		parts = append(parts, resolveTemplate(instruction, ctx))
	}

	if completion := a.buildCompletionInstruction(); completion != "" {
		parts = append(parts, completion)
	}

	req.SystemInstruction = joinInstructions(parts)
	return nil
}

// contentsProcessor populates the request's message history from the
// session, respecting IncludeContents and the agent's compaction strategy.
type contentsProcessor struct{ agent *llmAgent }

func (p *contentsProcessor) ProcessRequest(ctx agent.InvocationContext, req *model.Request) error {
	req.Messages = p.agent.buildMessages(ctx)
	return nil
}

// toolsProcessor advertises the agent's tools (static, toolset, control,
// and downward transfer) and applies its generation config.
type toolsProcessor struct{ agent *llmAgent }

func (p *toolsProcessor) ProcessRequest(ctx agent.InvocationContext, req *model.Request) error {
	req.Tools = p.agent.collectToolDefinitions(ctx)
	if p.agent.generateConfig != nil {
		req.Config = p.agent.generateConfig.Clone()
	}
	return nil
}

func newDefaultPipeline(a *llmAgent) *Pipeline {
	p := NewPipeline()
	p.AddRequestProcessor(&instructionProcessor{agent: a})
	p.AddRequestProcessor(&contentsProcessor{agent: a})
	p.AddRequestProcessor(&toolsProcessor{agent: a})
	return p
}
