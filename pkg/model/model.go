// Package model defines the provider-neutral LLM contract every agent loop
// calls through. A single GenerateContent method handles both streaming and
// non-streaming generation: non-streaming yields exactly one Response;
// streaming yields zero or more Partial chunks followed by exactly one
// non-partial, TurnComplete Response carrying the aggregated result.
//
// pkg/streamcheck wraps any LLM to enforce that contract at runtime; this
// package only declares it.
package model

import (
	"context"
	"iter"

	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

// LLM is a provider-neutral language model.
type LLM interface {
	Name() string
	Provider() Provider
	GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error]
	Close() error
}

// Provider identifies an LLM's vendor, used only for provider-specific
// message-shaping decisions (e.g. how tool results pair with tool calls);
// this runtime carries no concrete provider adapters (see DESIGN.md).
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderUnknown   Provider = "unknown"
)

// Request is one call's input.
type Request struct {
	Messages          []content.Content
	Tools             []tool.Definition
	Config            *GenerateConfig
	SystemInstruction string
}

// GenerateConfig carries generation knobs common across providers.
type GenerateConfig struct {
	Temperature          *float64
	MaxTokens            *int
	TopP                 *float64
	TopK                 *int
	StopSequences        []string
	ResponseMIMEType     string
	ResponseSchema       map[string]any
	ResponseSchemaName   string
	ResponseSchemaStrict *bool
	EnableThinking       bool
	ThinkingBudget       int
	Metadata             map[string]string
}

// Clone deep-copies c so pipeline stages (plugins, request processors) can
// mutate their own copy without aliasing the caller's config.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Temperature != nil {
		v := *c.Temperature
		clone.Temperature = &v
	}
	if c.MaxTokens != nil {
		v := *c.MaxTokens
		clone.MaxTokens = &v
	}
	if c.TopP != nil {
		v := *c.TopP
		clone.TopP = &v
	}
	if c.TopK != nil {
		v := *c.TopK
		clone.TopK = &v
	}
	if c.StopSequences != nil {
		clone.StopSequences = append([]string(nil), c.StopSequences...)
	}
	if c.ResponseSchema != nil {
		clone.ResponseSchema = deepCopyMap(c.ResponseSchema)
	}
	if c.ResponseSchemaStrict != nil {
		v := *c.ResponseSchemaStrict
		clone.ResponseSchemaStrict = &v
	}
	if c.Metadata != nil {
		clone.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = deepCopyMap(val)
		case []any:
			out[k] = deepCopySlice(val)
		default:
			out[k] = v
		}
	}
	return out
}

func deepCopySlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		switch val := v.(type) {
		case map[string]any:
			out[i] = deepCopyMap(val)
		case []any:
			out[i] = deepCopySlice(val)
		default:
			out[i] = v
		}
	}
	return out
}

// Response is one yielded item of a GenerateContent call.
type Response struct {
	Content      *content.Content
	Partial      bool
	TurnComplete bool
	ToolCalls    []tool.ToolCall
	Usage        *Usage
	Thinking     *ThinkingBlock
	FinishReason FinishReason
	ErrorCode    string
	ErrorMessage string
}

// Usage is token accounting for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ThinkingTokens   int
}

// ThinkingBlock carries a model's extended-reasoning output, where the
// provider supports it.
type ThinkingBlock struct {
	ID        string
	Content   string
	Signature string
}

// FinishReason is why generation stopped.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonContent   FinishReason = "content_filter"
	FinishReasonError     FinishReason = "error"
)

// TextContent concatenates the response's text parts.
func (r *Response) TextContent() string {
	if r == nil || r.Content == nil {
		return ""
	}
	return r.Content.TextContent()
}

// HasToolCalls reports whether the response requested any tool calls.
func (r *Response) HasToolCalls() bool { return r != nil && len(r.ToolCalls) > 0 }
