// Package content defines the provider-neutral multimodal message model shared
// by every agent, tool, and model adapter in this runtime.
//
// A Content is an ordered list of Parts plus a role. Parts are an immutable,
// closed tagged union: Text, InlineData, InlineDataBase64, FileData,
// FunctionCall, FunctionResponse, and Thinking. NewInlineData checks the
// InlineData size bound once, at construction, rather than leaving it
// scattered across every consumer; call_id presence is not checked by any
// constructor.
package content

import "fmt"

// MaxInlineDataBytes bounds the size of an InlineData part's raw bytes.
const MaxInlineDataBytes = 10 * 1024 * 1024 // 10 MiB

// Role identifies who produced a Content value.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Content is a single message: an ordered list of Parts attributed to Role.
type Content struct {
	Role  Role
	Parts []Part
}

// NewText returns a single-part text Content with the given role.
func NewText(role Role, text string) Content {
	return Content{Role: role, Parts: []Part{Text{Value: text}}}
}

// TextContent concatenates every Text part's value, in order.
func (c Content) TextContent() string {
	var out string
	for _, p := range c.Parts {
		if t, ok := p.(Text); ok {
			out += t.Value
		}
	}
	return out
}

// FunctionCalls returns every FunctionCall part in declaration order.
func (c Content) FunctionCalls() []FunctionCall {
	var out []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCall); ok {
			out = append(out, fc)
		}
	}
	return out
}

// HasFunctionCalls reports whether any part is a FunctionCall.
func (c Content) HasFunctionCalls() bool {
	for _, p := range c.Parts {
		if _, ok := p.(FunctionCall); ok {
			return true
		}
	}
	return false
}

// Part is the closed set of multimodal content variants. The unexported
// method pins membership to this package, matching the teacher's pattern of
// closed interfaces for wire-level variant sets (c.f. a2a.Part).
type Part interface {
	isPart()
}

// Text is a plain UTF-8 text segment.
type Text struct {
	Value string
}

func (Text) isPart() {}

// InlineData is raw bytes embedded directly in the message, bounded to
// MaxInlineDataBytes. Use NewInlineData to construct one; the zero value is
// not validated.
type InlineData struct {
	MimeType string
	Bytes    []byte
}

func (InlineData) isPart() {}

// NewInlineData validates the size bound before returning the part.
func NewInlineData(mimeType string, data []byte) (InlineData, error) {
	if len(data) > MaxInlineDataBytes {
		return InlineData{}, fmt.Errorf("content: inline data of %d bytes exceeds %d byte bound", len(data), MaxInlineDataBytes)
	}
	return InlineData{MimeType: mimeType, Bytes: data}, nil
}

// InlineDataBase64 is a base64-encoded payload that must pass through every
// layer of the system without being decoded and re-encoded, preserving
// byte-for-byte provider wire compatibility.
type InlineDataBase64 struct {
	MimeType string
	Base64   string
}

func (InlineDataBase64) isPart() {}

// FileData references externally stored bytes by URI.
type FileData struct {
	MimeType string
	URI      string
}

func (FileData) isPart() {}

// FunctionCall is a model-issued tool invocation request. CallID is required
// when the owning provider uses correlation ids to pair calls with
// responses, and empty otherwise.
type FunctionCall struct {
	Name   string
	Args   map[string]any
	CallID string
}

func (FunctionCall) isPart() {}

// FunctionResponse is the result of executing a FunctionCall. When CallID is
// set it must match the CallID of a prior FunctionCall in the same
// conversation.
type FunctionResponse struct {
	Name     string
	Response any
	CallID   string
	IsError  bool
}

func (FunctionResponse) isPart() {}

// Thinking carries a model's extended-reasoning block. Signature is an
// opaque provider token (Anthropic) that must be replayed verbatim
// alongside Text in any later request that includes this turn, or the
// provider rejects the request; providers without this requirement leave
// it empty.
type Thinking struct {
	ID        string
	Text      string
	Signature string
}

func (Thinking) isPart() {}
