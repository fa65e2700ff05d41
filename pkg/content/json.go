package content

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// wirePart is the discriminated-union JSON encoding for Part, used at every
// durable-storage boundary (pkg/session/sql.go). The in-memory
// Part interface stays a closed Go tagged union; this is its serialization
// only.
type wirePart struct {
	Kind string `json:"kind"`

	Text string `json:"text,omitempty"`

	MimeType  string `json:"mime_type,omitempty"`
	DataB64   string `json:"data,omitempty"` // InlineData bytes, base64-wrapped for JSON transport
	Base64    string `json:"base64,omitempty"`
	URI       string `json:"uri,omitempty"`

	Name     string         `json:"name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	CallID   string         `json:"call_id,omitempty"`
	Response any            `json:"response,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`

	ID        string `json:"id,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// EncodePart serializes a Part to its discriminated JSON form.
func EncodePart(p Part) (json.RawMessage, error) {
	var w wirePart
	switch v := p.(type) {
	case Text:
		w = wirePart{Kind: "text", Text: v.Value}
	case InlineData:
		w = wirePart{Kind: "inline_data", MimeType: v.MimeType, DataB64: base64.StdEncoding.EncodeToString(v.Bytes)}
	case InlineDataBase64:
		w = wirePart{Kind: "inline_data_base64", MimeType: v.MimeType, Base64: v.Base64}
	case FileData:
		w = wirePart{Kind: "file_data", MimeType: v.MimeType, URI: v.URI}
	case FunctionCall:
		w = wirePart{Kind: "function_call", Name: v.Name, Args: v.Args, CallID: v.CallID}
	case FunctionResponse:
		w = wirePart{Kind: "function_response", Name: v.Name, Response: v.Response, CallID: v.CallID, IsError: v.IsError}
	case Thinking:
		w = wirePart{Kind: "thinking", Text: v.Text, ID: v.ID, Signature: v.Signature}
	default:
		return nil, fmt.Errorf("content: unknown part type %T", p)
	}
	return json.Marshal(w)
}

// DecodePart is the inverse of EncodePart.
func DecodePart(raw json.RawMessage) (Part, error) {
	var w wirePart
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("content: decode part: %w", err)
	}
	switch w.Kind {
	case "text":
		return Text{Value: w.Text}, nil
	case "inline_data":
		data, err := base64.StdEncoding.DecodeString(w.DataB64)
		if err != nil {
			return nil, fmt.Errorf("content: decode inline_data: %w", err)
		}
		return InlineData{MimeType: w.MimeType, Bytes: data}, nil
	case "inline_data_base64":
		return InlineDataBase64{MimeType: w.MimeType, Base64: w.Base64}, nil
	case "file_data":
		return FileData{MimeType: w.MimeType, URI: w.URI}, nil
	case "function_call":
		return FunctionCall{Name: w.Name, Args: w.Args, CallID: w.CallID}, nil
	case "function_response":
		return FunctionResponse{Name: w.Name, Response: w.Response, CallID: w.CallID, IsError: w.IsError}, nil
	case "thinking":
		return Thinking{ID: w.ID, Text: w.Text, Signature: w.Signature}, nil
	default:
		return nil, fmt.Errorf("content: unknown part kind %q", w.Kind)
	}
}
