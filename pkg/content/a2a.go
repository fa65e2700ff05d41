package content

import "github.com/a2aproject/a2a-go/a2a"

// ToA2AMessage converts a Content value to the a2a wire representation used
// at the remote-agent delegation boundary. This is the only place this
// package depends on a2a-go: the core model above stays provider-neutral and
// enforces its own invariants, while this bridge lets an agent or tool call
// out to (or accept delegation from) an a2a-go based remote agent without
// leaking a2a types into the rest of the runtime.
func ToA2AMessage(c Content) *a2a.Message {
	role := a2a.MessageRoleUser
	if c.Role == RoleModel {
		role = a2a.MessageRoleAgent
	}

	parts := make([]a2a.Part, 0, len(c.Parts))
	for _, p := range c.Parts {
		parts = append(parts, toA2APart(p))
	}
	return a2a.NewMessage(role, parts...)
}

func toA2APart(p Part) a2a.Part {
	switch v := p.(type) {
	case Text:
		return a2a.TextPart{Text: v.Value}
	case InlineData:
		return a2a.FilePart{File: a2a.FileBytes{MimeType: v.MimeType, Bytes: v.Bytes}}
	case InlineDataBase64:
		return a2a.DataPart{Data: map[string]any{
			"type":      "inline_data_base64",
			"mime_type": v.MimeType,
			"base64":    v.Base64,
		}}
	case FileData:
		return a2a.FilePart{File: a2a.FileURI{MimeType: v.MimeType, URI: v.URI}}
	case FunctionCall:
		return a2a.DataPart{Data: map[string]any{
			"type":    "tool_use",
			"name":    v.Name,
			"args":    v.Args,
			"call_id": v.CallID,
		}}
	case FunctionResponse:
		return a2a.DataPart{Data: map[string]any{
			"type":     "tool_result",
			"name":     v.Name,
			"response": v.Response,
			"call_id":  v.CallID,
			"is_error": v.IsError,
		}}
	default:
		return a2a.TextPart{Text: ""}
	}
}

// FromA2AMessage converts an a2a wire message back into Content. DataPart
// values are recovered by the "type" discriminator this package writes in
// ToA2AMessage; unrecognized DataPart shapes are preserved as an opaque
// FunctionResponse rather than dropped. Thinking parts have no a2a mapping:
// ToA2AMessage sends them as empty text parts, so they do not survive a
// round trip.
func FromA2AMessage(msg *a2a.Message) Content {
	role := RoleUser
	if msg.Role == a2a.MessageRoleAgent {
		role = RoleModel
	}

	parts := make([]Part, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		parts = append(parts, fromA2APart(p))
	}
	return Content{Role: role, Parts: parts}
}

func fromA2APart(p a2a.Part) Part {
	switch v := p.(type) {
	case a2a.TextPart:
		return Text{Value: v.Text}
	case a2a.FilePart:
		switch f := v.File.(type) {
		case a2a.FileBytes:
			return InlineData{MimeType: f.MimeType, Bytes: f.Bytes}
		case a2a.FileURI:
			return FileData{MimeType: f.MimeType, URI: f.URI}
		}
		return Text{}
	case a2a.DataPart:
		switch v.Data["type"] {
		case "inline_data_base64":
			mime, _ := v.Data["mime_type"].(string)
			b64, _ := v.Data["base64"].(string)
			return InlineDataBase64{MimeType: mime, Base64: b64}
		case "tool_use":
			name, _ := v.Data["name"].(string)
			callID, _ := v.Data["call_id"].(string)
			args, _ := v.Data["args"].(map[string]any)
			return FunctionCall{Name: name, Args: args, CallID: callID}
		case "tool_result":
			name, _ := v.Data["name"].(string)
			callID, _ := v.Data["call_id"].(string)
			isErr, _ := v.Data["is_error"].(bool)
			return FunctionResponse{Name: name, Response: v.Data["response"], CallID: callID, IsError: isErr}
		default:
			return FunctionResponse{Name: "unknown", Response: v.Data}
		}
	default:
		return Text{}
	}
}
