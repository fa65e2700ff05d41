// Package functiontool builds a tool.CallableTool from a typed Go function,
// generating its JSON schema from struct tags instead of requiring callers
// to hand-write one.
//
//	type SearchArgs struct {
//		Query string `json:"query" jsonschema:"required,description=Search query"`
//		Limit int    `json:"limit,omitempty" jsonschema:"description=Max results,default=10"`
//	}
//
//	searchTool, err := functiontool.New(
//		functiontool.Config{Name: "search", Description: "Search documents"},
//		func(ctx tool.Context, args SearchArgs) (map[string]any, error) { ... },
//	)
package functiontool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/zavora-ai/adk-go/pkg/tool"
)

// Config names a function tool for the model.
type Config struct {
	Name        string
	Description string
}

// New builds a CallableTool from fn, whose Args type is reflected into a
// JSON schema via struct tags.
func New[Args any](cfg Config, fn func(tool.Context, Args) (map[string]any, error)) (tool.CallableTool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("functiontool: name is required")
	}
	if cfg.Description == "" {
		return nil, fmt.Errorf("functiontool: description is required")
	}
	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("functiontool: generate schema for %s: %w", cfg.Name, err)
	}
	return &functionTool[Args]{config: cfg, fn: fn, schema: schema}, nil
}

// NewWithValidation is New plus a validate hook run on the typed args before
// fn, for checks struct tags can't express (path traversal, cross-field
// constraints).
func NewWithValidation[Args any](
	cfg Config,
	fn func(tool.Context, Args) (map[string]any, error),
	validate func(Args) error,
) (tool.CallableTool, error) {
	base, err := New(cfg, fn)
	if err != nil {
		return nil, err
	}
	return &functionToolWithValidation[Args]{functionTool: base.(*functionTool[Args]), validate: validate}, nil
}

type functionTool[Args any] struct {
	config Config
	fn     func(tool.Context, Args) (map[string]any, error)
	schema map[string]any
}

func (t *functionTool[Args]) Name() string            { return t.config.Name }
func (t *functionTool[Args]) Description() string     { return t.config.Description }
func (t *functionTool[Args]) IsLongRunning() bool      { return false }
func (t *functionTool[Args]) RequiresApproval() bool   { return false }
func (t *functionTool[Args]) Schema() map[string]any   { return t.schema }

func (t *functionTool[Args]) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	var typed Args
	if err := mapToStruct(args, &typed); err != nil {
		return nil, tool.NewError(tool.KindInvalidArgs, t.config.Name, err)
	}
	return t.fn(ctx, typed)
}

type functionToolWithValidation[Args any] struct {
	*functionTool[Args]
	validate func(Args) error
}

func (t *functionToolWithValidation[Args]) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	var typed Args
	if err := mapToStruct(args, &typed); err != nil {
		return nil, tool.NewError(tool.KindInvalidArgs, t.config.Name, err)
	}
	if err := t.validate(typed); err != nil {
		return nil, tool.NewError(tool.KindInvalidArgs, t.config.Name, err)
	}
	return t.fn(ctx, typed)
}

// generateSchema reflects T's struct tags into a flat JSON-schema map
// shaped the way model function-calling APIs expect: {type, properties,
// required}, not the full draft-07 envelope jsonschema.Reflector produces.
func generateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	if raw["type"] != "object" {
		return raw, nil
	}
	out := map[string]any{"type": "object", "properties": raw["properties"]}
	if required, ok := raw["required"]; ok {
		out["required"] = required
	}
	if addl, ok := raw["additionalProperties"]; ok {
		out["additionalProperties"] = addl
	}
	return out, nil
}

func mapToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	return json.Unmarshal(data, target)
}

var (
	_ tool.CallableTool = (*functionTool[struct{}])(nil)
	_ tool.CallableTool = (*functionToolWithValidation[struct{}])(nil)
)
