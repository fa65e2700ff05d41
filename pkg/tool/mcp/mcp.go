// Package mcp adapts an external MCP (Model Context Protocol) server's tool
// list into a tool.Toolset, connecting lazily over stdio the first time
// Tools() is called.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

const protocolVersion = "2024-11-05"

// Config configures a stdio-launched MCP server connection.
type Config struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	// Filter, if non-empty, restricts the advertised tools to these names.
	Filter []string
}

// Toolset is a lazily-connected MCP-backed tool.Toolset.
type Toolset struct {
	cfg       Config
	filterSet map[string]bool

	mu        sync.Mutex
	client    *client.Client
	tools     []tool.Tool
	connected bool
}

// New validates cfg and returns an unconnected Toolset.
func New(cfg Config) (*Toolset, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcp: command is required")
	}
	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}
	return &Toolset{cfg: cfg, filterSet: filterSet}, nil
}

func (t *Toolset) Name() string { return t.cfg.Name }

// Tools returns the server's advertised tools, connecting on first call.
func (t *Toolset) Tools(ctx agent.InvocationContext) ([]tool.Tool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		if err := t.connect(context.Background()); err != nil {
			return nil, fmt.Errorf("mcp: connect %q: %w", t.cfg.Name, err)
		}
	}
	return t.tools, nil
}

// Close shuts down the underlying MCP client connection.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	t.connected = false
	t.tools = nil
	return err
}

func (t *Toolset) connect(ctx context.Context) error {
	c, err := client.NewStdioMCPClient(t.cfg.Command, envSlice(t.cfg.Env), t.cfg.Args...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "adk-go", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = protocolVersion
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	var tools []tool.Tool
	for _, mt := range listResp.Tools {
		if t.filterSet != nil && !t.filterSet[mt.Name] {
			continue
		}
		tools = append(tools, &wrapper{toolset: t, name: mt.Name, desc: mt.Description, schema: convertSchema(mt.InputSchema)})
	}

	t.client = c
	t.tools = tools
	t.connected = true
	slog.Info("mcp: connected", "name", t.cfg.Name, "command", t.cfg.Command, "tools", len(tools))
	return nil
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func convertSchema(s mcp.ToolInputSchema) map[string]any {
	out := map[string]any{"type": "object"}
	if s.Properties != nil {
		out["properties"] = s.Properties
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// wrapper adapts one MCP tool as a tool.CallableTool.
type wrapper struct {
	toolset *Toolset
	name    string
	desc    string
	schema  map[string]any
}

func (w *wrapper) Name() string          { return w.name }
func (w *wrapper) Description() string   { return w.desc }
func (w *wrapper) IsLongRunning() bool   { return false }
func (w *wrapper) RequiresApproval() bool { return false }
func (w *wrapper) Schema() map[string]any { return w.schema }

func (w *wrapper) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	w.toolset.mu.Lock()
	c := w.toolset.client
	w.toolset.mu.Unlock()
	if c == nil {
		return nil, tool.NewError(tool.KindTool, w.name, fmt.Errorf("mcp client not connected"))
	}

	bgCtx := context.Context(context.Background())
	if ctx != nil {
		bgCtx = ctx
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = w.name
	req.Params.Arguments = args

	resp, err := c.CallTool(bgCtx, req)
	if err != nil {
		return nil, tool.NewError(tool.KindTool, w.name, err)
	}

	out := map[string]any{"is_error": resp.IsError}
	var text string
	for _, item := range resp.Content {
		if tc, ok := item.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	out["text"] = text
	return out, nil
}

var _ tool.Toolset = (*Toolset)(nil)
var _ tool.CallableTool = (*wrapper)(nil)
