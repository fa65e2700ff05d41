// Package plugin provides an in-process hook pipeline that observes and
// can short-circuit a Runner/llmagent invocation: user message rewriting,
// event auditing, agent/model/tool interception, and graceful shutdown.
//
// Hooks are plain fields on Plugin rather than an interface a plugin type
// must fully implement, so a plugin that only cares about one hook (a
// metrics plugin counting tool calls, say) leaves every other field nil.
package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/agent/llmagent"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

// Status reports a plugin's lifecycle state.
type Status string

const (
	StatusReady    Status = "ready"
	StatusError    Status = "error"
	StatusShutdown Status = "shutdown"
)

// Manifest optionally self-describes a plugin for discovery/introspection
// tooling (a host listing loaded plugins, a debug endpoint).
type Manifest struct {
	Version     string
	Author      string
	Description string
	Homepage    string
}

// Plugin is a named bundle of optional hooks. A nil hook is simply skipped.
type Plugin struct {
	Name     string
	Manifest *Manifest

	// OnUserMessage may rewrite the user's message before a turn starts.
	OnUserMessage func(ctx agent.InvocationContext, c content.Content) (*content.Content, error)
	// OnEvent may rewrite any event before it is persisted.
	OnEvent func(ctx agent.InvocationContext, ev *agent.Event) (*agent.Event, error)
	// BeforeRun may return content to short-circuit the whole turn.
	BeforeRun func(ctx agent.InvocationContext) (*content.Content, error)
	// AfterRun runs once the turn completes, for cleanup/metrics only.
	AfterRun func(ctx agent.InvocationContext)
	// BeforeAgent may return content to short-circuit the agent's run.
	BeforeAgent func(ctx agent.InvocationContext) (*content.Content, error)
	// AfterAgent may return content that the Runner appends as a trailing
	// event after the agent's own events.
	AfterAgent func(ctx agent.InvocationContext) (*content.Content, error)

	BeforeModel  llmagent.BeforeModelCallback
	AfterModel   llmagent.AfterModelCallback
	OnModelError func(ctx agent.InvocationContext, req *model.Request, errMsg string) (*model.Response, error)

	BeforeTool  llmagent.BeforeToolCallback
	AfterTool   llmagent.AfterToolCallback
	OnToolError func(ctx tool.Context, t tool.Tool, args map[string]any, errMsg string) (map[string]any, error)

	// Close releases any resources the plugin holds (a connection, a
	// background goroutine). Run under the Manager's per-plugin close
	// timeout (see WithCloseTimeout).
	Close func(ctx context.Context) error

	status Status
}

// Status reports the plugin's last-observed lifecycle state.
func (p *Plugin) Status() Status {
	if p.status == "" {
		return StatusReady
	}
	return p.status
}

// Manager coordinates callback execution across a fixed set of plugins, in
// registration order. For modifying hooks (on_user_message, on_event,
// after_model) every plugin runs, each non-nil result replaces the value,
// and later plugins see the modified value; for early-exit hooks (before_run,
// before_agent, after_agent, before_model's skip, before_tool) the first
// non-nil result stops the chain.
type Manager struct {
	plugins      []Plugin
	closeTimeout time.Duration
}

// NewManager builds a Manager over plugins, run in the given order.
func NewManager(plugins []Plugin) *Manager {
	return &Manager{plugins: plugins, closeTimeout: 5 * time.Second}
}

// WithCloseTimeout overrides the default 5s per-plugin close timeout.
func (m *Manager) WithCloseTimeout(d time.Duration) *Manager {
	m.closeTimeout = d
	return m
}

// PluginCount returns the number of registered plugins.
func (m *Manager) PluginCount() int { return len(m.plugins) }

// PluginNames returns the registered plugins' names, in order.
func (m *Manager) PluginNames() []string {
	names := make([]string, len(m.plugins))
	for i, p := range m.plugins {
		names[i] = p.Name
	}
	return names
}

// RunOnUserMessage runs every plugin's OnUserMessage hook, threading each
// plugin's output into the next. Returns nil if no plugin modified it.
func (m *Manager) RunOnUserMessage(ctx agent.InvocationContext, c content.Content) (*content.Content, error) {
	current := c
	modified := false
	for _, p := range m.plugins {
		if p.OnUserMessage == nil {
			continue
		}
		out, err := p.OnUserMessage(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: on_user_message: %w", p.Name, err)
		}
		if out != nil {
			modified = true
			current = *out
		}
	}
	if !modified {
		return nil, nil
	}
	return &current, nil
}

// RunOnEvent runs every plugin's OnEvent hook, threading each plugin's
// output into the next. Returns nil if no plugin modified the event.
func (m *Manager) RunOnEvent(ctx agent.InvocationContext, ev *agent.Event) (*agent.Event, error) {
	current := ev
	modified := false
	for _, p := range m.plugins {
		if p.OnEvent == nil {
			continue
		}
		out, err := p.OnEvent(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: on_event: %w", p.Name, err)
		}
		if out != nil {
			modified = true
			current = out
		}
	}
	if !modified {
		return nil, nil
	}
	return current, nil
}

// RunBeforeRun runs every plugin's BeforeRun hook in order; the first one
// to return content short-circuits the turn with that content.
func (m *Manager) RunBeforeRun(ctx agent.InvocationContext) (*content.Content, error) {
	for _, p := range m.plugins {
		if p.BeforeRun == nil {
			continue
		}
		out, err := p.BeforeRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: before_run: %w", p.Name, err)
		}
		if out != nil {
			return out, nil
		}
	}
	return nil, nil
}

// RunAfterRun runs every plugin's AfterRun hook; errors are not possible by
// design (cleanup/metrics only, matching the turn's own control flow).
func (m *Manager) RunAfterRun(ctx agent.InvocationContext) {
	for _, p := range m.plugins {
		if p.AfterRun != nil {
			p.AfterRun(ctx)
		}
	}
}

// RunBeforeAgent runs every plugin's BeforeAgent hook; the first one to
// return content short-circuits the agent's run with that content.
func (m *Manager) RunBeforeAgent(ctx agent.InvocationContext) (*content.Content, error) {
	for _, p := range m.plugins {
		if p.BeforeAgent == nil {
			continue
		}
		out, err := p.BeforeAgent(ctx)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: before_agent: %w", p.Name, err)
		}
		if out != nil {
			return out, nil
		}
	}
	return nil, nil
}

// RunAfterAgent runs every plugin's AfterAgent hook; the first one to
// return content stops the chain, and the Runner appends that content as a
// trailing event after the agent's response.
func (m *Manager) RunAfterAgent(ctx agent.InvocationContext) (*content.Content, error) {
	for _, p := range m.plugins {
		if p.AfterAgent == nil {
			continue
		}
		out, err := p.AfterAgent(ctx)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: after_agent: %w", p.Name, err)
		}
		if out != nil {
			return out, nil
		}
	}
	return nil, nil
}

// BeforeModelCallback aggregates every plugin's BeforeModel hook into a
// single llmagent.BeforeModelCallback, so it can be dropped directly into
// llmagent.Config.BeforeModelCallbacks.
func (m *Manager) BeforeModelCallback() llmagent.BeforeModelCallback {
	return func(ctx agent.InvocationContext, req *model.Request) (*model.Response, error) {
		for _, p := range m.plugins {
			if p.BeforeModel == nil {
				continue
			}
			resp, err := p.BeforeModel(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("plugin %q: before_model: %w", p.Name, err)
			}
			if resp != nil {
				return resp, nil
			}
		}
		return nil, nil
	}
}

// AfterModelCallback aggregates every plugin's AfterModel hook, threading
// each plugin's replacement response into the next.
func (m *Manager) AfterModelCallback() llmagent.AfterModelCallback {
	return func(ctx agent.InvocationContext, resp *model.Response, err error) (*model.Response, error) {
		current := resp
		if err != nil {
			for _, p := range m.plugins {
				if p.OnModelError == nil {
					continue
				}
				fallback, hookErr := p.OnModelError(ctx, nil, err.Error())
				if hookErr != nil {
					return nil, fmt.Errorf("plugin %q: on_model_error: %w", p.Name, hookErr)
				}
				if fallback != nil {
					current = fallback
				}
			}
			return current, nil
		}
		for _, p := range m.plugins {
			if p.AfterModel == nil {
				continue
			}
			out, hookErr := p.AfterModel(ctx, current, nil)
			if hookErr != nil {
				return nil, fmt.Errorf("plugin %q: after_model: %w", p.Name, hookErr)
			}
			if out != nil {
				current = out
			}
		}
		return current, nil
	}
}

// BeforeToolCallback aggregates every plugin's BeforeTool hook into a
// single llmagent.BeforeToolCallback: the first non-nil result skips the
// tool call.
func (m *Manager) BeforeToolCallback() llmagent.BeforeToolCallback {
	return func(ctx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error) {
		for _, p := range m.plugins {
			if p.BeforeTool == nil {
				continue
			}
			result, err := p.BeforeTool(ctx, t, args)
			if err != nil {
				return nil, fmt.Errorf("plugin %q: before_tool: %w", p.Name, err)
			}
			if result != nil {
				return result, nil
			}
		}
		return nil, nil
	}
}

// AfterToolCallback aggregates every plugin's AfterTool hook, and on a
// failed call gives each plugin's OnToolError a chance to supply a
// fallback result instead of propagating the error.
func (m *Manager) AfterToolCallback() llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		current := result
		if err != nil {
			for _, p := range m.plugins {
				if p.OnToolError == nil {
					continue
				}
				fallback, hookErr := p.OnToolError(ctx, t, args, err.Error())
				if hookErr != nil {
					return nil, fmt.Errorf("plugin %q: on_tool_error: %w", p.Name, hookErr)
				}
				if fallback != nil {
					return fallback, nil
				}
			}
			return nil, err
		}
		for _, p := range m.plugins {
			if p.AfterTool == nil {
				continue
			}
			out, hookErr := p.AfterTool(ctx, t, args, current, nil)
			if hookErr != nil {
				return nil, fmt.Errorf("plugin %q: after_tool: %w", p.Name, hookErr)
			}
			if out != nil {
				current = out
			}
		}
		return current, nil
	}
}

// Close closes every plugin, giving each up to the Manager's close timeout.
// A plugin whose Close hangs past the timeout is abandoned, not retried;
// Close always returns after at most len(plugins)*closeTimeout.
func (m *Manager) Close(ctx context.Context) {
	for i := range m.plugins {
		p := &m.plugins[i]
		if p.Close == nil {
			continue
		}
		done := make(chan error, 1)
		go func() { done <- p.Close(ctx) }()
		select {
		case err := <-done:
			if err != nil {
				p.status = StatusError
			} else {
				p.status = StatusShutdown
			}
		case <-time.After(m.closeTimeout):
			p.status = StatusError
		}
	}
}
