package scope

import (
	"iter"
	"log/slog"

	"github.com/zavora-ai/adk-go/pkg/tool"
)

// RequiredScoper is implemented by tools that require scopes to run. A
// tool that doesn't implement it is treated as requiring none, so Guard
// returns it unwrapped rather than refusing to protect it.
type RequiredScoper interface {
	RequiredScopes() []string
}

// Guard checks a tool invocation's granted scopes against the scopes the
// tool requires, denying the call and auditing the decision when they
// don't cover the requirement.
type Guard struct {
	resolver Resolver
	audit    Sink
}

// NewGuard builds a Guard that resolves granted scopes with resolver and
// audits every decision to a SlogSink.
func NewGuard(resolver Resolver) *Guard {
	return &Guard{resolver: resolver, audit: NewSlogSink(nil)}
}

// WithAudit replaces the guard's audit sink.
func (g *Guard) WithAudit(sink Sink) *Guard {
	g.audit = sink
	return g
}

func requiredScopes(t tool.Tool) []string {
	if rs, ok := t.(RequiredScoper); ok {
		return rs.RequiredScopes()
	}
	return nil
}

func (g *Guard) authorize(ctx tool.Context, t tool.Tool) error {
	required := requiredScopes(t)
	if len(required) == 0 {
		return nil
	}

	granted := g.resolver.Resolve(ctx)
	err := Check(required, granted)

	outcome := OutcomeGranted
	var missing []string
	if err != nil {
		outcome = OutcomeDenied
		missing = err.(*Denied).Missing
	}

	if g.audit != nil {
		event := ToolAccess(ctx.Session().UserID(), t.Name(), outcome).
			WithSession(ctx.Session().ID()).
			WithMissingScopes(missing)
		event.RequiredScopes = required
		// audit failures never block a call already decided
		if logErr := g.audit.Log(ctx, event); logErr != nil {
			slog.Warn("scope: audit sink failed", "tool", t.Name(), "error", logErr)
		}
	}

	return err
}

// Protect wraps a CallableTool so every Call first passes the guard's
// scope check.
func (g *Guard) Protect(t tool.CallableTool) tool.CallableTool {
	if len(requiredScopes(t)) == 0 {
		return t
	}
	return &scopedCallableTool{CallableTool: t, guard: g}
}

// ProtectStreaming wraps a StreamingTool so every CallStreaming first
// passes the guard's scope check.
func (g *Guard) ProtectStreaming(t tool.StreamingTool) tool.StreamingTool {
	if len(requiredScopes(t)) == 0 {
		return t
	}
	return &scopedStreamingTool{StreamingTool: t, guard: g}
}

// ProtectAll wraps every tool in tools that declares required scopes,
// leaving the rest untouched. It recognizes CallableTool and StreamingTool;
// a tool implementing neither (so nothing can ever invoke it) passes
// through as-is.
func (g *Guard) ProtectAll(tools []tool.Tool) []tool.Tool {
	out := make([]tool.Tool, len(tools))
	for i, t := range tools {
		switch v := t.(type) {
		case tool.CallableTool:
			out[i] = g.Protect(v)
		case tool.StreamingTool:
			out[i] = g.ProtectStreaming(v)
		default:
			out[i] = t
		}
	}
	return out
}

type scopedCallableTool struct {
	tool.CallableTool
	guard *Guard
}

func (s *scopedCallableTool) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	if err := s.guard.authorize(ctx, s.CallableTool); err != nil {
		return nil, err
	}
	return s.CallableTool.Call(ctx, args)
}

type scopedStreamingTool struct {
	tool.StreamingTool
	guard *Guard
}

func (s *scopedStreamingTool) CallStreaming(ctx tool.Context, args map[string]any) iter.Seq2[*tool.Result, error] {
	if err := s.guard.authorize(ctx, s.StreamingTool); err != nil {
		return func(yield func(*tool.Result, error) bool) {
			yield(nil, err)
		}
	}
	return s.StreamingTool.CallStreaming(ctx, args)
}
