// Package compaction manages how much conversation history an agent sends
// to a model on each turn. A Strategy filters the event list a request is
// built from, and optionally produces a Compaction event summarizing
// everything it dropped so a later turn (or a human reading the session)
// can still see what happened.
package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
)

// Strategy decides which events enter a request's message history and
// whether older history should be folded into a summary.
type Strategy interface {
	Name() string

	// FilterEvents returns the subset (or transformation) of events to
	// include when building the next request's message history.
	FilterEvents(events []*agent.Event) []*agent.Event

	// CheckAndSummarize inspects events after a turn completes and, if the
	// strategy's threshold is exceeded, returns a Compaction event to
	// append to the session. Returns nil if nothing needs summarizing.
	CheckAndSummarize(ctx context.Context, events []*agent.Event) (*agent.Event, error)
}

// Provider is implemented by agents that carry a compaction strategy, so a
// runner can drive post-turn summarization without depending on the
// concrete agent type.
type Provider interface {
	CompactionStrategy() Strategy

	// CompactionConfig reports when the Runner should even consider
	// running this agent's strategy.
	CompactionConfig() Config
}

// Config controls when a Runner checks a session for compaction: a
// per-session invocation counter gate and a trailing-event exclusion
// window, mirroring the source's {compaction_interval, overlap_size}
// tuning knobs.
type Config struct {
	// Interval is how many invocations must elapse before the counter
	// triggers a compaction check again (counter % Interval == 0). An
	// Interval of 0 or 1 checks every invocation.
	Interval int

	// OverlapSize excludes this many of the most recent events (counting
	// events, not turns — see the Open Question decisions) from
	// compaction eligibility even when the interval fires, so the
	// conversation's immediate continuity always survives a compaction
	// pass untouched.
	OverlapSize int
}

// ShouldRun reports whether invocationCount (1-indexed, incremented once
// per Runner.Run call) falls on this Config's interval boundary.
func (c Config) ShouldRun(invocationCount int) bool {
	interval := c.Interval
	if interval <= 0 {
		interval = 1
	}
	return invocationCount%interval == 0
}

// NilStrategy includes every event and never summarizes.
type NilStrategy struct{}

func (NilStrategy) Name() string                                 { return "none" }
func (NilStrategy) FilterEvents(e []*agent.Event) []*agent.Event { return e }
func (NilStrategy) CheckAndSummarize(context.Context, []*agent.Event) (*agent.Event, error) {
	return nil, nil
}

var _ Strategy = NilStrategy{}

// TokenWindowStrategy keeps the most recent events whose combined token
// count fits within MaxTokens, counted with the named tiktoken encoding.
// Older events are dropped outright (no summary), trading recall for
// simplicity and zero LLM cost.
type TokenWindowStrategy struct {
	MaxTokens int
	Encoding  string // defaults to "cl100k_base"
}

func (s TokenWindowStrategy) Name() string { return "token_window" }

func (s TokenWindowStrategy) encoding() string {
	if s.Encoding != "" {
		return s.Encoding
	}
	return "cl100k_base"
}

func (s TokenWindowStrategy) countTokens(text string) int {
	enc, err := tiktoken.GetEncoding(s.encoding())
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func (s TokenWindowStrategy) FilterEvents(events []*agent.Event) []*agent.Event {
	if s.MaxTokens <= 0 {
		return events
	}
	var kept []*agent.Event
	budget := s.MaxTokens
	for i := len(events) - 1; i >= 0; i-- {
		tokens := s.countTokens(events[i].TextContent())
		if tokens > budget && len(kept) > 0 {
			break
		}
		kept = append([]*agent.Event{events[i]}, kept...)
		budget -= tokens
	}
	return kept
}

func (s TokenWindowStrategy) CheckAndSummarize(context.Context, []*agent.Event) (*agent.Event, error) {
	return nil, nil
}

var _ Strategy = TokenWindowStrategy{}

// SummaryBufferStrategy keeps the most recent KeepLast events verbatim and,
// once all events together exceed MaxTokens, asks Summarizer to compress the
// older ones into a single Compaction event rather than discarding them.
type SummaryBufferStrategy struct {
	Summarizer model.LLM
	MaxTokens  int
	KeepLast   int
	Encoding   string
}

func (s SummaryBufferStrategy) Name() string { return "summary_buffer" }

func (s SummaryBufferStrategy) FilterEvents(events []*agent.Event) []*agent.Event {
	boundary := LatestCompactionBoundary(events)
	if boundary.IsZero() {
		return events
	}
	var kept []*agent.Event
	for _, e := range events {
		if !e.Timestamp.After(boundary) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// LatestCompactionBoundary returns the end timestamp of the most recent
// compaction marker in events, or the zero time if none exists. A Runner
// uses this to read "all events since the last compaction marker" per the
// compaction trigger's read step.
func LatestCompactionBoundary(events []*agent.Event) time.Time {
	var latest time.Time
	for _, e := range events {
		if e.Actions.Compaction != nil && e.Actions.Compaction.EndTimestamp.After(latest) {
			latest = e.Actions.Compaction.EndTimestamp
		}
	}
	return latest
}

func (s SummaryBufferStrategy) CheckAndSummarize(ctx context.Context, events []*agent.Event) (*agent.Event, error) {
	if s.Summarizer == nil || s.MaxTokens <= 0 {
		return nil, nil
	}
	tw := TokenWindowStrategy{Encoding: s.Encoding}
	total := 0
	for _, e := range events {
		total += tw.countTokens(e.TextContent())
	}
	if total <= s.MaxTokens {
		return nil, nil
	}
	cut := len(events) - s.KeepLast
	if cut <= 0 {
		return nil, nil
	}
	toSummarize := events[:cut]
	if len(toSummarize) == 0 {
		return nil, nil
	}

	var transcript string
	for _, e := range toSummarize {
		if text := e.TextContent(); text != "" {
			transcript += fmt.Sprintf("%s: %s\n", e.Author, text)
		}
	}

	req := &model.Request{
		SystemInstruction: "Summarize the following conversation concisely, preserving facts and decisions relevant to continuing it.",
		Messages:          []content.Content{content.NewText(content.RoleUser, transcript)},
	}

	var summary string
	for resp, err := range s.Summarizer.GenerateContent(ctx, req, false) {
		if err != nil {
			return nil, fmt.Errorf("compaction summarize: %w", err)
		}
		if resp != nil {
			summary = resp.TextContent()
		}
	}

	summaryContent := content.NewText(content.RoleUser, summary)
	ev := agent.NewEvent(toSummarize[0].InvocationID)
	ev.Author = agent.AuthorSystem
	ev.Content = &summaryContent
	ev.Actions.Compaction = &agent.Compaction{
		StartTimestamp:   toSummarize[0].Timestamp,
		EndTimestamp:     toSummarize[len(toSummarize)-1].Timestamp,
		CompactedContent: summaryContent,
	}
	ev.Actions.SkipSummarization = true
	return ev, nil
}

var _ Strategy = SummaryBufferStrategy{}
