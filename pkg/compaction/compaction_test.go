package compaction_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/compaction"
	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
)

func textEvent(t time.Time, author, text string) *agent.Event {
	c := content.NewText(content.RoleUser, text)
	return &agent.Event{Author: author, Timestamp: t, Content: &c}
}

func TestNilStrategy_KeepsEverything(t *testing.T) {
	events := []*agent.Event{
		textEvent(time.Unix(1, 0), agent.AuthorUser, "hi"),
		textEvent(time.Unix(2, 0), "assistant", "hello"),
	}
	s := compaction.NilStrategy{}
	require.Equal(t, "none", s.Name())
	require.Equal(t, events, s.FilterEvents(events))

	ev, err := s.CheckAndSummarize(t.Context(), events)
	require.NoError(t, err)
	require.Nil(t, ev)
}

func TestTokenWindowStrategy_DropsOldestOnceOverBudget(t *testing.T) {
	events := []*agent.Event{
		textEvent(time.Unix(1, 0), agent.AuthorUser, strings.Repeat("word ", 200)),
		textEvent(time.Unix(2, 0), "assistant", strings.Repeat("reply ", 200)),
		textEvent(time.Unix(3, 0), agent.AuthorUser, "short"),
	}
	s := compaction.TokenWindowStrategy{MaxTokens: 5}

	kept := s.FilterEvents(events)
	require.NotEmpty(t, kept)
	require.Equal(t, events[len(events)-1], kept[len(kept)-1], "most recent event always survives")
	require.Less(t, len(kept), len(events), "budget of 5 tokens can't fit the two large events")
}

func TestTokenWindowStrategy_ZeroBudgetDisablesFiltering(t *testing.T) {
	events := []*agent.Event{textEvent(time.Unix(1, 0), agent.AuthorUser, "hi")}
	s := compaction.TokenWindowStrategy{}
	require.Equal(t, events, s.FilterEvents(events))
}

func TestSummaryBufferStrategy_SummarizesOnceOverBudget(t *testing.T) {
	fixture := &model.Fixture{
		Turns: [][]*model.Response{
			{{Content: contentPtr(content.NewText(content.RoleModel, "summary of the old turns"))}},
		},
	}
	s := compaction.SummaryBufferStrategy{
		Summarizer: fixture,
		MaxTokens:  1,
		KeepLast:   1,
	}
	events := []*agent.Event{
		textEvent(time.Unix(1, 0), agent.AuthorUser, "turn one with plenty of words to summarize"),
		textEvent(time.Unix(2, 0), "assistant", "turn two with plenty of words to summarize"),
		textEvent(time.Unix(3, 0), agent.AuthorUser, "turn three, kept verbatim"),
	}

	ev, err := s.CheckAndSummarize(t.Context(), events)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.True(t, ev.Actions.SkipSummarization)
	require.NotNil(t, ev.Actions.Compaction)
	require.Equal(t, "summary of the old turns", ev.TextContent())
	require.Equal(t, events[0].Timestamp, ev.Actions.Compaction.StartTimestamp)
	require.Equal(t, events[1].Timestamp, ev.Actions.Compaction.EndTimestamp)

	// Once the boundary is recorded, FilterEvents drops every original event
	// at or before it; the boundary (summary) event and anything strictly
	// after survive.
	withBoundary := append(append([]*agent.Event{}, events...), ev)
	filtered := s.FilterEvents(withBoundary)
	require.Len(t, filtered, 2)
	require.Equal(t, events[2], filtered[0])
	require.Equal(t, ev, filtered[1])
}

func TestSummaryBufferStrategy_NoOpUnderBudget(t *testing.T) {
	s := compaction.SummaryBufferStrategy{
		Summarizer: &model.Fixture{},
		MaxTokens:  1_000_000,
		KeepLast:   1,
	}
	events := []*agent.Event{textEvent(time.Unix(1, 0), agent.AuthorUser, "hi")}
	ev, err := s.CheckAndSummarize(t.Context(), events)
	require.NoError(t, err)
	require.Nil(t, ev)
}

func contentPtr(c content.Content) *content.Content { return &c }

func TestConfig_ShouldRun(t *testing.T) {
	cfg := compaction.Config{Interval: 3}
	require.False(t, cfg.ShouldRun(1))
	require.False(t, cfg.ShouldRun(2))
	require.True(t, cfg.ShouldRun(3))
	require.False(t, cfg.ShouldRun(4))
	require.True(t, cfg.ShouldRun(6))
}

func TestConfig_ShouldRunZeroIntervalMeansEveryInvocation(t *testing.T) {
	var cfg compaction.Config
	require.True(t, cfg.ShouldRun(1))
	require.True(t, cfg.ShouldRun(2))
}

func TestLatestCompactionBoundary_NoMarkerIsZero(t *testing.T) {
	events := []*agent.Event{textEvent(time.Unix(1, 0), agent.AuthorUser, "hi")}
	require.True(t, compaction.LatestCompactionBoundary(events).IsZero())
}

func TestLatestCompactionBoundary_ReturnsMostRecentMarker(t *testing.T) {
	earlier := &agent.Event{Actions: agent.EventActions{Compaction: &agent.Compaction{EndTimestamp: time.Unix(5, 0)}}}
	later := &agent.Event{Actions: agent.EventActions{Compaction: &agent.Compaction{EndTimestamp: time.Unix(9, 0)}}}
	require.Equal(t, time.Unix(9, 0), compaction.LatestCompactionBoundary([]*agent.Event{earlier, later}))
}
