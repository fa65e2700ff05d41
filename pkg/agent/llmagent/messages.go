package llmagent

import (
	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/content"
)

// eventBelongsToBranch reports whether an event produced on eventBranch is
// visible to an invocation running on invocationBranch: exact match, root
// events (empty branch), or an ancestor of the invocation's branch. Branch
// strings are dot-delimited agent-name paths; ancestor matching is on
// whole path segments so "agent_1" never matches "agent_10".
func eventBelongsToBranch(invocationBranch, eventBranch string) bool {
	if invocationBranch == "" || eventBranch == "" || eventBranch == invocationBranch {
		return true
	}
	if len(invocationBranch) > len(eventBranch) &&
		invocationBranch[:len(eventBranch)] == eventBranch &&
		invocationBranch[len(eventBranch)] == '.' {
		return true
	}
	return false
}

// buildMessages reconstructs the message history sent to the model for the
// current step: branch-scoped, partial and pending-approval events
// excluded, older history collapsed at the latest compaction boundary, and
// the agent's compaction strategy applied on top.
//
// The current user turn is not appended separately here: the runner already
// persisted it to the session before running the agent, and re-adding it
// produces a duplicate turn that confuses providers into repeating tool
// calls indefinitely.
func (a *llmAgent) buildMessages(ctx agent.InvocationContext) []content.Content {
	session := ctx.Session()
	if session == nil {
		return nil
	}

	var all []*agent.Event
	for event := range session.Events().All() {
		all = append(all, event)
	}

	if a.includeContents == IncludeContentsNone {
		startIdx := 0
		for i := len(all) - 1; i >= 0; i-- {
			if all[i].Author == agent.AuthorUser {
				startIdx = i
				break
			}
		}
		all = all[startIdx:]
	}

	branch := ctx.Branch()
	var filtered []*agent.Event
	for _, event := range all {
		if event.Content == nil {
			continue
		}
		if !eventBelongsToBranch(branch, event.Branch) {
			continue
		}
		if event.Partial {
			continue
		}
		if event.Actions.RequireInput {
			// Awaiting human approval: not a real result yet.
			continue
		}
		filtered = append(filtered, event)
	}

	filtered = collapseCompacted(filtered)
	if a.compactionStrategy != nil {
		filtered = a.compactionStrategy.FilterEvents(filtered)
	}

	messages := make([]content.Content, 0, len(filtered))
	for _, event := range filtered {
		messages = append(messages, *event.Content)
	}
	return messages
}

// collapseCompacted drops every event at or before the latest Compaction
// boundary, replacing them with that boundary event's own summary content,
// so history length is bounded regardless of which strategy runs next.
func collapseCompacted(events []*agent.Event) []*agent.Event {
	var boundary *agent.Event
	for _, e := range events {
		if e.Actions.Compaction != nil {
			boundary = e
		}
	}
	if boundary == nil {
		return events
	}
	out := []*agent.Event{boundary}
	for _, e := range events {
		if e != boundary && e.Timestamp.After(boundary.Actions.Compaction.EndTimestamp) {
			out = append(out, e)
		}
	}
	return out
}
