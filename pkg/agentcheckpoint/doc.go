// Package agentcheckpoint captures and recovers the execution state of a
// single running agent: its reasoning-loop position, pending tool calls, and
// the phase at which a snapshot was taken.
//
// This is deliberately scoped to the currently-executing agent, not the
// whole tree: session events already are the source of truth for the full
// multi-agent conversation, so on recovery the runner only needs to know
// which agent to resume and what that agent's own loop state was. It is
// unrelated to graph's per-thread Checkpointer (pkg/checkpoint), which
// snapshots a compiled graph's channel state between supersteps rather than
// an LLM agent's reasoning loop.
package agentcheckpoint
