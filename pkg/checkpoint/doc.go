// Package checkpoint defines the persistence contract a graph executor uses
// to save and resume execution state across interrupts: a Checkpointer
// stores versioned snapshots keyed by thread id, and a thread's latest
// checkpoint determines where a resumed invocation picks up.
//
// This is distinct from the agentcheckpoint package, which captures a
// single LLM agent's execution-loop state (iteration, pending tool calls,
// conversation history) rather than a graph's node frontier.
package checkpoint
