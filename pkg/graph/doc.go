// Package graph builds and executes directed graphs of named steps over a
// shared, channel-reduced state: a StateGraph registers nodes and edges
// (direct or router-conditional), Compile validates it, and the resulting
// CompiledGraph walks it from its entry node(s) until no edge points
// anywhere further or a recursion limit is hit. NewAgent adapts a
// CompiledGraph into an agent.Agent so a graph can sit anywhere a workflow
// combinator or an LLM-backed agent could.
package graph
