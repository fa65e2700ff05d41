package graph

import (
	"github.com/zavora-ai/adk-go/pkg/checkpoint"
)

// Checkpointer persists a graph thread's state across interrupts and
// resumes. See pkg/checkpoint for the interface and its implementations
// (MemoryCheckpointer, SessionCheckpointer).
type Checkpointer = checkpoint.Checkpointer

// Checkpoint is a persisted snapshot of one graph thread.
type Checkpoint = checkpoint.Checkpoint

func toCheckpointState(s State) checkpoint.State { return checkpoint.State(s) }

func fromCheckpointState(s checkpoint.State) State { return State(s) }
