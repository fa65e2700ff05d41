package checkpoint

import "context"

// State is a graph's channel-keyed state snapshot, duplicated here (rather
// than imported from pkg/graph) so this package has no dependency on the
// graph executor; pkg/graph converts to and from its own State type, which
// shares the same underlying map[string]any representation.
type State map[string]any

// Checkpoint is a persisted snapshot of one graph thread at a point in its
// execution: the state after the last committed step, which nodes produced
// it, and which nodes are queued to run next.
type Checkpoint struct {
	ThreadID      string
	CheckpointID  string
	State         State
	ExecutedNodes []string
	NextNodes     []string
	Version       int
}

// Checkpointer persists and retrieves checkpoints for a graph thread.
// Implementations must be safe for concurrent use across distinct thread
// ids; a graph executor serializes operations within a single thread id
// itself, so a Checkpointer need not.
type Checkpointer interface {
	// Put appends cp as the newest checkpoint for threadID. Version is
	// always assigned by the implementation; CheckpointID is assigned if
	// empty.
	Put(ctx context.Context, threadID string, cp Checkpoint) (Checkpoint, error)

	// Get retrieves a checkpoint by id, or the newest checkpoint for
	// threadID when checkpointID is empty. ok is false when none exists.
	Get(ctx context.Context, threadID, checkpointID string) (cp Checkpoint, ok bool, err error)

	// List returns every checkpoint for threadID, oldest first.
	List(ctx context.Context, threadID string) ([]Checkpoint, error)
}
