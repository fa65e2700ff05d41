package checkpoint

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryCheckpointer keeps checkpoints in process memory, keyed by thread
// id. Suitable for tests and single-process deployments; state is lost on
// restart.
type MemoryCheckpointer struct {
	mu       sync.Mutex
	byThread map[string][]Checkpoint
}

// NewMemoryCheckpointer returns an empty MemoryCheckpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{byThread: make(map[string][]Checkpoint)}
}

func (m *MemoryCheckpointer) Put(_ context.Context, threadID string, cp Checkpoint) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.ThreadID = threadID
	if cp.CheckpointID == "" {
		cp.CheckpointID = uuid.NewString()
	}
	list := m.byThread[threadID]
	cp.Version = len(list) + 1
	m.byThread[threadID] = append(list, cp)
	return cp, nil
}

func (m *MemoryCheckpointer) Get(_ context.Context, threadID, checkpointID string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.byThread[threadID]
	if len(list) == 0 {
		return Checkpoint{}, false, nil
	}
	if checkpointID == "" {
		return list[len(list)-1], true, nil
	}
	for _, cp := range list {
		if cp.CheckpointID == checkpointID {
			return cp, true, nil
		}
	}
	return Checkpoint{}, false, nil
}

func (m *MemoryCheckpointer) List(_ context.Context, threadID string) ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.byThread[threadID]
	out := make([]Checkpoint, len(list))
	copy(out, list)
	return out, nil
}
