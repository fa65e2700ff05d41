package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/session"
)

// checkpointsKey is the session state key a SessionCheckpointer stores its
// checkpoint list under, mirroring the teacher's pending_executions layout:
// co-locating checkpoint data with the session it belongs to.
const checkpointsKey = "graph:checkpoints"

// SessionCheckpointer persists checkpoints inside a session's state,
// identifying the graph thread with the session id. This lets a graph's
// resumable execution ride on whatever Service backs the surrounding
// conversation (in-memory or SQL) rather than requiring a separate store.
type SessionCheckpointer struct {
	svc     session.Service
	appName string
	userID  string

	mu sync.Mutex
}

// NewSessionCheckpointer returns a SessionCheckpointer that looks up
// threads as sessions of appName/userID via svc.
func NewSessionCheckpointer(svc session.Service, appName, userID string) *SessionCheckpointer {
	return &SessionCheckpointer{svc: svc, appName: appName, userID: userID}
}

func (c *SessionCheckpointer) Put(ctx context.Context, threadID string, cp Checkpoint) (Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getOrCreateThread(ctx, threadID)
	if err != nil {
		return Checkpoint{}, err
	}

	list, err := c.loadList(sess)
	if err != nil {
		return Checkpoint{}, err
	}

	cp.ThreadID = threadID
	if cp.CheckpointID == "" {
		cp.CheckpointID = uuid.NewString()
	}
	cp.Version = len(list) + 1
	list = append(list, cp)

	if err := sess.State().Set(checkpointsKey, list); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: persist to session state: %w", err)
	}
	return cp, nil
}

func (c *SessionCheckpointer) Get(ctx context.Context, threadID, checkpointID string) (Checkpoint, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getThread(ctx, threadID)
	if err != nil {
		// No thread session yet means no checkpoint, not an error.
		return Checkpoint{}, false, nil
	}
	list, err := c.loadList(sess)
	if err != nil {
		return Checkpoint{}, false, err
	}
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

func (c *SessionCheckpointer) List(ctx context.Context, threadID string) ([]Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getThread(ctx, threadID)
	if err != nil {
		return nil, nil
	}
	return c.loadList(sess)
}

func (c *SessionCheckpointer) getThread(ctx context.Context, threadID string) (agent.Session, error) {
	resp, err := c.svc.Get(ctx, &session.GetRequest{AppName: c.appName, UserID: c.userID, SessionID: threadID})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (c *SessionCheckpointer) getOrCreateThread(ctx context.Context, threadID string) (agent.Session, error) {
	sess, err := c.getThread(ctx, threadID)
	if err == nil {
		return sess, nil
	}
	resp, createErr := c.svc.Create(ctx, &session.CreateRequest{AppName: c.appName, UserID: c.userID, SessionID: threadID})
	if createErr != nil {
		return nil, fmt.Errorf("checkpoint: create thread session: %w", createErr)
	}
	return resp.Session, nil
}

// loadList reads the checkpoint list out of session state. Values came back
// through State.Set/Get as []Checkpoint directly for the in-memory service;
// a SQL-backed Service round-trips through JSON, so both a native slice and
// a []any of maps are accepted.
func (c *SessionCheckpointer) loadList(sess agent.Session) ([]Checkpoint, error) {
	val, err := sess.State().Get(checkpointsKey)
	if err != nil {
		return nil, nil
	}
	switch v := val.(type) {
	case []Checkpoint:
		return v, nil
	case []any:
		out := make([]Checkpoint, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, checkpointFromMap(m))
		}
		return out, nil
	default:
		return nil, nil
	}
}

func checkpointFromMap(m map[string]any) Checkpoint {
	cp := Checkpoint{}
	if v, ok := m["ThreadID"].(string); ok {
		cp.ThreadID = v
	}
	if v, ok := m["CheckpointID"].(string); ok {
		cp.CheckpointID = v
	}
	if v, ok := m["State"].(map[string]any); ok {
		cp.State = State(v)
	}
	if v, ok := m["ExecutedNodes"].([]any); ok {
		for _, n := range v {
			if s, ok := n.(string); ok {
				cp.ExecutedNodes = append(cp.ExecutedNodes, s)
			}
		}
	}
	if v, ok := m["NextNodes"].([]any); ok {
		for _, n := range v {
			if s, ok := n.(string); ok {
				cp.NextNodes = append(cp.NextNodes, s)
			}
		}
	}
	if v, ok := m["Version"].(float64); ok {
		cp.Version = int(v)
	}
	return cp
}
