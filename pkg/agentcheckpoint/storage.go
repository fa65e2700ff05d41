package agentcheckpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/session"
)

// pendingExecutionsKey is the session state key checkpoints are stored
// under, keyed further by task ID:
//
//	session.state["pending_executions"] = {"<task_id>": {...}, ...}
//
// This keeps a task's checkpoint co-located with the session it belongs to.
const pendingExecutionsKey = "pending_executions"

// Storage persists agent execution-state checkpoints inside session state.
type Storage struct {
	sessionService session.Service
}

// NewStorage creates a Storage backed by sessionService.
func NewStorage(sessionService session.Service) *Storage {
	return &Storage{sessionService: sessionService}
}

// Save persists state under its TaskID within its owning session.
func (s *Storage) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("agentcheckpoint: cannot save nil state")
	}
	if state.TaskID == "" {
		return fmt.Errorf("agentcheckpoint: task_id is required")
	}
	if state.SessionID == "" {
		return fmt.Errorf("agentcheckpoint: session_id is required")
	}

	sess, err := s.getSession(ctx, state.AppName, state.UserID, state.SessionID)
	if err != nil {
		return fmt.Errorf("agentcheckpoint: get session: %w", err)
	}

	stateJSON, err := state.Serialize()
	if err != nil {
		return fmt.Errorf("agentcheckpoint: serialize state: %w", err)
	}
	var stateMap map[string]any
	if err := json.Unmarshal(stateJSON, &stateMap); err != nil {
		return fmt.Errorf("agentcheckpoint: unmarshal state: %w", err)
	}

	pendingMap, err := s.getPendingExecutions(sess)
	if err != nil {
		return err
	}
	pendingMap[state.TaskID] = stateMap

	if err := sess.State().Set(pendingExecutionsKey, pendingMap); err != nil {
		return fmt.Errorf("agentcheckpoint: update session state: %w", err)
	}

	slog.Debug("agentcheckpoint: saved checkpoint",
		"task_id", state.TaskID, "session_id", state.SessionID, "phase", state.Phase, "type", state.CheckpointType)
	return nil
}

// Load retrieves the checkpoint for taskID, if any.
func (s *Storage) Load(ctx context.Context, appName, userID, sessionID, taskID string) (*State, error) {
	sess, err := s.getSession(ctx, appName, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("agentcheckpoint: get session: %w", err)
	}

	pendingMap, err := s.getPendingExecutions(sess)
	if err != nil {
		return nil, err
	}
	raw, ok := pendingMap[taskID]
	if !ok {
		return nil, fmt.Errorf("agentcheckpoint: no checkpoint for task %s", taskID)
	}

	stateJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("agentcheckpoint: marshal task state: %w", err)
	}
	state, err := Deserialize(stateJSON)
	if err != nil {
		return nil, fmt.Errorf("agentcheckpoint: deserialize checkpoint: %w", err)
	}

	slog.Debug("agentcheckpoint: loaded checkpoint", "task_id", taskID, "session_id", sessionID, "phase", state.Phase)
	return state, nil
}

// Clear removes the checkpoint for taskID.
func (s *Storage) Clear(ctx context.Context, appName, userID, sessionID, taskID string) error {
	sess, err := s.getSession(ctx, appName, userID, sessionID)
	if err != nil {
		return fmt.Errorf("agentcheckpoint: get session: %w", err)
	}

	pendingMap, err := s.getPendingExecutions(sess)
	if err != nil {
		return err
	}
	delete(pendingMap, taskID)

	if len(pendingMap) == 0 {
		if err := sess.State().Delete(pendingExecutionsKey); err != nil {
			slog.Debug("agentcheckpoint: delete empty pending_executions key failed", "error", err)
		}
	} else if err := sess.State().Set(pendingExecutionsKey, pendingMap); err != nil {
		return fmt.Errorf("agentcheckpoint: update session state: %w", err)
	}

	slog.Debug("agentcheckpoint: cleared checkpoint", "task_id", taskID, "session_id", sessionID)
	return nil
}

// ListPending returns every pending checkpoint belonging to userID within
// appName.
func (s *Storage) ListPending(ctx context.Context, appName, userID string) ([]*State, error) {
	resp, err := s.sessionService.List(ctx, &session.ListRequest{AppName: appName, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("agentcheckpoint: list sessions: %w", err)
	}

	var states []*State
	for _, sess := range resp.Sessions {
		pendingMap, err := s.getPendingExecutions(sess)
		if err != nil {
			continue
		}
		for taskID, raw := range pendingMap {
			stateJSON, err := json.Marshal(raw)
			if err != nil {
				slog.Warn("agentcheckpoint: marshal checkpoint failed", "task_id", taskID, "session_id", sess.ID(), "error", err)
				continue
			}
			state, err := Deserialize(stateJSON)
			if err != nil {
				slog.Warn("agentcheckpoint: deserialize checkpoint failed", "task_id", taskID, "session_id", sess.ID(), "error", err)
				continue
			}
			states = append(states, state)
		}
	}
	return states, nil
}

// ListPendingForUsers returns every pending checkpoint across userIDs within
// appName. Session.Service.List requires an explicit user ID (there is no
// cross-tenant listing), so a startup recovery scan must be given the set of
// users to check rather than discovering them itself.
func (s *Storage) ListPendingForUsers(ctx context.Context, appName string, userIDs []string) ([]*State, error) {
	var all []*State
	for _, userID := range userIDs {
		states, err := s.ListPending(ctx, appName, userID)
		if err != nil {
			return nil, err
		}
		all = append(all, states...)
	}
	return all, nil
}

func (s *Storage) getSession(ctx context.Context, appName, userID, sessionID string) (agent.Session, error) {
	resp, err := s.sessionService.Get(ctx, &session.GetRequest{AppName: appName, UserID: userID, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (s *Storage) getPendingExecutions(sess agent.Session) (map[string]any, error) {
	state := sess.State()
	if state == nil {
		return make(map[string]any), nil
	}

	val, err := state.Get(pendingExecutionsKey)
	if err != nil {
		return make(map[string]any), nil
	}

	pendingMap, ok := val.(map[string]any)
	if !ok {
		slog.Warn("agentcheckpoint: invalid pending_executions format in session",
			"session_id", sess.ID(), "type", fmt.Sprintf("%T", val))
		return make(map[string]any), nil
	}
	return pendingMap, nil
}
