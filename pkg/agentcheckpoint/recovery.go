package agentcheckpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ResumeCallback resumes agent execution from a checkpoint.
type ResumeCallback func(ctx context.Context, state *State) error

// RecoveryManager recovers pending checkpoints on startup and on explicit
// resume requests.
//
//   - WORKING-phase tasks auto-resume if configured.
//   - Tasks waiting on tool approval wait for explicit user action unless
//     AutoResumeHITL is set.
//   - Expired checkpoints are cleared and left unresumed.
type RecoveryManager struct {
	config  *Config
	storage *Storage

	resumeCallback ResumeCallback
	mu             sync.RWMutex
}

// NewRecoveryManager creates a RecoveryManager over storage, governed by cfg.
func NewRecoveryManager(cfg *Config, storage *Storage) *RecoveryManager {
	return &RecoveryManager{config: cfg, storage: storage}
}

// SetResumeCallback sets the callback invoked to resume a recovered task.
func (m *RecoveryManager) SetResumeCallback(cb ResumeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeCallback = cb
}

// RecoverPendingTasks scans appName's sessions for userIDs for pending
// checkpoints and resumes the ones eligible for auto-resume. Intended to run
// once during server startup.
func (m *RecoveryManager) RecoverPendingTasks(ctx context.Context, appName string, userIDs []string) error {
	if !m.config.ShouldAutoResume() {
		slog.Debug("agentcheckpoint: recovery disabled", "app_name", appName)
		return nil
	}

	states, err := m.storage.ListPendingForUsers(ctx, appName, userIDs)
	if err != nil {
		return fmt.Errorf("agentcheckpoint: list pending checkpoints: %w", err)
	}
	if len(states) == 0 {
		slog.Debug("agentcheckpoint: no pending checkpoints to recover", "app_name", appName)
		return nil
	}

	slog.Info("agentcheckpoint: starting recovery", "app_name", appName, "count", len(states))

	var recovered, failed int
	for _, state := range states {
		if err := m.recoverCheckpoint(ctx, state); err != nil {
			slog.Error("agentcheckpoint: recover checkpoint failed",
				"task_id", state.TaskID, "session_id", state.SessionID, "error", err)
			failed++
			continue
		}
		recovered++
	}

	slog.Info("agentcheckpoint: recovery completed", "app_name", appName, "recovered", recovered, "failed", failed)
	return nil
}

func (m *RecoveryManager) recoverCheckpoint(ctx context.Context, state *State) error {
	if !state.IsRecoverable() {
		return fmt.Errorf("checkpoint not recoverable (phase=%s)", state.Phase)
	}

	timeout := m.config.GetRecoveryTimeout()
	if state.IsExpired(timeout) {
		slog.Warn("agentcheckpoint: checkpoint expired",
			"task_id", state.TaskID, "checkpoint_time", state.CheckpointTime, "timeout", timeout)
		if err := m.storage.Clear(ctx, state.AppName, state.UserID, state.SessionID, state.TaskID); err != nil {
			slog.Warn("agentcheckpoint: clear expired checkpoint failed", "error", err)
		}
		return fmt.Errorf("checkpoint expired")
	}

	if state.NeedsUserInput() && !m.config.ShouldAutoResumeHITL() {
		slog.Info("agentcheckpoint: checkpoint awaiting user input", "task_id", state.TaskID, "session_id", state.SessionID)
		return nil
	}

	m.mu.RLock()
	callback := m.resumeCallback
	m.mu.RUnlock()
	if callback == nil {
		slog.Warn("agentcheckpoint: no resume callback configured", "task_id", state.TaskID)
		return nil
	}

	slog.Info("agentcheckpoint: resuming task",
		"task_id", state.TaskID, "session_id", state.SessionID, "phase", state.Phase, "type", state.CheckpointType)

	go func() {
		if err := callback(ctx, state); err != nil {
			slog.Error("agentcheckpoint: resume failed", "task_id", state.TaskID, "error", err)
		}
	}()
	return nil
}

// ResumeTask loads and resumes a specific task's checkpoint, optionally
// attaching userInput (e.g. a human's tool-approval decision).
func (m *RecoveryManager) ResumeTask(ctx context.Context, appName, userID, sessionID, taskID, userInput string) error {
	state, err := m.storage.Load(ctx, appName, userID, sessionID, taskID)
	if err != nil {
		return fmt.Errorf("agentcheckpoint: load checkpoint: %w", err)
	}
	if !state.IsRecoverable() {
		return fmt.Errorf("agentcheckpoint: checkpoint not recoverable")
	}
	if state.IsExpired(m.config.GetRecoveryTimeout()) {
		_ = m.storage.Clear(ctx, appName, userID, sessionID, taskID)
		return fmt.Errorf("agentcheckpoint: checkpoint expired")
	}

	m.mu.RLock()
	callback := m.resumeCallback
	m.mu.RUnlock()
	if callback == nil {
		return fmt.Errorf("agentcheckpoint: no resume callback configured")
	}

	if userInput != "" && state.PendingToolCall != nil {
		if state.AgentState == nil {
			state.AgentState = &AgentStateSnapshot{}
		}
		if state.AgentState.Custom == nil {
			state.AgentState.Custom = make(map[string]any)
		}
		state.AgentState.Custom["user_input"] = userInput
	}

	return callback(ctx, state)
}

// GetPendingCheckpoints returns userID's pending checkpoints within appName.
func (m *RecoveryManager) GetPendingCheckpoints(ctx context.Context, appName, userID string) ([]*State, error) {
	return m.storage.ListPending(ctx, appName, userID)
}

// GetCheckpoint returns one task's checkpoint.
func (m *RecoveryManager) GetCheckpoint(ctx context.Context, appName, userID, sessionID, taskID string) (*State, error) {
	return m.storage.Load(ctx, appName, userID, sessionID, taskID)
}

// CancelCheckpoint removes a checkpoint without resuming it.
func (m *RecoveryManager) CancelCheckpoint(ctx context.Context, appName, userID, sessionID, taskID string) error {
	return m.storage.Clear(ctx, appName, userID, sessionID, taskID)
}

// CheckpointStats summarizes a set of pending checkpoints.
type CheckpointStats struct {
	Total         int
	Working       int
	InputRequired int
	Expired       int
	OldestAge     time.Duration
	AverageAge    time.Duration
}

// GetStats computes CheckpointStats over userIDs' pending checkpoints within
// appName.
func (m *RecoveryManager) GetStats(ctx context.Context, appName string, userIDs []string) (*CheckpointStats, error) {
	states, err := m.storage.ListPendingForUsers(ctx, appName, userIDs)
	if err != nil {
		return nil, err
	}

	stats := &CheckpointStats{Total: len(states)}
	if len(states) == 0 {
		return stats, nil
	}

	var totalAge time.Duration
	timeout := m.config.GetRecoveryTimeout()
	for _, state := range states {
		age := time.Since(state.CheckpointTime)
		totalAge += age
		if age > stats.OldestAge {
			stats.OldestAge = age
		}
		switch {
		case state.IsExpired(timeout):
			stats.Expired++
		case state.NeedsUserInput():
			stats.InputRequired++
		default:
			stats.Working++
		}
	}
	stats.AverageAge = totalAge / time.Duration(len(states))
	return stats, nil
}
