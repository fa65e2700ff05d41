package agentcheckpoint

import (
	"context"
	"log/slog"

	"github.com/zavora-ai/adk-go/pkg/session"
)

// Manager is the single entry point an agent loop or runner integrates
// against for checkpointing and recovery.
type Manager struct {
	config   *Config
	storage  *Storage
	recovery *RecoveryManager
}

// NewManager creates a Manager over sessionService, governed by cfg (nil
// uses defaults, which leave checkpointing disabled).
func NewManager(cfg *Config, sessionService session.Service) *Manager {
	if cfg == nil {
		cfg = &Config{}
		cfg.SetDefaults()
	}
	storage := NewStorage(sessionService)
	return &Manager{
		config:   cfg,
		storage:  storage,
		recovery: NewRecoveryManager(cfg, storage),
	}
}

func (m *Manager) IsEnabled() bool { return m.config.IsEnabled() }

// SetResumeCallback sets the callback used to resume a recovered task.
func (m *Manager) SetResumeCallback(cb ResumeCallback) { m.recovery.SetResumeCallback(cb) }

// SaveCheckpoint persists state, a no-op if checkpointing is disabled.
func (m *Manager) SaveCheckpoint(ctx context.Context, state *State) error {
	if !m.IsEnabled() {
		return nil
	}
	return m.storage.Save(ctx, state)
}

// LoadCheckpoint retrieves a task's checkpoint.
func (m *Manager) LoadCheckpoint(ctx context.Context, appName, userID, sessionID, taskID string) (*State, error) {
	return m.storage.Load(ctx, appName, userID, sessionID, taskID)
}

// ClearCheckpoint removes a task's checkpoint.
func (m *Manager) ClearCheckpoint(ctx context.Context, appName, userID, sessionID, taskID string) error {
	return m.storage.Clear(ctx, appName, userID, sessionID, taskID)
}

// RecoverOnStartup recovers eligible pending tasks for the given users.
// Intended to run once during server initialization.
func (m *Manager) RecoverOnStartup(ctx context.Context, appName string, userIDs []string) error {
	return m.recovery.RecoverPendingTasks(ctx, appName, userIDs)
}

// ResumeTask manually resumes a task from its checkpoint.
func (m *Manager) ResumeTask(ctx context.Context, appName, userID, sessionID, taskID, userInput string) error {
	return m.recovery.ResumeTask(ctx, appName, userID, sessionID, taskID, userInput)
}

// GetPendingCheckpoints returns userID's pending checkpoints.
func (m *Manager) GetPendingCheckpoints(ctx context.Context, appName, userID string) ([]*State, error) {
	return m.recovery.GetPendingCheckpoints(ctx, appName, userID)
}

// GetStats summarizes pending checkpoints across userIDs.
func (m *Manager) GetStats(ctx context.Context, appName string, userIDs []string) (*CheckpointStats, error) {
	return m.recovery.GetStats(ctx, appName, userIDs)
}

// Config returns the checkpoint configuration.
func (m *Manager) Config() *Config { return m.config }

func (m *Manager) ShouldCheckpointAtIteration(iteration int) bool {
	return m.config.ShouldCheckpointAtIteration(iteration)
}

func (m *Manager) ShouldCheckpointAfterTools() bool { return m.config.ShouldCheckpointAfterTools() }
func (m *Manager) ShouldCheckpointBeforeLLM() bool  { return m.config.ShouldCheckpointBeforeLLM() }

// Hooks provides the checkpoint integration points an agent loop calls into
// at each phase transition. Every method is a safe no-op on a nil *Hooks, so
// callers can wire it unconditionally and let config decide whether it does
// anything.
type Hooks struct {
	manager *Manager
}

// NewHooks creates Hooks over manager (nil manager yields nil Hooks).
func NewHooks(manager *Manager) *Hooks {
	if manager == nil {
		return nil
	}
	return &Hooks{manager: manager}
}

func (h *Hooks) BeforeLLMCall(ctx context.Context, state *State) {
	if h == nil || !h.manager.ShouldCheckpointBeforeLLM() {
		return
	}
	state.WithPhase(PhasePreLLM)
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		slog.Warn("agentcheckpoint: save pre-LLM checkpoint failed", "task_id", state.TaskID, "error", err)
	}
}

func (h *Hooks) AfterLLMCall(ctx context.Context, state *State) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	state.WithPhase(PhasePostLLM)
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		slog.Warn("agentcheckpoint: save post-LLM checkpoint failed", "task_id", state.TaskID, "error", err)
	}
}

func (h *Hooks) BeforeToolExecution(ctx context.Context, state *State, toolName string) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	state.WithPhase(PhaseToolExecution)
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		slog.Warn("agentcheckpoint: save pre-tool checkpoint failed", "task_id", state.TaskID, "tool", toolName, "error", err)
	}
}

func (h *Hooks) AfterToolExecution(ctx context.Context, state *State, toolName string) {
	if h == nil || !h.manager.ShouldCheckpointAfterTools() {
		return
	}
	state.WithPhase(PhasePostTool)
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		slog.Warn("agentcheckpoint: save post-tool checkpoint failed", "task_id", state.TaskID, "tool", toolName, "error", err)
	}
}

func (h *Hooks) OnToolApprovalRequired(ctx context.Context, state *State, pendingTool *PendingToolCall) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	state.WithPhase(PhaseToolApproval).WithPendingToolCall(pendingTool)
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		slog.Warn("agentcheckpoint: save tool-approval checkpoint failed", "task_id", state.TaskID, "tool", pendingTool.Name, "error", err)
	}
}

func (h *Hooks) OnIterationEnd(ctx context.Context, state *State, iteration int) {
	if h == nil || !h.manager.ShouldCheckpointAtIteration(iteration) {
		return
	}
	state.WithPhase(PhaseIterationEnd).WithType(TypeInterval)
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		slog.Warn("agentcheckpoint: save iteration checkpoint failed", "task_id", state.TaskID, "iteration", iteration, "error", err)
	}
}

func (h *Hooks) OnError(ctx context.Context, state *State, err error) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	state.WithError(err)
	if saveErr := h.manager.SaveCheckpoint(ctx, state); saveErr != nil {
		slog.Warn("agentcheckpoint: save error checkpoint failed", "task_id", state.TaskID, "original_error", err, "save_error", saveErr)
	}
}

func (h *Hooks) OnComplete(ctx context.Context, appName, userID, sessionID, taskID string) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	if err := h.manager.ClearCheckpoint(ctx, appName, userID, sessionID, taskID); err != nil {
		slog.Warn("agentcheckpoint: clear checkpoint on completion failed", "task_id", taskID, "error", err)
	}
}
