package scope

import (
	"context"
	"log/slog"
	"time"
)

// Outcome is the result of a scope check, recorded on every Event.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// Event records one scope-gated tool invocation attempt.
type Event struct {
	Timestamp      time.Time
	UserID         string
	ToolName       string
	SessionID      string
	Outcome        Outcome
	RequiredScopes []string
	MissingScopes  []string
}

// ToolAccess builds an Event for a tool invocation attempt against userID.
func ToolAccess(userID, toolName string, outcome Outcome) Event {
	return Event{
		Timestamp: time.Now(),
		UserID:    userID,
		ToolName:  toolName,
		Outcome:   outcome,
	}
}

// WithSession attaches the originating session id to the event.
func (e Event) WithSession(sessionID string) Event {
	e.SessionID = sessionID
	return e
}

// WithMissingScopes records which required scopes the caller lacked.
func (e Event) WithMissingScopes(scopes []string) Event {
	e.MissingScopes = scopes
	return e
}

// Sink records scope-check outcomes for later review. A guard logs to its
// sink, if any, before deciding whether to run the tool; a sink error never
// blocks the call, it's only surfaced to the process log.
type Sink interface {
	Log(ctx context.Context, event Event) error
}

// SlogSink audits to a structured logger, the default when a guard isn't
// given an explicit sink.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Log(_ context.Context, event Event) error {
	level := slog.LevelInfo
	if event.Outcome == OutcomeDenied {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "scope: tool access",
		"user_id", event.UserID,
		"tool", event.ToolName,
		"session_id", event.SessionID,
		"outcome", string(event.Outcome),
		"missing_scopes", event.MissingScopes,
	)
	return nil
}
