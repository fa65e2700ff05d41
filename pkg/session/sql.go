package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zavora-ai/adk-go/pkg/agent"
	"github.com/zavora-ai/adk-go/pkg/content"
)

const (
	createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	app_name TEXT NOT NULL,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	state_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (app_name, user_id, session_id)
);
`
	createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS session_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	app_name TEXT NOT NULL,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	sequence_num INTEGER NOT NULL,
	event_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(app_name, user_id, session_id, sequence_num);
`
)

// SQLService is a database/sql-backed Service, persisting sessions and their
// event history durably. It currently targets sqlite3, the only SQL driver
// this module vendors; the schema uses SQLite-specific syntax
// (AUTOINCREMENT), so another driver also needs its own schema.
type SQLService struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLiteService opens (creating if absent) a sqlite3-backed Service at
// path and ensures its schema exists.
func OpenSQLiteService(path string) (*SQLService, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping sqlite: %w", err)
	}
	s := &SQLService{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLService) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessionsTableSQL); err != nil {
		return fmt.Errorf("session: create sessions table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createEventsTableSQL); err != nil {
		return fmt.Errorf("session: create events table: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLService) Close() error { return s.db.Close() }

func (s *SQLService) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	var stateJSON string
	var createdAt, updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json, created_at, updated_at FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		req.AppName, req.UserID, req.SessionID,
	).Scan(&stateJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("session: decode state: %w", err)
	}

	events, err := s.loadEvents(ctx, req.AppName, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	sess := &sqlSession{
		svc:            s,
		appName:        req.AppName,
		userID:         req.UserID,
		id:             req.SessionID,
		state:          newMemoryState(state),
		events:         &memoryEvents{events: events},
		lastUpdateTime: updatedAt,
	}
	return &GetResponse{Session: sess}, nil
}

func (s *SQLService) loadEvents(ctx context.Context, appName, userID, sessionID string) ([]*agent.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_json FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ? ORDER BY sequence_num ASC`,
		appName, userID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("session: load events: %w", err)
	}
	defer rows.Close()

	var events []*agent.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("session: scan event: %w", err)
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLService) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.SessionID
	if id == "" {
		id = newSessionID()
	}
	state := req.State
	if state == nil {
		state = map[string]any{}
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("session: encode state: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (app_name, user_id, session_id, state_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		req.AppName, req.UserID, id, string(stateJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}

	sess := &sqlSession{
		svc:            s,
		appName:        req.AppName,
		userID:         req.UserID,
		id:             id,
		state:          newMemoryState(state),
		events:         &memoryEvents{},
		lastUpdateTime: now,
	}
	return &CreateResponse{Session: sess}, nil
}

func (s *SQLService) AppendEvent(ctx context.Context, sess agent.Session, event *agent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Actions.StateDelta != nil {
		applyStateDelta(sess.State(), event.Actions.StateDelta)
	}

	stateMap := make(map[string]any)
	for k, v := range sess.State().All() {
		stateMap[k] = v
	}
	stateJSON, err := json.Marshal(stateMap)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	eventJSON, err := encodeEvent(event)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		sess.AppName(), sess.UserID(), sess.ID(),
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("session: next sequence: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (app_name, user_id, session_id, sequence_num, event_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.AppName(), sess.UserID(), sess.ID(), seq, eventJSON, now,
	); err != nil {
		return fmt.Errorf("session: insert event: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET state_json = ?, updated_at = ? WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		string(stateJSON), now, sess.AppName(), sess.UserID(), sess.ID(),
	); err != nil {
		return fmt.Errorf("session: update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: commit: %w", err)
	}

	if local, ok := sess.(*sqlSession); ok {
		local.events.append(event)
		local.mu.Lock()
		local.lastUpdateTime = now
		local.mu.Unlock()
	}
	return nil
}

func (s *SQLService) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, state_json, created_at, updated_at FROM sessions WHERE app_name = ? AND user_id = ?`,
		req.AppName, req.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	var out []agent.Session
	for rows.Next() {
		var id, stateJSON string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &stateJSON, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("session: scan: %w", err)
		}
		var state map[string]any
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			return nil, fmt.Errorf("session: decode state: %w", err)
		}
		events, err := s.loadEvents(ctx, req.AppName, req.UserID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, &sqlSession{
			svc: s, appName: req.AppName, userID: req.UserID, id: id,
			state: newMemoryState(state), events: &memoryEvents{events: events},
			lastUpdateTime: updatedAt,
		})
	}
	return &ListResponse{Sessions: out}, rows.Err()
}

func (s *SQLService) Delete(ctx context.Context, req *DeleteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		req.AppName, req.UserID, req.SessionID,
	); err != nil {
		return fmt.Errorf("session: delete events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		req.AppName, req.UserID, req.SessionID,
	); err != nil {
		return fmt.Errorf("session: delete session: %w", err)
	}
	return nil
}

// sqlSession is the agent.Session handed back by SQLService; its state and
// events are cached in memory after load/create and kept in sync through
// SQLService.AppendEvent, avoiding a round trip for every read.
type sqlSession struct {
	svc            *SQLService
	appName        string
	userID         string
	id             string
	state          *memoryState
	events         *memoryEvents
	mu             sync.RWMutex
	lastUpdateTime time.Time
}

func (s *sqlSession) ID() string           { return s.id }
func (s *sqlSession) AppName() string      { return s.appName }
func (s *sqlSession) UserID() string       { return s.userID }
func (s *sqlSession) State() agent.State   { return s.state }
func (s *sqlSession) Events() agent.Events { return s.events }
func (s *sqlSession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdateTime
}

// wireEvent is the JSON-on-the-wire shape for a persisted agent.Event; it
// exists because content.Part is a closed interface and needs an explicit
// discriminated encoding rather than encoding/json's default struct tags.
type wireEvent struct {
	ID           string               `json:"id"`
	InvocationID string               `json:"invocation_id"`
	Author       string               `json:"author"`
	Timestamp    time.Time            `json:"timestamp"`
	Content      *wireContent         `json:"content,omitempty"`
	Actions      agent.EventActions   `json:"actions"`
	LlmResponse  *agent.LlmResponseMeta `json:"llm_response,omitempty"`
	Partial      bool                 `json:"partial"`
	TurnComplete bool                 `json:"turn_complete"`
	FinishReason string               `json:"finish_reason,omitempty"`
	ErrorCode    string               `json:"error_code,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

type wireContent struct {
	Role  content.Role      `json:"role"`
	Parts []json.RawMessage `json:"parts"`
}

func encodeEvent(e *agent.Event) (string, error) {
	w := wireEvent{
		ID: e.ID, InvocationID: e.InvocationID, Author: e.Author, Timestamp: e.Timestamp,
		Actions: e.Actions, LlmResponse: e.LlmResponse, Partial: e.Partial,
		TurnComplete: e.TurnComplete, FinishReason: e.FinishReason,
		ErrorCode: e.ErrorCode, ErrorMessage: e.ErrorMessage,
	}
	if e.Content != nil {
		wc := &wireContent{Role: e.Content.Role}
		for _, p := range e.Content.Parts {
			raw, err := content.EncodePart(p)
			if err != nil {
				return "", fmt.Errorf("session: encode part: %w", err)
			}
			wc.Parts = append(wc.Parts, raw)
		}
		w.Content = wc
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("session: encode event: %w", err)
	}
	return string(b), nil
}

func decodeEvent(raw string) (*agent.Event, error) {
	var w wireEvent
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("session: decode event: %w", err)
	}
	e := &agent.Event{
		ID: w.ID, InvocationID: w.InvocationID, Author: w.Author, Timestamp: w.Timestamp,
		Actions: w.Actions, LlmResponse: w.LlmResponse, Partial: w.Partial,
		TurnComplete: w.TurnComplete, FinishReason: w.FinishReason,
		ErrorCode: w.ErrorCode, ErrorMessage: w.ErrorMessage,
	}
	if w.Content != nil {
		c := &content.Content{Role: w.Content.Role}
		for _, raw := range w.Content.Parts {
			p, err := content.DecodePart(raw)
			if err != nil {
				return nil, fmt.Errorf("session: decode part: %w", err)
			}
			c.Parts = append(c.Parts, p)
		}
		e.Content = c
	}
	return e, nil
}

// newSessionID generates a fallback id for SQLService.Create when the caller
// doesn't supply a SessionID.
func newSessionID() string {
	return uuid.NewString()
}

var _ agent.Session = (*sqlSession)(nil)
