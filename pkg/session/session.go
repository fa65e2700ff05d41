// Package session manages the lifecycle of a conversation session: its
// identity, scoped key-value state, and append-only event history.
//
// A session's state keys are scope-prefixed (agent.KeyPrefixApp/User/Temp);
// unprefixed keys are session-local. Service.AppendEvent is the only mutator
// exposed to callers — merging an Event's EventActions.StateDelta into
// session state and appending the event itself happen atomically from the
// caller's point of view.
package session

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zavora-ai/adk-go/pkg/agent"
)

// ErrStateKeyNotExist is returned when a state key doesn't exist.
var ErrStateKeyNotExist = errors.New("session: state key does not exist")

// ErrSessionNotFound is returned when a session doesn't exist.
var ErrSessionNotFound = errors.New("session: not found")

// Service manages session lifecycle and persistence.
type Service interface {
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)
	Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error)
	// AppendEvent merges event.Actions.StateDelta into the session's state
	// and appends event to its history.
	AppendEvent(ctx context.Context, sess agent.Session, event *agent.Event) error
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) error
}

// GetRequest selects a session to retrieve.
type GetRequest struct {
	AppName   string
	UserID    string
	SessionID string
}

// GetResponse carries the retrieved session.
type GetResponse struct {
	Session agent.Session
}

// CreateRequest describes a session to create.
type CreateRequest struct {
	AppName   string
	UserID    string
	SessionID string // optional, generated if empty
	State     map[string]any
}

// CreateResponse carries the created session.
type CreateResponse struct {
	Session agent.Session
}

// ListRequest selects sessions to list.
type ListRequest struct {
	AppName string
	UserID  string
}

// ListResponse carries the matching sessions.
type ListResponse struct {
	Sessions []agent.Session
}

// DeleteRequest selects a session to delete.
type DeleteRequest struct {
	AppName   string
	UserID    string
	SessionID string
}

// memorySession is an in-memory agent.Session implementation.
type memorySession struct {
	id             string
	appName        string
	userID         string
	state          *memoryState
	events         *memoryEvents
	mu             sync.RWMutex
	lastUpdateTime time.Time
}

func (s *memorySession) ID() string            { return s.id }
func (s *memorySession) AppName() string       { return s.appName }
func (s *memorySession) UserID() string        { return s.userID }
func (s *memorySession) State() agent.State    { return s.state }
func (s *memorySession) Events() agent.Events  { return s.events }

func (s *memorySession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdateTime
}

func (s *memorySession) appendEvent(event *agent.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.append(event)
	s.lastUpdateTime = time.Now().UTC()
}

// memoryState is an in-memory agent.State implementation.
type memoryState struct {
	data map[string]any
	mu   sync.RWMutex
}

func newMemoryState(initial map[string]any) *memoryState {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &memoryState{data: data}
}

func (s *memoryState) Get(key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return nil, ErrStateKeyNotExist
	}
	return val, nil
}

func (s *memoryState) Set(key string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	return nil
}

func (s *memoryState) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memoryState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for k, v := range s.data {
			if !yield(k, v) {
				return
			}
		}
	}
}

func (s *memoryState) ClearTempKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.data {
		if strings.HasPrefix(key, agent.KeyPrefixTemp) {
			delete(s.data, key)
		}
	}
}

// memoryEvents is an in-memory agent.Events implementation.
type memoryEvents struct {
	events []*agent.Event
	mu     sync.RWMutex
}

func (e *memoryEvents) All() iter.Seq[*agent.Event] {
	return func(yield func(*agent.Event) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for _, ev := range e.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (e *memoryEvents) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events)
}

func (e *memoryEvents) At(i int) *agent.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.events) {
		return nil
	}
	return e.events[i]
}

func (e *memoryEvents) append(event *agent.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

// applyStateDelta merges delta into state, respecting scope prefixes
// verbatim: callers choose the scope by how they key their delta.
func applyStateDelta(state agent.State, delta map[string]any) {
	for k, v := range delta {
		if v == nil {
			_ = state.Delete(k)
			continue
		}
		_ = state.Set(k, v)
	}
}

// InMemoryService returns a process-local Service backed by in-memory maps.
func InMemoryService() Service {
	return &inMemoryService{sessions: make(map[string]*memorySession)}
}

type inMemoryService struct {
	sessions map[string]*memorySession
	mu       sync.RWMutex
}

func sessionKey(appName, userID, sessionID string) string {
	return appName + ":" + userID + ":" + sessionID
}

func (s *inMemoryService) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionKey(req.AppName, req.UserID, req.SessionID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &GetResponse{Session: sess}, nil
}

func (s *inMemoryService) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	sess := &memorySession{
		id:             id,
		appName:        req.AppName,
		userID:         req.UserID,
		state:          newMemoryState(req.State),
		events:         &memoryEvents{},
		lastUpdateTime: time.Now().UTC(),
	}
	s.sessions[sessionKey(req.AppName, req.UserID, id)] = sess
	slog.Debug("session created", "app", req.AppName, "user", req.UserID, "session", id)
	return &CreateResponse{Session: sess}, nil
}

func (s *inMemoryService) AppendEvent(ctx context.Context, sess agent.Session, event *agent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[sessionKey(sess.AppName(), sess.UserID(), sess.ID())]
	if !ok {
		return ErrSessionNotFound
	}
	if event.Actions.StateDelta != nil {
		applyStateDelta(ms.state, event.Actions.StateDelta)
	}
	ms.appendEvent(event)
	return nil
}

func (s *inMemoryService) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := req.AppName + ":" + req.UserID + ":"
	var out []agent.Session
	for key, sess := range s.sessions {
		if strings.HasPrefix(key, prefix) {
			out = append(out, sess)
		}
	}
	return &ListResponse{Sessions: out}, nil
}

func (s *inMemoryService) Delete(ctx context.Context, req *DeleteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(req.AppName, req.UserID, req.SessionID))
	return nil
}

var (
	_ agent.Session = (*memorySession)(nil)
	_ agent.State   = (*memoryState)(nil)
	_ agent.Events  = (*memoryEvents)(nil)
	_ Service       = (*inMemoryService)(nil)
)
