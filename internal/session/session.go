// Package session keeps the editors opened by clients, keyed by session ID.
// Each session serializes its own operations; sessions idle longer than the
// TTL are evicted, and the registry never holds more than its capacity.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/timelapse-editor/internal/sequence"
	"github.com/maauso/timelapse-editor/internal/session/id"
)

var (
	// ErrSessionNotFound is returned when no editor is open under the ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionBusy is returned when another operation holds the session.
	ErrSessionBusy = errors.New("session is busy")
	// ErrInvalidSessionID is returned for IDs with unsupported characters.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrRegistryFull is returned when the capacity is reached and every session is busy.
	ErrRegistryFull = errors.New("session registry is full")
)

// Session is one open editor.
type Session struct {
	id        string
	editor    *sequence.Editor
	createdAt time.Time

	op chan struct{}

	mu       sync.Mutex
	lastUsed time.Time
}

func newSession(sessionID string, editor *sequence.Editor, now time.Time) *Session {
	return &Session{
		id:        sessionID,
		editor:    editor,
		createdAt: now,
		lastUsed:  now,
		op:        make(chan struct{}, 1),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Editor returns the editor bound to the session.
func (s *Session) Editor() *sequence.Editor { return s.editor }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastUsed returns the last time the session was looked up.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// TryLock claims the session for one operation without blocking.
// It returns ErrSessionBusy when another operation holds it.
func (s *Session) TryLock() error {
	select {
	case s.op <- struct{}{}:
		return nil
	default:
		return ErrSessionBusy
	}
}

// Unlock releases a claim taken with TryLock.
func (s *Session) Unlock() {
	select {
	case <-s.op:
	default:
	}
}

// Busy reports whether an operation currently holds the session.
func (s *Session) Busy() bool {
	return len(s.op) > 0
}

// Registry holds the open sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl      time.Duration
	capacity int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a registry. A non-positive ttl disables idle eviction
// and a non-positive capacity leaves the registry unbounded.
func NewRegistry(ttl time.Duration, capacity int, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open binds editor to sessionID, replacing any editor already open there.
// An empty sessionID gets a generated one.
func (r *Registry) Open(sessionID string, editor *sequence.Editor) (*Session, error) {
	if sessionID == "" {
		sessionID = id.Generate()
	}
	if !id.Valid(sessionID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.sessions[sessionID]; ok {
		if existing.Busy() {
			return nil, ErrSessionBusy
		}
		delete(r.sessions, sessionID)
	}

	if r.capacity > 0 && len(r.sessions) >= r.capacity {
		if !r.evictLRULocked() {
			return nil, ErrRegistryFull
		}
	}

	s := newSession(sessionID, editor, now)
	r.sessions[sessionID] = s

	r.logger.Info("session opened",
		slog.String("session_id", sessionID),
		slog.String("path", editor.Path()),
		slog.Int("frames", editor.FrameCount()),
	)
	return s, nil
}

// Get returns the session and marks it as used.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Close removes the session. An operation already running keeps its editor
// until it finishes.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	r.logger.Info("session closed", slog.String("session_id", sessionID))
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns the open session IDs.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for sid := range r.sessions {
		ids = append(ids, sid)
	}
	return ids
}

// EvictExpired closes sessions idle for longer than the TTL and returns
// how many were removed. Busy sessions are kept.
func (r *Registry) EvictExpired() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for sid, s := range r.sessions {
		if s.Busy() || s.LastUsed().After(cutoff) {
			continue
		}
		delete(r.sessions, sid)
		evicted++
		r.logger.Info("session expired",
			slog.String("session_id", sid),
			slog.Time("last_used", s.LastUsed()),
		)
	}
	return evicted
}

// Run evicts expired sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictExpired(); n > 0 {
				r.logger.Debug("evicted idle sessions", slog.Int("count", n))
			}
		}
	}
}

// evictLRULocked drops the least recently used idle session.
func (r *Registry) evictLRULocked() bool {
	var victim *Session
	for _, s := range r.sessions {
		if s.Busy() {
			continue
		}
		if victim == nil || s.LastUsed().Before(victim.LastUsed()) {
			victim = s
		}
	}
	if victim == nil {
		return false
	}
	delete(r.sessions, victim.id)
	r.logger.Info("session evicted to make room",
		slog.String("session_id", victim.id),
		slog.Int("capacity", r.capacity),
	)
	return true
}
