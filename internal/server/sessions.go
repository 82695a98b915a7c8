package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/metrics"
	"github.com/joseph-ayodele/missing-persons-intake/internal/pipeline"
)

// Factory builds the orchestrator for a new session.
type Factory func(sessionID string) *pipeline.Orchestrator

type session struct {
	orch     *pipeline.Orchestrator
	lastSeen time.Time
}

// Sessions holds intake sessions in memory and expires them after an idle period.
type Sessions struct {
	factory Factory
	idle    time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	items map[string]*session
}

func NewSessions(factory Factory, idle time.Duration, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		factory: factory,
		idle:    idle,
		now:     time.Now,
		logger:  logger,
		items:   make(map[string]*session),
	}
}

func (s *Sessions) Create() (string, *pipeline.Orchestrator) {
	id := uuid.NewString()
	orch := s.factory(id)

	s.mu.Lock()
	s.items[id] = &session{orch: orch, lastSeen: s.now()}
	s.mu.Unlock()

	metrics.SessionOpened()
	s.logger.Info("session.created", "session_id", id)
	return id, orch
}

// Get returns the session's orchestrator and marks it as used.
func (s *Sessions) Get(id string) (*pipeline.Orchestrator, error) {
	s.mu.Lock()
	sess, ok := s.items[id]
	if ok && s.expired(sess) {
		delete(s.items, id)
		s.mu.Unlock()
		s.release(id, sess, "expired")
		return nil, fmt.Errorf("%w: session %s expired", common.ErrNotFound, id)
	}
	if ok {
		sess.lastSeen = s.now()
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: session %s", common.ErrNotFound, id)
	}
	return sess.orch, nil
}

// Close ends a session and waits for its in-flight runs.
func (s *Sessions) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", common.ErrNotFound, id)
	}
	s.release(id, sess, "closed")
	return nil
}

// Sweep removes every idle session and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	var stale []string
	var released []*session
	for id, sess := range s.items {
		if s.expired(sess) {
			stale = append(stale, id)
			released = append(released, sess)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for i, id := range stale {
		s.release(id, released[i], "expired")
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("session.sweep", "expired", n)
			}
		}
	}
}

// CloseAll ends every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*session)
	s.mu.Unlock()
	for id, sess := range items {
		s.release(id, sess, "shutdown")
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) expired(sess *session) bool {
	return s.idle > 0 && s.now().Sub(sess.lastSeen) > s.idle
}

func (s *Sessions) release(id string, sess *session, reason string) {
	sess.orch.Close()
	metrics.SessionClosed()
	s.logger.Info("session.released", "session_id", id, "reason", reason)
}
