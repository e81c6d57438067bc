package daemon

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one mirroring session. Every invalidation bumps its generation
// and signals the capture loop; signals coalesce so a burst of changes
// causes a single restart.
type Session struct {
	ID      string
	Started time.Time

	generation atomic.Uint64
	notify     chan struct{}
	logger     *slog.Logger

	mu              sync.Mutex
	lastInvalidated time.Time
}

// NewSession starts a session with a fresh id.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	return &Session{
		ID:      id,
		Started: time.Now(),
		notify:  make(chan struct{}, 1),
		logger:  logger.With("session", id),
	}
}

// Invalidate implements display.Invalidator.
func (s *Session) Invalidate() {
	gen := s.generation.Add(1)
	s.mu.Lock()
	s.lastInvalidated = time.Now()
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	s.logger.Info("capture invalidated", "generation", gen)
}

// Generation counts invalidations since the session started.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// Invalidated is signalled after one or more invalidations.
func (s *Session) Invalidated() <-chan struct{} {
	return s.notify
}

// LastInvalidated returns the time of the latest invalidation, zero if none.
func (s *Session) LastInvalidated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInvalidated
}
