// Package session provides an in-memory registry of ephemeral user sessions
// for MCP clients that cannot persist a user identifier themselves.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"outlookmcp/internal/instrumentation"
)

const (
	// DefaultTimeout is how long a session may sit idle before the sweeper
	// evicts it.
	DefaultTimeout = 24 * time.Hour

	sweepInterval = 10 * time.Minute

	// sessionIDBytes of randomness per id; collisions are birthday-bounded
	// and treated as negligible, so no uniqueness check is performed.
	sessionIDBytes = 16
)

// entry tracks one session's payload and idle time.
type entry struct {
	data       any
	lastAccess time.Time
}

// Registry maps ephemeral caller-assigned user identifiers to session
// metadata. It is an explicitly owned component (not a singleton): the clock
// and random source are constructor-supplied so tests can be deterministic.
// Sessions idle past the timeout are evicted by a background sweeper.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	metrics  *instrumentation.Metrics

	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	rand    io.Reader

	sweeper  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry with the default timeout and logger.
func NewRegistry() *Registry {
	return NewRegistryWithOptions(DefaultTimeout, nil, nil, nil)
}

// NewRegistryWithTimeout creates a registry with a custom idle timeout.
func NewRegistryWithTimeout(timeout time.Duration) *Registry {
	return NewRegistryWithOptions(timeout, nil, nil, nil)
}

// NewRegistryWithOptions creates a registry with explicit collaborators.
// Nil values fall back to slog.Default, time.Now and crypto/rand.
func NewRegistryWithOptions(timeout time.Duration, logger *slog.Logger, now func() time.Time, randSource io.Reader) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if randSource == nil {
		randSource = rand.Reader
	}

	r := &Registry{
		sessions: make(map[string]*entry),
		timeout:  timeout,
		logger:   logger,
		now:      now,
		rand:     randSource,
		sweeper:  time.NewTicker(sweepInterval),
		done:     make(chan struct{}),
	}
	go r.sweep()
	return r
}

// SetMetrics attaches a metrics recorder driving the active-sessions gauge.
// A nil recorder disables recording.
func (r *Registry) SetMetrics(m *instrumentation.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// CreateSession generates a new random session identifier and registers an
// empty session for it.
func (r *Registry) CreateSession() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := io.ReadFull(r.rand, buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	userID := hex.EncodeToString(buf)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = &entry{lastAccess: r.now()}
	if r.metrics != nil {
		r.metrics.IncrementActiveSessions(context.Background())
	}
	return userID, nil
}

// Store upserts the session payload for a user, stamping the access time.
func (r *Registry) Store(userID string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.sessions[userID]
	r.sessions[userID] = &entry{data: data, lastAccess: r.now()}
	if !existed && r.metrics != nil {
		r.metrics.IncrementActiveSessions(context.Background())
	}
}

// Fetch returns the session payload for a user, stamping the access time on
// a hit.
func (r *Registry) Fetch(userID string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	e.lastAccess = r.now()
	return e.data, true
}

// Remove deletes a session. It is a no-op for unknown ids.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[userID]; !ok {
		return
	}
	delete(r.sessions, userID)
	if r.metrics != nil {
		r.metrics.DecrementActiveSessions(context.Background())
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// evictIdle removes sessions idle past the timeout and returns the count.
func (r *Registry) evictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := 0
	for userID, e := range r.sessions {
		if now.Sub(e.lastAccess) > r.timeout {
			delete(r.sessions, userID)
			evicted++
		}
	}
	if evicted > 0 && r.metrics != nil {
		for i := 0; i < evicted; i++ {
			r.metrics.DecrementActiveSessions(context.Background())
		}
	}
	return evicted
}

func (r *Registry) sweep() {
	for {
		select {
		case <-r.sweeper.C:
			if n := r.evictIdle(); n > 0 {
				r.logger.Info("evicted idle sessions", slog.Int("count", n))
			}
		case <-r.done:
			return
		}
	}
}

// Stop halts the background sweeper. Sessions remain readable afterwards.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		r.sweeper.Stop()
		close(r.done)
	})
}
