// Package session serializes turns per conversation. A process-local lock
// map is always used; a distributed lock can be layered on top for
// multi-instance deployments.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker provides locks shared across processes.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done. The
	// returned UnlockFunc must be called to release it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// DefaultLockTTL bounds how long a crashed holder can block a conversation.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager hands out one logical queue per conversation. Unused entries are
// garbage collected by reference count.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker DistributedLocker
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for deferred unlock failures.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[id]
	if !ok {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and drops the entry at zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Active reports how many conversations currently hold or wait on a lock.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock runs fn while holding the conversation's lock. Distinct
// conversations never block each other.
func (m *Manager) WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	entry := m.acquire(conversationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(conversationID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, conversationID, m.ttl)
		if err != nil {
			return fmt.Errorf("acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("release distributed lock failed, will expire via ttl",
					zap.String("component", "session"),
					zap.String("conversation_id", conversationID),
					zap.Error(err),
				)
			}
		}()
	}

	return fn(ctx)
}
