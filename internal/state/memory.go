package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/ledger"
)

// MemoryStore is an in-process Persistence used by replay and tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]Snapshot
	events map[string][]ledger.Event
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]Snapshot),
		events: make(map[string][]ledger.Event),
	}
}

func (m *MemoryStore) GetState(_ context.Context, conversationID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.states[conversationID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

func (m *MemoryStore) UpsertState(ctx context.Context, conversationID string, p Patch) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.states[conversationID]
	if !ok {
		prev = Snapshot{ConversationID: conversationID}
	}
	if p.At.IsZero() {
		p.At = time.Now().UTC()
	}
	next := prev.Apply(p)
	next.ConversationID = conversationID
	next.ParentID = prev.VersionID
	next.VersionID = uuid.New().String()
	m.states[conversationID] = next
	return cloneSnapshot(next), nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, conversationID string, e ledger.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[conversationID] = append(m.events[conversationID], e)
	return nil
}

func (m *MemoryStore) Events(_ context.Context, conversationID string, limit int) ([]ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events[conversationID]
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	return append([]ledger.Event(nil), evs...), nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.FlowTape = append([]string(nil), s.FlowTape...)
	return s
}
