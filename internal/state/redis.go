package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/ledger"
)

// #region redis-store

// RedisStore keeps the active snapshot as a JSON string and the ledger as a
// list, both keyed by conversation.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithTTL sets the expiration for conversation keys. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// DefaultRedisPrefix is used when no prefix option is given.
const DefaultRedisPrefix = "policy:conv:"

// NewRedisStore connects to address and returns a store.
func NewRedisStore(address, password string, db int, opts ...Option) *RedisStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) stateKey(conversationID string) string {
	return s.prefix + conversationID + ":state"
}

func (s *RedisStore) ledgerKey(conversationID string) string {
	return s.prefix + conversationID + ":ledger"
}

// Client exposes the underlying client so a lock can share the connection.
func (s *RedisStore) Client() *backend.Client {
	return s.client
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// #endregion redis-store

// #region redis-state

// GetState reads the active snapshot.
func (s *RedisStore) GetState(ctx context.Context, conversationID string) (Snapshot, error) {
	val, err := s.client.Get(ctx, s.stateKey(conversationID)).Result()
	if err != nil {
		if err == backend.Nil {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("get state %s: %w", conversationID, err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal state %s: %w", conversationID, err)
	}
	return snap, nil
}

// UpsertState applies p under WATCH so a concurrent writer forces a retry
// instead of a lost update.
func (s *RedisStore) UpsertState(ctx context.Context, conversationID string, p Patch) (Snapshot, error) {
	key := s.stateKey(conversationID)
	if p.At.IsZero() {
		p.At = time.Now().UTC()
	}

	var next Snapshot
	txf := func(tx *backend.Tx) error {
		prev := Snapshot{ConversationID: conversationID}
		val, err := tx.Get(ctx, key).Result()
		switch {
		case err == backend.Nil:
		case err != nil:
			return fmt.Errorf("read state: %w", err)
		default:
			if err := json.Unmarshal([]byte(val), &prev); err != nil {
				return fmt.Errorf("unmarshal state: %w", err)
			}
		}

		next = prev.Apply(p)
		next.ConversationID = conversationID
		next.ParentID = prev.VersionID
		next.VersionID = uuid.New().String()

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	const maxWatchRetries = 3
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return Snapshot{}, fmt.Errorf("upsert %s: %w", conversationID, err)
	}
	return Snapshot{}, fmt.Errorf("upsert %s: %w", conversationID, backend.TxFailedErr)
}

// #endregion redis-state

// #region redis-ledger

// AppendEvent pushes one event onto the conversation's ledger list.
func (s *RedisStore) AppendEvent(ctx context.Context, conversationID string, e ledger.Event) error {
	data, err := ledger.EncodeLine(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	key := s.ledgerKey(conversationID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events returns up to limit of the newest events in append order.
func (s *RedisStore) Events(ctx context.Context, conversationID string, limit int) ([]ledger.Event, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	vals, err := s.client.LRange(ctx, s.ledgerKey(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	out := make([]ledger.Event, 0, len(vals))
	for i, raw := range vals {
		var e ledger.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// #endregion redis-ledger
