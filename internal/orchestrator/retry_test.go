package orchestrator

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
)

func TestUpsertWithRetry_SucceedsOnSecondAttempt(t *testing.T) {
	store := &flakyStore{MemoryStore: state.NewMemoryStore(), failUpserts: 1}
	snap, err := upsertWithRetry(context.Background(), store, "c1", state.Patch{At: t0}, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.VersionID == "" {
		t.Fatal("expected a version id")
	}
	if store.upserts != 2 {
		t.Errorf("upserts = %d, want 2", store.upserts)
	}
}

func TestUpsertWithRetry_GivesUp(t *testing.T) {
	store := &flakyStore{MemoryStore: state.NewMemoryStore(), failUpserts: 5}
	_, err := upsertWithRetry(context.Background(), store, "c1", state.Patch{At: t0}, 2, zap.NewNop())
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if store.upserts != 2 {
		t.Errorf("upserts = %d, want 2", store.upserts)
	}
}

func TestUpsertWithRetry_StopsOnCancel(t *testing.T) {
	store := &flakyStore{MemoryStore: state.NewMemoryStore(), failUpserts: 5}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := upsertWithRetry(ctx, store, "c1", state.Patch{At: t0}, 3, zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.upserts != 0 {
		t.Errorf("upserts = %d, want 0", store.upserts)
	}
}

func TestUpsertWithRetry_ZeroAttemptsMeansOne(t *testing.T) {
	store := &flakyStore{MemoryStore: state.NewMemoryStore()}
	if _, err := upsertWithRetry(context.Background(), store, "c1", state.Patch{At: t0}, 0, zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1", store.upserts)
	}
}
