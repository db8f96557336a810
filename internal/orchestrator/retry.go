package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
)

// #region constants

const defaultUpsertAttempts = 2 // one retry after the first failure

// #endregion

// #region upsert-with-retry

// upsertWithRetry writes the final state patch, retrying synchronously.
// A cancelled context stops retrying at once.
func upsertWithRetry(ctx context.Context, store state.Persistence, conversationID string, patch state.Patch, attempts int, logger *zap.Logger) (state.Snapshot, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return state.Snapshot{}, err
		}
		snap, err := store.UpsertState(ctx, conversationID, patch)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		logger.Warn("state upsert failed",
			zap.String("component", "orch"),
			zap.String("conversation_id", conversationID),
			zap.Int("attempt", i),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}
	return state.Snapshot{}, fmt.Errorf("upsert after %d attempts: %w", attempts, lastErr)
}

// #endregion
