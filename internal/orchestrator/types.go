package orchestrator

// #region imports
import (
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/anchor"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/arbitration"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/eval"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/lane"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/pressure"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/recall"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/signals"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/stall"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/update"
)

// #endregion

// #region config

// Config holds every tunable the engine passes to its stages.
type Config struct {
	Update   update.UpdateConfig
	Signals  signals.ProducerConfig
	Router   lane.RouterConfig
	Strategy string // lane strategy name: "conservative" | "strict"
	Stall    stall.Config
	Pressure pressure.Config
	Recall   recall.Config
	Eval     eval.EvalConfig

	DigestSize     int // ledger events folded into the prompt digest
	UpsertAttempts int // synchronous attempts for the final state write

	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Update:         update.DefaultUpdateConfig(),
		Signals:        signals.DefaultProducerConfig(),
		Router:         lane.DefaultRouterConfig(),
		Strategy:       lane.Conservative{}.Name(),
		Stall:          stall.DefaultConfig(),
		Pressure:       pressure.DefaultConfig(),
		Recall:         recall.DefaultConfig(),
		Eval:           eval.DefaultEvalConfig(),
		DigestSize:     ledger.DefaultDigestSize,
		UpsertAttempts: defaultUpsertAttempts,
		Temperature:    0.7,
		MaxTokens:      512,
	}
}

// #endregion

// #region result

// Result is everything one turn produced. Decision is the only field that
// callers may act on for display; the rest is for inspection and audit.
type Result struct {
	ConversationID string
	TurnID         string

	Decision arbitration.Decision

	Classified  coordinate.Coordinate
	Coordinate  coordinate.Coordinate
	Merge       update.Decision
	FlowDelta   int
	Anchor      anchor.Decision
	Meta        signals.Meta
	Route       lane.Result
	Placeholder lane.Placeholder
	Stall       stall.Signal
	Allow       pressure.Allow
	Recall      recall.Result
	Digest      string

	// Set only when the turn was persisted.
	Snapshot *state.Snapshot
	Eval     *eval.EvalResult
	Events   []ledger.Event
}

// Persisted reports whether the state upsert succeeded for this turn.
func (r Result) Persisted() bool {
	return r.Snapshot != nil
}

// #endregion
