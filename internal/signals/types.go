package signals

// #region meta

// Repeat and conversation signal values shared with upstream callers.
const (
	RepeatSamePhrase = "same_phrase"

	ConvNoContextSummary = "NO_CTX_SUMMARY"
	ConvNoProgress       = "NO_PROGRESS"
)

// Meta is the upstream signal bundle read by the stall detector.
type Meta struct {
	RepeatSignal string `json:"repeatSignal,omitempty"`
	FlowDelta    int    `json:"flowDelta"`
	AnchorReason string `json:"anchorReason,omitempty"`
	ConvReason   string `json:"convReason,omitempty"`
}

// SamePhrase reports whether upstream flagged a repeated phrase.
func (m Meta) SamePhrase() bool { return m.RepeatSignal == RepeatSamePhrase }

// Regressed reports whether the depth moved to a shallower band.
func (m Meta) Regressed() bool { return m.FlowDelta < 0 }

// #endregion meta

// #region config

// ProducerConfig holds tuning knobs for signal computation.
type ProducerConfig struct {
	// NoProgressStreak is how many identical user lines, with no band
	// movement, count as NO_PROGRESS.
	NoProgressStreak int
}

// DefaultProducerConfig returns sensible defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{NoProgressStreak: 1}
}

// #endregion config

// #region input

// ProduceInput bundles the per-turn data available before stall detection.
type ProduceInput struct {
	Text         string
	LastUserText string
	FlowDelta    int    // band delta from the coordinate merge
	AnchorReason string // AnchorGate reason for this turn
	Digest       string // ledger digest; empty means no context summary

	// Explicit upstream values; when set they win over derived ones.
	OverrideRepeat     string
	OverrideFlowDelta  *int
	OverrideAnchor     string
	OverrideConvReason string
}

// #endregion input
