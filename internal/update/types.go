package update

import "github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"

// #region update-context
// UpdateContext carries the per-turn gate outcome into the pure merge function.
type UpdateContext struct {
	TurnID   string
	TEntryOK bool // AnchorGate permission to enter the T band this turn
}

// #endregion update-context

// #region decision
// Decision records what the merge did with the classified depth.
type Decision struct {
	Action string // "advance" | "carry" | "clamp" | "hold"
	Reason string
}

const (
	ActionAdvance = "advance"
	ActionCarry   = "carry"
	ActionClamp   = "clamp"
	ActionHold    = "hold"
)

// #endregion decision

// #region update-config
// UpdateConfig holds the merge tunables.
type UpdateConfig struct {
	// TClampStage is where a refused T entry lands.
	TClampStage coordinate.DepthStage
}

// DefaultUpdateConfig clamps refused T entries to I3, the deepest non-T stage.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		TClampStage: coordinate.Stage(coordinate.BandI, coordinate.MaxLevel),
	}
}

// #endregion update-config

// #region update-result
// UpdateResult bundles everything returned by MergeCoordinate.
type UpdateResult struct {
	Coordinate coordinate.Coordinate
	Decision   Decision
	// FlowDelta is the band index change from the previous to the merged
	// depth (0 when either side is unset).
	FlowDelta int
}

// #endregion update-result
