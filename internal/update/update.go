package update

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
)

// #region merge-function
// MergeCoordinate is a pure function that folds this turn's classification
// into the persisted coordinate. Unset axes carry the previous value. The
// depth may move freely across S, R, C and I; moving into T from another band
// needs ctx.TEntryOK, otherwise the depth is clamped to config.TClampStage.
// A conversation already in T may stay there.
func MergeCoordinate(prev, classified coordinate.Coordinate, ctx UpdateContext, config UpdateConfig) UpdateResult {
	next := prev
	if classified.Phase != "" {
		next.Phase = classified.Phase
	}
	if classified.QCode != "" {
		next.QCode = classified.QCode
	}

	decision := Decision{Action: ActionCarry, Reason: "no depth classified"}

	switch d := classified.Depth; {
	case d.IsZero():
		// carry
	case d.Band != coordinate.BandT:
		next.Depth = d
		decision = Decision{Action: ActionAdvance, Reason: fmt.Sprintf("%s -> %s", stageLabel(prev.Depth), d)}
	case prev.Depth.Band == coordinate.BandT:
		next.Depth = d
		decision = Decision{Action: ActionAdvance, Reason: fmt.Sprintf("within T: %s -> %s", prev.Depth, d)}
	case ctx.TEntryOK:
		next.Depth = d
		decision = Decision{Action: ActionAdvance, Reason: fmt.Sprintf("T entry granted: %s -> %s", stageLabel(prev.Depth), d)}
	default:
		clamp := config.TClampStage
		if !clamp.Valid() || clamp.Band == coordinate.BandT {
			clamp = DefaultUpdateConfig().TClampStage
		}
		next.Depth = clamp
		decision = Decision{Action: ActionClamp, Reason: fmt.Sprintf("T entry denied: %s clamped to %s", d, clamp)}
	}

	if next == prev && decision.Action == ActionAdvance {
		decision = Decision{Action: ActionHold, Reason: "depth unchanged"}
	}

	return UpdateResult{
		Coordinate: next,
		Decision:   decision,
		FlowDelta:  flowDelta(prev.Depth, next.Depth),
	}
}

// #endregion merge-function

func flowDelta(prev, next coordinate.DepthStage) int {
	if prev.IsZero() || next.IsZero() {
		return 0
	}
	return next.Band.Index() - prev.Band.Index()
}

func stageLabel(d coordinate.DepthStage) string {
	if d.IsZero() {
		return "none"
	}
	return d.String()
}
