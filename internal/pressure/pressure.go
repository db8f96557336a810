// Package pressure builds the per-turn Allow envelope that bounds how
// assertive and concrete a reply may be.
package pressure

import (
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/lane"
)

// #region allow

// MaxStrength is the top of the strength scale.
const MaxStrength = 3

// Allow is the permission and intensity envelope. Never persisted.
type Allow struct {
	Assert     bool `json:"assert"`
	Narrow     bool `json:"narrow"`
	Propose    bool `json:"propose"`
	Concretize bool `json:"concretize"`
	CommitHint bool `json:"commit_hint"`
	Strength   int  `json:"strength"`
}

// #endregion allow

// #region config

// Config holds the tunable bias magnitudes.
type Config struct {
	RepeatPenalty int
	// QBias maps a Q-code to a strength adjustment.
	QBias map[coordinate.QCode]int
}

// DefaultConfig treats anger and joy as mobilizing (+1), fatigue and fear as
// resistance (-1) and anxiety as neutral.
func DefaultConfig() Config {
	return Config{
		RepeatPenalty: 1,
		QBias: map[coordinate.QCode]int{
			coordinate.Q2: 1,
			coordinate.Q5: 1,
			coordinate.Q1: -1,
			coordinate.Q4: -1,
		},
	}
}

// #endregion config

// #region input

// Input is what Build reads.
type Input struct {
	Depth           coordinate.DepthStage
	Lane            lane.Lane
	QCode           coordinate.QCode
	Stalled         bool // StallDetector severity is not none
	RepeatSignal    bool // upstream reported same_phrase
	IntentConfirmed bool // explicit, externally asserted
}

// #endregion input

// #region build

// base returns the envelope for a band. An unset depth is treated as S.
func base(b coordinate.Band) Allow {
	switch b {
	case coordinate.BandR:
		return Allow{Propose: true, Strength: 1}
	case coordinate.BandC:
		return Allow{Narrow: true, Strength: 1}
	case coordinate.BandI:
		return Allow{Assert: true, Strength: 2}
	case coordinate.BandT:
		return Allow{Concretize: true, Strength: 3}
	default:
		return Allow{Strength: 0}
	}
}

// Build computes the envelope: band base, lane overlay, repeat penalty,
// Q-code bias, clamp, then the commit hint.
func Build(in Input, cfg Config) Allow {
	a := base(in.Depth.Band)

	switch in.Lane {
	case lane.TConcretize:
		a.Concretize = true
	default:
		a.Propose = true
		a.Assert = false
	}

	if in.Stalled || in.RepeatSignal {
		a.Strength -= cfg.RepeatPenalty
		if a.Strength < 0 {
			a.Strength = 0
		}
	}
	a.Strength += cfg.QBias[in.QCode]
	a.Strength = clamp(a.Strength)

	if in.Depth.Band == coordinate.BandT && in.IntentConfirmed {
		a.CommitHint = true
		a.Concretize = true
	}
	return a
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxStrength {
		return MaxStrength
	}
	return v
}

// #endregion build
