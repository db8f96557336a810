// Package stall detects repetition and lack of forward progress. Its only
// downstream effect is a pressure penalty.
package stall

import (
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/anchor"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/signals"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/textnorm"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
)

// #region types

// Severity grades a stall.
type Severity string

const (
	SeverityNone Severity = "none"
	SeveritySoft Severity = "soft"
	SeverityHard Severity = "hard"
)

const (
	ReasonNone = "NONE"
	ReasonSoft = "STALL_SOFT"
	ReasonHard = "STALL_HARD"
)

// Detail carries the inputs that produced a signal.
type Detail struct {
	Streak       int    `json:"streak"`
	RepeatSignal string `json:"repeatSignal,omitempty"`
	FlowDelta    int    `json:"flowDelta"`
	AnchorReason string `json:"anchorReason,omitempty"`
	ConvReason   string `json:"convReason,omitempty"`
}

// Signal is the detector output.
type Signal struct {
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
	Detail   Detail   `json:"detail"`
}

// Stalled reports whether any repetition was detected.
func (s Signal) Stalled() bool { return s.Severity == SeveritySoft || s.Severity == SeverityHard }

// #endregion types

// #region config

// Config holds the streak thresholds.
type Config struct {
	SoftStreak int // streak needed for a soft stall (with regression or no evidence)
	HardStreak int // streak that counts as same-phrase on its own
	StreakCap  int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{SoftStreak: 2, HardStreak: 3, StreakCap: 6}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SoftStreak <= 0 {
		c.SoftStreak = d.SoftStreak
	}
	if c.HardStreak <= 0 {
		c.HardStreak = d.HardStreak
	}
	if c.StreakCap <= 0 {
		c.StreakCap = d.StreakCap
	}
	return c
}

// #endregion config

// #region input

// Input is everything Detect reads.
type Input struct {
	Text    string
	TurnID  string
	History []turn.Message
	Meta    signals.Meta
}

// #endregion input

// #region detect

// Detect grades the current turn. It is pure and total.
func Detect(in Input, cfg Config) Signal {
	cfg = cfg.withDefaults()
	streak := Streak(in.Text, in.TurnID, in.History, cfg.StreakCap)

	out := Signal{
		Severity: SeverityNone,
		Reason:   ReasonNone,
		Detail: Detail{
			Streak:       streak,
			RepeatSignal: in.Meta.RepeatSignal,
			FlowDelta:    in.Meta.FlowDelta,
			AnchorReason: in.Meta.AnchorReason,
			ConvReason:   in.Meta.ConvReason,
		},
	}
	if len(in.History) == 0 {
		return out
	}

	noEvidence := in.Meta.AnchorReason == string(anchor.ReasonNoEvidence)
	regressed := in.Meta.Regressed()
	noProgress := in.Meta.ConvReason == signals.ConvNoProgress
	noSummary := in.Meta.ConvReason == signals.ConvNoContextSummary

	samePhrase := in.Meta.SamePhrase() || streak >= cfg.HardStreak
	hard := samePhrase && (noEvidence || regressed || noProgress)
	soft := (streak >= cfg.SoftStreak && (regressed || noEvidence)) ||
		(in.Meta.SamePhrase() && (noSummary || regressed))

	switch {
	case hard:
		out.Severity, out.Reason = SeverityHard, ReasonHard
	case soft:
		out.Severity, out.Reason = SeveritySoft, ReasonSoft
	}
	return out
}

// Streak counts the consecutive immediately-prior user lines with the same
// compacted text as the current utterance, capped at max. The current
// utterance is not counted. Trailing echoes of the current text recorded
// under the same turn id are skipped first, and non-user lines are ignored.
func Streak(text, turnID string, history []turn.Message, max int) int {
	cur := textnorm.Compact(text)
	if cur == "" {
		return 0
	}

	i := len(history) - 1
	for ; i >= 0; i-- {
		m := history[i]
		if turnID == "" || m.TurnID != turnID || m.Text != text {
			break
		}
	}

	streak := 0
	for ; i >= 0 && streak < max; i-- {
		m := history[i]
		if m.Role != turn.RoleUser {
			continue
		}
		if textnorm.Compact(m.Text) != cur {
			break
		}
		streak++
	}
	return streak
}

// #endregion detect
