// Package eval validates the next conversation snapshot before it is
// persisted.
package eval

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
)

// #region eval-harness
// EvalHarness runs lightweight validation on the snapshot about to be
// written.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	if config.MaxFlowTape <= 0 {
		config.MaxFlowTape = DefaultEvalConfig().MaxFlowTape
	}
	return &EvalHarness{config: config}
}

// Check validates next against prev with the default configuration.
func Check(prev, next state.Snapshot, tEntryOK bool) EvalResult {
	return NewEvalHarness(DefaultEvalConfig()).Run(prev, next, tEntryOK)
}

// Run compares prev and next. tEntryOK is the anchor gate's permission for
// this turn. A failed result means next must not be written.
func (h *EvalHarness) Run(prev, next state.Snapshot, tEntryOK bool) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. A fixed anchor is terminal.
	check("anchor_fixed_retained",
		!prev.Anchor.Fixed || next.Anchor == prev.Anchor,
		"fixed anchor changed")

	// 2. T entry needs permission from outside T.
	enteredT := prev.Coordinate.Depth.Band != coordinate.BandT && next.Coordinate.Depth.Band == coordinate.BandT
	check("t_entry_permitted",
		!enteredT || tEntryOK,
		fmt.Sprintf("entered %s without permission", next.Coordinate.Depth))

	// 3. Every set axis is valid.
	err := next.Coordinate.Validate()
	check("coordinate_valid", err == nil, fmt.Sprintf("invalid coordinate: %v", err))

	// 4. Flow tape stays bounded.
	check("flow_tape_bounded",
		len(next.FlowTape) <= h.config.MaxFlowTape,
		fmt.Sprintf("flow tape %d exceeds %d", len(next.FlowTape), h.config.MaxFlowTape))

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
