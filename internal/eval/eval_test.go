package eval

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/anchor"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
)

func snap(depth coordinate.DepthStage, a anchor.State) state.Snapshot {
	return state.Snapshot{
		VersionID:  "test-v1",
		Coordinate: coordinate.Coordinate{Depth: depth, Phase: coordinate.PhaseInner, QCode: coordinate.Q3},
		Anchor:     a,
	}
}

func TestEvalPassesOnOrdinaryTurn(t *testing.T) {
	prev := snap(coordinate.Stage(coordinate.BandS, 1), anchor.State{})
	next := snap(coordinate.Stage(coordinate.BandR, 2), anchor.State{LastChoiceID: "X"})

	result := Check(prev, next, false)
	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 4 {
		t.Fatalf("expected 4 metrics, got %d", len(result.Metrics))
	}
}

func TestEvalRejectsUnfixingAnchor(t *testing.T) {
	prev := snap(coordinate.Stage(coordinate.BandI, 1), anchor.State{Fixed: true, FixedKey: "SUN"})
	next := snap(coordinate.Stage(coordinate.BandI, 1), anchor.State{})

	result := Check(prev, next, false)
	if result.Passed {
		t.Fatal("expected fail when fixed anchor is cleared")
	}
	if !strings.Contains(result.Reason, "fixed anchor") {
		t.Errorf("unexpected reason: %s", result.Reason)
	}
}

func TestEvalTEntry(t *testing.T) {
	prev := snap(coordinate.Stage(coordinate.BandI, 3), anchor.State{})
	next := snap(coordinate.Stage(coordinate.BandT, 1), anchor.State{})

	tests := []struct {
		name     string
		prev     state.Snapshot
		tEntryOK bool
		want     bool
	}{
		{"without permission", prev, false, false},
		{"with permission", prev, true, true},
		{"already in T", snap(coordinate.Stage(coordinate.BandT, 2), anchor.State{}), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Check(tt.prev, next, tt.tEntryOK).Passed; got != tt.want {
				t.Errorf("Passed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalRejectsInvalidCoordinate(t *testing.T) {
	next := snap(coordinate.DepthStage{Band: "X", Level: 9}, anchor.State{})
	result := Check(state.Snapshot{}, next, false)
	if result.Passed {
		t.Fatal("expected fail on invalid coordinate")
	}
}

func TestEvalMultipleFailures(t *testing.T) {
	h := NewEvalHarness(EvalConfig{MaxFlowTape: 1})
	prev := snap(coordinate.Stage(coordinate.BandS, 1), anchor.State{Fixed: true, FixedKey: "K"})
	next := snap(coordinate.Stage(coordinate.BandT, 1), anchor.State{})
	next.FlowTape = []string{"S1", "T1"}

	result := h.Run(prev, next, false)
	if result.Passed {
		t.Fatal("expected fail")
	}
	if !strings.Contains(result.Reason, "3 checks") {
		t.Errorf("expected 3 failing checks in reason, got %s", result.Reason)
	}
}
