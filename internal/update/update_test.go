package update

import (
	"testing"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
)

var (
	s2 = coordinate.Stage(coordinate.BandS, 2)
	r1 = coordinate.Stage(coordinate.BandR, 1)
	i2 = coordinate.Stage(coordinate.BandI, 2)
	i3 = coordinate.Stage(coordinate.BandI, 3)
	t1 = coordinate.Stage(coordinate.BandT, 1)
	t2 = coordinate.Stage(coordinate.BandT, 2)
)

func TestMergeCarriesUnsetAxes(t *testing.T) {
	prev := coordinate.Coordinate{Depth: s2, Phase: coordinate.PhaseOuter, QCode: coordinate.Q3}
	result := MergeCoordinate(prev, coordinate.Coordinate{}, UpdateContext{}, DefaultUpdateConfig())

	if result.Coordinate != prev {
		t.Fatalf("expected carry-over %v, got %v", prev, result.Coordinate)
	}
	if result.Decision.Action != ActionCarry {
		t.Fatalf("expected carry, got %s", result.Decision.Action)
	}
	if result.FlowDelta != 0 {
		t.Fatalf("expected zero flow delta, got %d", result.FlowDelta)
	}
}

func TestMergeAdvancesOutsideT(t *testing.T) {
	prev := coordinate.Coordinate{Depth: s2, Phase: coordinate.PhaseInner}
	classified := coordinate.Coordinate{Depth: i2, QCode: coordinate.Q5}
	result := MergeCoordinate(prev, classified, UpdateContext{}, DefaultUpdateConfig())

	want := coordinate.Coordinate{Depth: i2, Phase: coordinate.PhaseInner, QCode: coordinate.Q5}
	if result.Coordinate != want {
		t.Fatalf("got %v, want %v", result.Coordinate, want)
	}
	if result.Decision.Action != ActionAdvance {
		t.Fatalf("expected advance, got %s", result.Decision.Action)
	}
	if result.FlowDelta != 3 {
		t.Fatalf("expected flow delta 3, got %d", result.FlowDelta)
	}
}

func TestMergeRegressionHasNegativeFlow(t *testing.T) {
	prev := coordinate.Coordinate{Depth: i2}
	result := MergeCoordinate(prev, coordinate.Coordinate{Depth: r1}, UpdateContext{}, DefaultUpdateConfig())
	if result.FlowDelta != -2 {
		t.Fatalf("expected flow delta -2, got %d", result.FlowDelta)
	}
}

func TestMergeTEntryNeedsPermission(t *testing.T) {
	prev := coordinate.Coordinate{Depth: i2}

	denied := MergeCoordinate(prev, coordinate.Coordinate{Depth: t2}, UpdateContext{TEntryOK: false}, DefaultUpdateConfig())
	if denied.Coordinate.Depth != i3 {
		t.Fatalf("expected clamp to I3, got %s", denied.Coordinate.Depth)
	}
	if denied.Decision.Action != ActionClamp {
		t.Fatalf("expected clamp, got %s", denied.Decision.Action)
	}

	granted := MergeCoordinate(prev, coordinate.Coordinate{Depth: t2}, UpdateContext{TEntryOK: true}, DefaultUpdateConfig())
	if granted.Coordinate.Depth != t2 {
		t.Fatalf("expected T2, got %s", granted.Coordinate.Depth)
	}
}

func TestMergeStaysInT(t *testing.T) {
	prev := coordinate.Coordinate{Depth: t1}
	result := MergeCoordinate(prev, coordinate.Coordinate{Depth: t2}, UpdateContext{}, DefaultUpdateConfig())
	if result.Coordinate.Depth != t2 {
		t.Fatalf("expected T2 within T, got %s", result.Coordinate.Depth)
	}
}

func TestMergeNeverEntersTWithoutPermission(t *testing.T) {
	for _, prevStage := range []coordinate.DepthStage{{}, s2, r1, i2, i3} {
		for lvl := 1; lvl <= coordinate.MaxLevel; lvl++ {
			classified := coordinate.Coordinate{Depth: coordinate.Stage(coordinate.BandT, lvl)}
			got := MergeCoordinate(coordinate.Coordinate{Depth: prevStage}, classified, UpdateContext{}, DefaultUpdateConfig())
			if got.Coordinate.Depth.Band == coordinate.BandT {
				t.Fatalf("entered T from %q without permission", prevStage)
			}
		}
	}
}

func TestMergeInvalidClampFallsBack(t *testing.T) {
	cfg := UpdateConfig{TClampStage: t1}
	result := MergeCoordinate(coordinate.Coordinate{}, coordinate.Coordinate{Depth: t1}, UpdateContext{}, cfg)
	if result.Coordinate.Depth != i3 {
		t.Fatalf("expected fallback clamp I3, got %s", result.Coordinate.Depth)
	}
}

func TestMergeHoldWhenUnchanged(t *testing.T) {
	prev := coordinate.Coordinate{Depth: s2}
	result := MergeCoordinate(prev, coordinate.Coordinate{Depth: s2}, UpdateContext{}, DefaultUpdateConfig())
	if result.Decision.Action != ActionHold {
		t.Fatalf("expected hold, got %s", result.Decision.Action)
	}
}
