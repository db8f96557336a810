package pressure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/lane"
)

var (
	depths = []coordinate.DepthStage{
		{},
		coordinate.Stage(coordinate.BandS, 1),
		coordinate.Stage(coordinate.BandR, 2),
		coordinate.Stage(coordinate.BandC, 3),
		coordinate.Stage(coordinate.BandI, 1),
		coordinate.Stage(coordinate.BandT, 2),
	}
	lanes  = []lane.Lane{lane.IdeaBand, lane.TConcretize, ""}
	qcodes = []coordinate.QCode{"", coordinate.Q1, coordinate.Q2, coordinate.Q3, coordinate.Q4, coordinate.Q5}
	flags  = []bool{false, true}
)

// forEachInput walks every combination of the input axes.
func forEachInput(fn func(Input)) {
	for _, d := range depths {
		for _, l := range lanes {
			for _, q := range qcodes {
				for _, stalled := range flags {
					for _, repeat := range flags {
						for _, confirmed := range flags {
							fn(Input{Depth: d, Lane: l, QCode: q, Stalled: stalled, RepeatSignal: repeat, IntentConfirmed: confirmed})
						}
					}
				}
			}
		}
	}
}

func TestStrengthAlwaysInRange(t *testing.T) {
	configs := []Config{
		DefaultConfig(),
		{RepeatPenalty: 5, QBias: map[coordinate.QCode]int{coordinate.Q5: 9, coordinate.Q1: -9}},
		{},
	}
	for _, cfg := range configs {
		forEachInput(func(in Input) {
			s := Build(in, cfg).Strength
			assert.GreaterOrEqual(t, s, 0, "input %+v", in)
			assert.LessOrEqual(t, s, MaxStrength, "input %+v", in)
		})
	}
}

func TestCommitHintOnlyInTWithFlag(t *testing.T) {
	forEachInput(func(in Input) {
		a := Build(in, DefaultConfig())
		want := in.Depth.Band == coordinate.BandT && in.IntentConfirmed
		assert.Equal(t, want, a.CommitHint, "input %+v", in)
		if a.CommitHint {
			assert.True(t, a.Concretize)
		}
	})
}

func TestBaseEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		depth coordinate.DepthStage
		lane  lane.Lane
		want  Allow
	}{
		{"S idea", coordinate.Stage(coordinate.BandS, 1), lane.IdeaBand, Allow{Propose: true, Strength: 0}},
		{"R idea", coordinate.Stage(coordinate.BandR, 1), lane.IdeaBand, Allow{Propose: true, Strength: 1}},
		{"C idea", coordinate.Stage(coordinate.BandC, 1), lane.IdeaBand, Allow{Narrow: true, Propose: true, Strength: 1}},
		{"I idea drops assert", coordinate.Stage(coordinate.BandI, 1), lane.IdeaBand, Allow{Propose: true, Strength: 2}},
		{"I concretize keeps assert", coordinate.Stage(coordinate.BandI, 1), lane.TConcretize, Allow{Assert: true, Concretize: true, Strength: 2}},
		{"T idea", coordinate.Stage(coordinate.BandT, 1), lane.IdeaBand, Allow{Concretize: true, Propose: true, Strength: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(Input{Depth: tt.depth, Lane: tt.lane}, DefaultConfig()))
		})
	}
}

func TestRepeatPenaltyAndBias(t *testing.T) {
	i1 := coordinate.Stage(coordinate.BandI, 1)
	cfg := DefaultConfig()

	assert.Equal(t, 1, Build(Input{Depth: i1, Lane: lane.IdeaBand, Stalled: true}, cfg).Strength)
	assert.Equal(t, 1, Build(Input{Depth: i1, Lane: lane.IdeaBand, RepeatSignal: true, Stalled: true}, cfg).Strength)
	assert.Equal(t, 3, Build(Input{Depth: i1, Lane: lane.IdeaBand, QCode: coordinate.Q2}, cfg).Strength)
	assert.Equal(t, 1, Build(Input{Depth: i1, Lane: lane.IdeaBand, QCode: coordinate.Q4}, cfg).Strength)
	assert.Equal(t, 2, Build(Input{Depth: i1, Lane: lane.IdeaBand, QCode: coordinate.Q3}, cfg).Strength)

	s1 := coordinate.Stage(coordinate.BandS, 1)
	assert.Equal(t, 1, Build(Input{Depth: s1, Lane: lane.IdeaBand, Stalled: true, QCode: coordinate.Q5}, cfg).Strength)
	assert.Equal(t, 0, Build(Input{Depth: s1, Lane: lane.IdeaBand, QCode: coordinate.Q1}, cfg).Strength)
}
