package lane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
)

func TestConservativeAlwaysIdeaBand(t *testing.T) {
	r := NewRouter(nil, nil, DefaultRouterConfig())
	inputs := []Input{
		{},
		{HasCore: true, DeclarationOK: true, Depth: coordinate.Stage(coordinate.BandT, 3)},
		{HasCore: true, DeclarationOK: true, DeepenOK: true, FixedAnchorKey: "SUN", Text: "決めた"},
	}
	for _, in := range inputs {
		assert.Equal(t, IdeaBand, r.Route(in).Lane)
	}
	assert.Equal(t, "conservative", r.Route(Input{}).Strategy)
}

func TestStrictNeedsCoreAndDeclaration(t *testing.T) {
	s, err := StrategyByName("strict")
	require.NoError(t, err)
	r := NewRouter(s, nil, DefaultRouterConfig())

	assert.Equal(t, TConcretize, r.Route(Input{HasCore: true, DeclarationOK: true}).Lane)
	assert.Equal(t, IdeaBand, r.Route(Input{HasCore: true}).Lane)
	assert.Equal(t, IdeaBand, r.Route(Input{DeclarationOK: true}).Lane)
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, "conservative", s.Name())

	_, err = StrategyByName("reckless")
	require.Error(t, err)
}

func TestEnterIntentBand(t *testing.T) {
	r := NewRouter(nil, nil, DefaultRouterConfig())
	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{"weak lexeme with deepen", Input{Depth: coordinate.Stage(coordinate.BandC, 1), DeepenOK: true, Text: "絵を描きたい、やりたい"}, true},
		{"weak lexeme without deepen", Input{Depth: coordinate.Stage(coordinate.BandC, 1), Text: "やりたい"}, false},
		{"strong lexeme without deepen", Input{Depth: coordinate.Stage(coordinate.BandI, 2), Text: "もう決めた"}, true},
		{"implausible band", Input{Depth: coordinate.Stage(coordinate.BandS, 1), DeepenOK: true, Text: "決めた"}, false},
		{"no depth", Input{Text: "I will do it"}, false},
		{"english strong", Input{Depth: coordinate.Stage(coordinate.BandR, 2), Text: "I'm going to call her"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(tt.in).EnterIntentBand)
		})
	}
}

func TestReconfirmTRequiresSentinel(t *testing.T) {
	r := NewRouter(nil, nil, DefaultRouterConfig())
	assert.True(t, r.Route(Input{FixedAnchorKey: "SUN", Text: "やっぱりこれでいく"}).ReconfirmT)
	assert.False(t, r.Route(Input{FixedAnchorKey: "MOON", Text: "やっぱりこれでいく"}).ReconfirmT)
	assert.False(t, r.Route(Input{FixedAnchorKey: "SUN", Text: "天気がいい"}).ReconfirmT)
}

type alwaysTrigger struct{}

func (alwaysTrigger) Fire(Input) (Trigger, bool) {
	return Trigger{Name: "always", Reason: "test"}, true
}

func TestNaturalTriggerRecordedOnly(t *testing.T) {
	assert.Nil(t, NewRouter(nil, nil, DefaultRouterConfig()).Route(Input{}).Natural)

	res := NewRouter(nil, alwaysTrigger{}, DefaultRouterConfig()).Route(Input{})
	require.NotNil(t, res.Natural)
	assert.Equal(t, "always", res.Natural.Name)
	assert.Equal(t, IdeaBand, res.Lane)
}

func TestPlaceholderCandidates(t *testing.T) {
	tests := []struct {
		name string
		in   PlaceholderInput
		want []string
	}{
		{"stabilize S", PlaceholderInput{Band: coordinate.BandS}, []string{"S→R"}},
		{"uncover R", PlaceholderInput{Band: coordinate.BandR, GoalKind: turn.GoalUncover}, []string{"S→R", "R→I"}},
		{"forward I", PlaceholderInput{Band: coordinate.BandI, GoalKind: turn.GoalForward}, []string{"I→T", "T→C"}},
		{"forward C wraps", PlaceholderInput{Band: coordinate.BandC, GoalKind: turn.GoalForward}, []string{"C→S", "S→R"}},
		{"uncover S wraps", PlaceholderInput{Band: coordinate.BandS, GoalKind: turn.GoalUncover}, []string{"C→S", "S→R"}},
		{"unknown band", PlaceholderInput{}, []string{"S→R"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluatePlaceholder(tt.in)
			assert.Equal(t, tt.want, got.Candidates)
			assert.LessOrEqual(t, len(got.Candidates), MaxCandidates)
			assert.False(t, got.Released)
			assert.Empty(t, got.Direction)
		})
	}
}

func TestPlaceholderReleased(t *testing.T) {
	got := EvaluatePlaceholder(PlaceholderInput{Band: coordinate.BandT, DeclarationOK: true})
	assert.True(t, got.Released)
	assert.Equal(t, "T→C", got.Direction)

	got = EvaluatePlaceholder(PlaceholderInput{Band: coordinate.BandI, ReconfirmT: true, GoalKind: turn.GoalUncover})
	assert.True(t, got.Released)
	assert.Equal(t, "I→T", got.Direction)
}
