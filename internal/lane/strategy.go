package lane

import (
	"fmt"
	"sort"
)

// #region strategy-interface

// Strategy picks the lane. Implementations must be pure.
type Strategy interface {
	Name() string
	Choose(in Input) Lane
}

// #endregion

// #region strategy-definitions

// Conservative always keeps the conversation exploratory.
type Conservative struct{}

func (Conservative) Name() string      { return "conservative" }
func (Conservative) Choose(Input) Lane { return IdeaBand }

// Strict concretizes only when a core exists and the speaker made an
// explicit declaration.
type Strict struct{}

func (Strict) Name() string { return "strict" }

func (Strict) Choose(in Input) Lane {
	if in.HasCore && in.DeclarationOK {
		return TConcretize
	}
	return IdeaBand
}

// Strategies is the built-in registry keyed by name.
var Strategies = map[string]Strategy{
	Conservative{}.Name(): Conservative{},
	Strict{}.Name():       Strict{},
}

// #endregion

// #region lookup

// StrategyByName resolves a registered strategy; "" selects conservative.
func StrategyByName(name string) (Strategy, error) {
	if name == "" {
		return Conservative{}, nil
	}
	s, ok := Strategies[name]
	if !ok {
		names := make([]string, 0, len(Strategies))
		for n := range Strategies {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown lane strategy %q (have %v)", name, names)
	}
	return s, nil
}

// #endregion

// #region natural-trigger

// Trigger is a proposal from a NaturalTrigger. The router records it; it
// never changes the lane.
type Trigger struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// NaturalTrigger proposes lane changes from conversational cues.
type NaturalTrigger interface {
	Fire(in Input) (Trigger, bool)
}

// NoopTrigger never fires.
type NoopTrigger struct{}

func (NoopTrigger) Fire(Input) (Trigger, bool) { return Trigger{}, false }

// #endregion
