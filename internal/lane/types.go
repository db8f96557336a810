// Package lane chooses the behavioral lane for a turn and ranks tentative
// direction candidates.
package lane

import "github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"

// #region lane

// Lane is the behavioral mode for a turn.
type Lane string

const (
	IdeaBand    Lane = "IDEA_BAND"
	TConcretize Lane = "T_CONCRETIZE"
)

// #endregion lane

// #region input

// Input is what the router reads for a turn.
type Input struct {
	Depth          coordinate.DepthStage
	Phase          coordinate.Phase
	HasCore        bool
	DeclarationOK  bool
	DeepenOK       bool
	FixedAnchorKey string
	Text           string
}

// #endregion input

// #region result

// Result is the routing outcome for a turn.
type Result struct {
	Lane            Lane     `json:"lane"`
	Strategy        string   `json:"strategy"`
	EnterIntentBand bool     `json:"enterIntentBand"`
	ReconfirmT      bool     `json:"reconfirmT"`
	Natural         *Trigger `json:"natural,omitempty"`
}

// #endregion result
