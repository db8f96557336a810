package lane

import (
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
)

// #region cycle

// cycle is the canonical band order for direction arrows.
var cycle = []coordinate.Band{coordinate.BandS, coordinate.BandR, coordinate.BandI, coordinate.BandT, coordinate.BandC}

// MaxCandidates bounds the ranked direction list.
const MaxCandidates = 3

func cyclePos(b coordinate.Band) int {
	for i, x := range cycle {
		if x == b {
			return i
		}
	}
	return -1
}

func bandAt(i int) coordinate.Band {
	n := len(cycle)
	return cycle[((i%n)+n)%n]
}

func arrow(from, to coordinate.Band) string {
	return string(from) + "→" + string(to)
}

// #endregion

// #region placeholder

// PlaceholderInput is what the placeholder gate reads.
type PlaceholderInput struct {
	Band          coordinate.Band
	DeclarationOK bool
	ReconfirmT    bool
	GoalKind      turn.GoalKind
}

// Placeholder is the tentative direction for a turn.
type Placeholder struct {
	Released   bool     `json:"released"`
	Candidates []string `json:"candidates"`
	Direction  string   `json:"direction,omitempty"` // only when released
}

// EvaluatePlaceholder ranks direction arrows around the current band.
// uncover puts the previous arrow first, forward appends the arrow after
// next, stabilize keeps only the next arrow. An unknown band is treated as S.
func EvaluatePlaceholder(in PlaceholderInput) Placeholder {
	pos := cyclePos(in.Band)
	if pos < 0 {
		pos = 0
	}
	cur := bandAt(pos)
	next := arrow(cur, bandAt(pos+1))

	var candidates []string
	switch in.GoalKind {
	case turn.GoalUncover:
		candidates = []string{arrow(bandAt(pos-1), cur), next}
	case turn.GoalForward:
		candidates = []string{next, arrow(bandAt(pos+1), bandAt(pos+2))}
	default:
		candidates = []string{next}
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	p := Placeholder{
		Released:   in.DeclarationOK || in.ReconfirmT,
		Candidates: candidates,
	}
	if p.Released {
		p.Direction = next
	}
	return p
}

// #endregion
