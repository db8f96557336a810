package coordinate

import (
	"fmt"
	"strconv"
)

// #region band

// Band is one of the five ordered depth bands.
type Band string

const (
	BandS Band = "S" // self
	BandR Band = "R" // resonance / relationships
	BandC Band = "C" // creation / concrete action
	BandI Band = "I" // intention / identity
	BandT Band = "T" // transcendence / commitment
)

// Bands lists the bands in depth order.
var Bands = []Band{BandS, BandR, BandC, BandI, BandT}

// Index returns the depth order of b (S=0 .. T=4), or -1 for an unknown band.
func (b Band) Index() int {
	for i, x := range Bands {
		if x == b {
			return i
		}
	}
	return -1
}

// Valid reports whether b is one of the five bands.
func (b Band) Valid() bool {
	return b.Index() >= 0
}

// #endregion band

// #region depth-stage

// MaxLevel is the highest sublevel within a band.
const MaxLevel = 3

// DepthStage is a band plus sublevel (1..3). The zero value means "no stage".
type DepthStage struct {
	Band  Band `json:"band"`
	Level int  `json:"level"`
}

// Stage constructs a DepthStage.
func Stage(b Band, level int) DepthStage {
	return DepthStage{Band: b, Level: level}
}

// IsZero reports whether no stage is set.
func (d DepthStage) IsZero() bool {
	return d.Band == ""
}

// Valid reports whether d names a real band and sublevel.
func (d DepthStage) Valid() bool {
	return d.Band.Valid() && d.Level >= 1 && d.Level <= MaxLevel
}

// String renders e.g. "S2"; empty for the zero stage.
func (d DepthStage) String() string {
	if d.IsZero() {
		return ""
	}
	return string(d.Band) + strconv.Itoa(d.Level)
}

// Rank orders stages globally (S1=0 .. T3=14); -1 for the zero stage.
func (d DepthStage) Rank() int {
	if !d.Valid() {
		return -1
	}
	return d.Band.Index()*MaxLevel + d.Level - 1
}

// ParseStage parses "S1".."T3".
func ParseStage(s string) (DepthStage, error) {
	if len(s) != 2 {
		return DepthStage{}, fmt.Errorf("invalid depth stage %q", s)
	}
	lvl, err := strconv.Atoi(s[1:])
	if err != nil {
		return DepthStage{}, fmt.Errorf("invalid depth level in %q: %w", s, err)
	}
	d := DepthStage{Band: Band(s[:1]), Level: lvl}
	if !d.Valid() {
		return DepthStage{}, fmt.Errorf("invalid depth stage %q", s)
	}
	return d, nil
}

// #endregion depth-stage

// #region phase

// Phase is the Inner/Outer orientation of an utterance.
type Phase string

const (
	PhaseInner Phase = "Inner"
	PhaseOuter Phase = "Outer"
)

// Valid reports whether p is Inner or Outer.
func (p Phase) Valid() bool {
	return p == PhaseInner || p == PhaseOuter
}

// #endregion phase

// #region qcode

// QCode is the five-valued emotional vector.
type QCode string

const (
	Q1 QCode = "Q1" // fatigue / endurance
	Q2 QCode = "Q2" // anger / growth
	Q3 QCode = "Q3" // anxiety / stability
	Q4 QCode = "Q4" // fear / purification
	Q5 QCode = "Q5" // joy / passion
)

// Valid reports whether q is Q1..Q5.
func (q QCode) Valid() bool {
	switch q {
	case Q1, Q2, Q3, Q4, Q5:
		return true
	}
	return false
}

// #endregion qcode

// #region coordinate

// Coordinate is a position on the three axes. A zero axis means "carry over
// the previous value".
type Coordinate struct {
	Depth DepthStage `json:"depthStage"`
	Phase Phase      `json:"phase,omitempty"`
	QCode QCode      `json:"qCode,omitempty"`
}

// IsZero reports whether every axis is unset.
func (c Coordinate) IsZero() bool {
	return c.Depth.IsZero() && c.Phase == "" && c.QCode == ""
}

// Validate checks every set axis.
func (c Coordinate) Validate() error {
	if !c.Depth.IsZero() && !c.Depth.Valid() {
		return fmt.Errorf("invalid depth stage %+v", c.Depth)
	}
	if c.Phase != "" && !c.Phase.Valid() {
		return fmt.Errorf("invalid phase %q", c.Phase)
	}
	if c.QCode != "" && !c.QCode.Valid() {
		return fmt.Errorf("invalid q code %q", c.QCode)
	}
	return nil
}

// String renders e.g. "S2/Inner/Q3" with "-" for unset axes.
func (c Coordinate) String() string {
	d, p, q := c.Depth.String(), string(c.Phase), string(c.QCode)
	if d == "" {
		d = "-"
	}
	if p == "" {
		p = "-"
	}
	if q == "" {
		q = "-"
	}
	return d + "/" + p + "/" + q
}

// #endregion coordinate
