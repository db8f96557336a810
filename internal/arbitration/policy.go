// Package arbitration renders the single, frozen decision for a turn. It is
// the only component that decides about generation, display and persistence.
package arbitration

import (
	"errors"
	"strings"
	"sync"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
)

// #region act

// Act is the final action for a turn.
type Act string

const (
	ActSilence Act = "SILENCE"
	ActForward Act = "FORWARD"
	ActRender  Act = "RENDER"
	ActBlock   Act = "BLOCK"
	ActError   Act = "ERROR"
)

// Marker texts shown for hard stops.
const (
	BlockMarker = "[blocked]"
	ErrorMarker = "[error]"
)

// Reason codes attached to decisions.
const (
	ReasonHardSilence = "HARD_STOP_SILENCE"
	ReasonHardBlock   = "HARD_STOP_BLOCK"
	ReasonHardError   = "HARD_STOP_ERROR"
	ReasonEmptyText   = "EMPTY_TEXT"
	ReasonRender      = "RENDER"
	ReasonForward     = "FORWARD_ONLY"
	ReasonLLMOff      = "LLM_DISABLED"
)

// ErrAlreadyDecided is returned when a Once gate is asked twice.
var ErrAlreadyDecided = errors.New("decision already made for this turn")

// #endregion act

// #region decision

// Decision is the frozen result. Fields are unexported; getters return
// copies so callers cannot change what later readers see.
type Decision struct {
	act           Act
	allowLLM      bool
	allowRender   bool
	shouldDisplay bool
	shouldPersist bool
	text          string
	reasons       []string
	errDetail     string
}

func (d Decision) Act() Act            { return d.act }
func (d Decision) AllowLLM() bool      { return d.allowLLM }
func (d Decision) AllowRender() bool   { return d.allowRender }
func (d Decision) ShouldDisplay() bool { return d.shouldDisplay }
func (d Decision) ShouldPersist() bool { return d.shouldPersist }
func (d Decision) Text() string        { return d.text }
func (d Decision) Frozen() bool        { return true }
func (d Decision) ErrorDetail() string { return d.errDetail }
func (d Decision) Reasons() []string   { return append([]string(nil), d.reasons...) }

// View is a plain snapshot for logs and JSON output.
type View struct {
	Act           Act      `json:"act"`
	AllowLLM      bool     `json:"allowLLM"`
	AllowRender   bool     `json:"allowRender"`
	ShouldDisplay bool     `json:"shouldDisplay"`
	ShouldPersist bool     `json:"shouldPersist"`
	Text          string   `json:"text"`
	Reasons       []string `json:"reasons"`
	Frozen        bool     `json:"frozen"`
}

// View copies the decision into a plain struct. Changing the copy has no
// effect on d.
func (d Decision) View() View {
	return View{
		Act:           d.act,
		AllowLLM:      d.allowLLM,
		AllowRender:   d.allowRender,
		ShouldDisplay: d.shouldDisplay,
		ShouldPersist: d.shouldPersist,
		Text:          d.text,
		Reasons:       d.Reasons(),
		Frozen:        true,
	}
}

// #endregion decision

// #region input

// Input is everything the policy reads.
type Input struct {
	HardStop    turn.HardStop
	AllowLLM    *bool
	AllowRender *bool
	Text        string   // candidate text after post-processing
	Reasons     []string // upstream reasons carried into the decision
	Err         error    // generation failure, surfaced as ERROR
}

// #endregion input

// #region decide

// Decide evaluates the policy. Rows, in order: hard SILENCE, hard BLOCK,
// hard ERROR (explicit or from Err), flag resolution, empty-text downgrade,
// RENDER or FORWARD.
func Decide(in Input) Decision {
	reasons := append([]string(nil), in.Reasons...)

	stop := in.HardStop
	var errDetail string
	if in.Err != nil {
		errDetail = in.Err.Error()
		if stop == turn.StopNone {
			stop = turn.StopError
		}
	}

	switch stop {
	case turn.StopSilence:
		return Decision{act: ActSilence, reasons: append(reasons, ReasonHardSilence)}
	case turn.StopBlock:
		return Decision{
			act:           ActBlock,
			shouldDisplay: true,
			text:          BlockMarker,
			reasons:       append(reasons, ReasonHardBlock),
		}
	case turn.StopError:
		return Decision{
			act:           ActError,
			shouldDisplay: true,
			shouldPersist: true,
			text:          ErrorMarker,
			reasons:       append(reasons, ReasonHardError),
			errDetail:     errDetail,
		}
	}

	allowLLM := in.AllowLLM == nil || *in.AllowLLM
	allowRender := in.AllowRender == nil || *in.AllowRender
	if !allowLLM {
		reasons = append(reasons, ReasonLLMOff)
	}

	if strings.TrimSpace(in.Text) == "" {
		return Decision{
			act:         ActSilence,
			allowLLM:    allowLLM,
			allowRender: allowRender,
			reasons:     append(reasons, ReasonEmptyText),
		}
	}

	d := Decision{
		act:           ActForward,
		allowLLM:      allowLLM,
		allowRender:   allowRender,
		shouldDisplay: true,
		shouldPersist: true,
		text:          in.Text,
	}
	if allowRender {
		d.act = ActRender
		d.reasons = append(reasons, ReasonRender)
	} else {
		d.reasons = append(reasons, ReasonForward)
	}
	return d
}

// #endregion decide

// #region once

// Once guards the one-decision-per-turn rule.
type Once struct {
	mu       sync.Mutex
	done     bool
	decision Decision
}

// Decide runs the policy the first time and returns ErrAlreadyDecided with
// the original decision on every later call.
func (o *Once) Decide(in Input) (Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return o.decision, ErrAlreadyDecided
	}
	o.decision = Decide(in)
	o.done = true
	return o.decision, nil
}

// #endregion once
