package anchor

import (
	"errors"
	"time"
)

// #region errors

// ErrAlreadyCommitted is returned by Commit when the anchor is already fixed.
var ErrAlreadyCommitted = errors.New("anchor already committed")

// ErrEmptyKey is returned by Commit when no fixed key is given.
var ErrEmptyKey = errors.New("anchor key is empty")

// #endregion errors

// #region evidence

// Source classifies which evidence was supplied for a turn.
type Source string

const (
	SourceNone   Source = "none"
	SourceChoice Source = "choice"
	SourceAction Source = "action"
	SourceBoth   Source = "both"
)

// Evidence is the per-turn proof of engagement: a chosen option and/or a
// performed action.
type Evidence struct {
	ChoiceID string `json:"choiceId,omitempty"`
	ActionID string `json:"actionId,omitempty"`
}

// Source reports the evidence kind.
func (e Evidence) Source() Source {
	switch {
	case e.ChoiceID != "" && e.ActionID != "":
		return SourceBoth
	case e.ActionID != "":
		return SourceAction
	case e.ChoiceID != "":
		return SourceChoice
	default:
		return SourceNone
	}
}

// #endregion evidence

// #region state

// State is the persisted per-conversation anchor. Once Fixed is true the
// state is terminal.
type State struct {
	FixedKey      string    `json:"fixedKey,omitempty"`
	Fixed         bool      `json:"fixed"`
	LastTouchedAt time.Time `json:"lastTouchedAt,omitempty"`
	LastTouchType string    `json:"lastTouchType,omitempty"`
	LastChoiceID  string    `json:"lastChoiceId,omitempty"`
	LastActionID  string    `json:"lastActionId,omitempty"`
}

// HasCore reports whether the conversation has any recorded commitment
// material: a fixed key or a previously chosen option.
func (s State) HasCore() bool {
	return s.FixedKey != "" || s.LastChoiceID != ""
}

// #endregion state

// #region decision

// Event is the anchor event emitted for a turn.
type Event string

const (
	EventNone      Event = "none"
	EventAction    Event = "action"
	EventReconfirm Event = "reconfirm"
	EventChoice    Event = "choice"
)

// Write labels how the patch should be written back.
type Write string

const (
	WriteKeep   Write = "keep"
	WriteCommit Write = "commit"
)

// Reason explains a gate decision.
type Reason string

const (
	ReasonAlreadyCommitted Reason = "ALREADY_COMMITTED"
	ReasonNoEvidence       Reason = "NO_EVIDENCE"
	ReasonAction           Reason = "ACTION"
	ReasonReconfirm        Reason = "RECONFIRM"
	ReasonChoice           Reason = "CHOICE"
)

// Patch is the evidence-log update for State. Zero-valued fields are left
// untouched by Apply. Patch never carries Fixed.
type Patch struct {
	LastTouchedAt time.Time `json:"lastTouchedAt"`
	LastTouchType string    `json:"lastTouchType"`
	LastChoiceID  string    `json:"lastChoiceId,omitempty"`
	LastActionID  string    `json:"lastActionId,omitempty"`
}

// Apply merges p into s and returns the result. A fixed state is returned
// unchanged.
func (p Patch) Apply(s State) State {
	if s.Fixed {
		return s
	}
	if !p.LastTouchedAt.IsZero() {
		s.LastTouchedAt = p.LastTouchedAt
	}
	if p.LastTouchType != "" {
		s.LastTouchType = p.LastTouchType
	}
	if p.LastChoiceID != "" {
		s.LastChoiceID = p.LastChoiceID
	}
	if p.LastActionID != "" {
		s.LastActionID = p.LastActionID
	}
	return s
}

// Decision is the gate output for a turn.
type Decision struct {
	TEntryOK bool   `json:"tEntryOk"`
	Event    Event  `json:"anchorEvent"`
	Write    Write  `json:"anchorWrite"`
	Reason   Reason `json:"reason"`
	Source   Source `json:"source"`
	Patch    *Patch `json:"patch,omitempty"` // nil when nothing changes
}

// #endregion decision
