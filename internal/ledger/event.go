// Package ledger holds the append-only continuity log and its NDJSON wire
// format.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// #region kind

// Kind is the event type tag.
type Kind string

const (
	KindMeta  Kind = "META"
	KindObs   Kind = "OBS"
	KindShift Kind = "SHIFT"
	KindNext  Kind = "NEXT"
	KindHold  Kind = "HOLD"
	KindNote  Kind = "NOTE"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMeta, KindObs, KindShift, KindNext, KindHold, KindNote:
		return true
	}
	return false
}

// #endregion kind

// #region event

// Event is one ledger record. K is nil when the event has no key.
type Event struct {
	T  Kind      `json:"t"`
	K  *string   `json:"k"`
	V  any       `json:"v"`
	At time.Time `json:"at"`
}

// New builds an event with key k ("" means no key).
func New(t Kind, k string, v any, at time.Time) Event {
	e := Event{T: t, V: v, At: at.UTC()}
	if k != "" {
		e.K = &k
	}
	return e
}

// Key returns the key or "".
func (e Event) Key() string {
	if e.K == nil {
		return ""
	}
	return *e.K
}

// UnmarshalJSON coerces unknown kinds to NOTE.
func (e *Event) UnmarshalJSON(b []byte) error {
	type wire Event
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decode ledger event: %w", err)
	}
	if !w.T.Valid() {
		w.T = KindNote
	}
	*e = Event(w)
	return nil
}

// MarshalJSON writes unknown kinds as NOTE so the wire never carries them.
func (e Event) MarshalJSON() ([]byte, error) {
	type wire Event
	w := wire(e)
	if !w.T.Valid() {
		w.T = KindNote
	}
	return json.Marshal(w)
}

// #endregion event
