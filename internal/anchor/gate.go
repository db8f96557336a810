package anchor

import (
	"fmt"
	"strings"
	"time"
)

// #region evaluate

// Evaluate runs the anchor decision table for one turn. It only grants or
// denies permission to enter the T band and describes an evidence patch; it
// never fixes the anchor and never touches the depth stage.
//
// Rows, in order:
//  1. fixed state            -> deny, ALREADY_COMMITTED
//  2. no choice, no action   -> deny, NO_EVIDENCE
//  3. action present         -> allow, ACTION (commit write)
//  4. choice == last choice  -> allow, RECONFIRM
//  5. new choice             -> allow, CHOICE
func Evaluate(ev Evidence, now time.Time, st State) Decision {
	source := ev.Source()

	if st.Fixed {
		return Decision{
			TEntryOK: false,
			Event:    EventNone,
			Write:    WriteKeep,
			Reason:   ReasonAlreadyCommitted,
			Source:   source,
		}
	}

	if source == SourceNone {
		return Decision{
			TEntryOK: false,
			Event:    EventNone,
			Write:    WriteKeep,
			Reason:   ReasonNoEvidence,
			Source:   source,
		}
	}

	if ev.ActionID != "" {
		return Decision{
			TEntryOK: true,
			Event:    EventAction,
			Write:    WriteCommit,
			Reason:   ReasonAction,
			Source:   source,
			Patch: &Patch{
				LastTouchedAt: now,
				LastTouchType: string(EventAction),
				LastActionID:  ev.ActionID,
				LastChoiceID:  ev.ChoiceID,
			},
		}
	}

	if ev.ChoiceID == st.LastChoiceID {
		return Decision{
			TEntryOK: true,
			Event:    EventReconfirm,
			Write:    WriteKeep,
			Reason:   ReasonReconfirm,
			Source:   source,
			Patch: &Patch{
				LastTouchedAt: now,
				LastTouchType: string(EventReconfirm),
			},
		}
	}

	return Decision{
		TEntryOK: true,
		Event:    EventChoice,
		Write:    WriteKeep,
		Reason:   ReasonChoice,
		Source:   source,
		Patch: &Patch{
			LastTouchedAt: now,
			LastTouchType: string(EventChoice),
			LastChoiceID:  ev.ChoiceID,
		},
	}
}

// Next applies the decision patch to st. Without a patch st is returned as is.
func (d Decision) Next(st State) State {
	if d.Patch == nil {
		return st
	}
	return d.Patch.Apply(st)
}

// #endregion evaluate

// #region commit

// Commit fixes the anchor under key. This is the explicit confirmation path
// and the only way Fixed becomes true; nothing in the per-turn pipeline
// calls it.
func Commit(st State, key string, now time.Time) (State, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return st, ErrEmptyKey
	}
	if st.Fixed {
		return st, fmt.Errorf("commit %q: %w (fixed key %q)", key, ErrAlreadyCommitted, st.FixedKey)
	}
	st.Fixed = true
	st.FixedKey = key
	st.LastTouchedAt = now
	st.LastTouchType = "commit"
	return st, nil
}

// #endregion commit
