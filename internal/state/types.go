package state

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/anchor"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/ledger"
)

// #region errors

// ErrNotFound is returned by GetState for a conversation with no state yet.
var ErrNotFound = errors.New("conversation state not found")

// ErrAnchorFixed is returned by Rollback when the target version would
// release a fixed anchor.
var ErrAnchorFixed = errors.New("rollback would release a fixed anchor")

// #endregion errors

// #region snapshot

// FlowTapeCap bounds the recent depth-stage tape.
const FlowTapeCap = 20

// Snapshot is the persisted per-conversation state.
type Snapshot struct {
	VersionID      string                `json:"versionId"`
	ParentID       string                `json:"parentId,omitempty"`
	ConversationID string                `json:"conversationId"`
	Coordinate     coordinate.Coordinate `json:"coordinate"`
	Anchor         anchor.State          `json:"anchor"`
	FlowTape       []string              `json:"flowTape,omitempty"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Patch is a partial state update. Nil fields are left unchanged.
type Patch struct {
	Coordinate *coordinate.Coordinate `json:"coordinate,omitempty"`
	Anchor     *anchor.State          `json:"anchor,omitempty"`
	FlowAppend []string               `json:"flowAppend,omitempty"`
	At         time.Time              `json:"at"`
}

// Apply returns s with p merged in. The flow tape keeps the newest
// FlowTapeCap entries. VersionID and ParentID are left for the store.
func (s Snapshot) Apply(p Patch) Snapshot {
	if p.Coordinate != nil {
		s.Coordinate = *p.Coordinate
	}
	if p.Anchor != nil {
		s.Anchor = *p.Anchor
	}
	if len(p.FlowAppend) > 0 {
		tape := append(append([]string(nil), s.FlowTape...), p.FlowAppend...)
		if len(tape) > FlowTapeCap {
			tape = tape[len(tape)-FlowTapeCap:]
		}
		s.FlowTape = tape
	}
	if !p.At.IsZero() {
		s.UpdatedAt = p.At.UTC()
	}
	return s
}

// #endregion snapshot

// #region persistence

// Persistence is the durable collaborator the engine reads once and writes
// once per turn.
type Persistence interface {
	GetState(ctx context.Context, conversationID string) (Snapshot, error)
	AppendEvent(ctx context.Context, conversationID string, e ledger.Event) error
	UpsertState(ctx context.Context, conversationID string, p Patch) (Snapshot, error)
	Events(ctx context.Context, conversationID string, limit int) ([]ledger.Event, error)
}

// #endregion persistence

// #region version-with-provenance
// VersionWithProvenance pairs a state version with its provenance row fields.
type VersionWithProvenance struct {
	Snapshot
	Act     string
	Reasons string
	TurnID  string
}

// #endregion version-with-provenance
