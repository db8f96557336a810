package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	VersionID      string
	ConversationID string
	TurnID         string
	Act            string // "SILENCE" | "FORWARD" | "RENDER" | "BLOCK" | "ERROR"
	Reasons        []string
	RecordJSON     string
	ErrorDetail    string
	CreatedAt      time.Time
}

// #endregion provenance-entry

// #region turn-record
// TurnRecord captures the policy inputs and outputs of a single turn.
// Serialized as JSON into provenance_log.record_json for replay. Text is
// only present for acts that display generated content.
type TurnRecord struct {
	TurnID     string `json:"turn_id"`
	Coordinate string `json:"coordinate"`
	TextLen    int    `json:"text_len"`
	ReplyText  string `json:"reply_text,omitempty"`

	// Anchor gate output
	AnchorEvent  string `json:"anchor_event"`
	AnchorReason string `json:"anchor_reason"`
	TEntryOK     bool   `json:"t_entry_ok"`

	// Routing and pressure
	Lane        string   `json:"lane"`
	Strategy    string   `json:"strategy"`
	Placeholder []string `json:"placeholder,omitempty"`
	Strength    int      `json:"strength"`
	CommitHint  bool     `json:"commit_hint"`

	// Stall and upstream signals
	StallSeverity string `json:"stall_severity"`
	StallReason   string `json:"stall_reason"`
	RepeatSignal  string `json:"repeat_signal,omitempty"`
	FlowDelta     int    `json:"flow_delta"`
	ConvReason    string `json:"conv_reason,omitempty"`

	// Recall
	RecallVia string `json:"recall_via,omitempty"`

	// Final decision
	Act           string `json:"act"`
	ShouldDisplay bool   `json:"should_display"`
	ShouldPersist bool   `json:"should_persist"`
}

// Redact drops text for acts that must never store it.
func (r TurnRecord) Redact() TurnRecord {
	if r.Act != "RENDER" && r.Act != "FORWARD" {
		r.ReplyText = ""
	}
	return r
}

// #endregion turn-record
