package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const provenanceTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (version_id, conversation_id, turn_id, act, reasons, record_json, error_detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.ConversationID,
		entry.TurnID,
		entry.Act,
		nullIfEmpty(strings.Join(entry.Reasons, ",")),
		nullIfEmpty(entry.RecordJSON),
		nullIfEmpty(entry.ErrorDetail),
		entry.CreatedAt.UTC().Format(provenanceTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region entry-from-record
// EntryFromRecord builds a provenance entry with the record redacted and
// serialized.
func EntryFromRecord(conversationID, versionID string, rec TurnRecord, reasons []string, errDetail string, at time.Time) (ProvenanceEntry, error) {
	data, err := json.Marshal(rec.Redact())
	if err != nil {
		return ProvenanceEntry{}, fmt.Errorf("marshal turn record: %w", err)
	}
	return ProvenanceEntry{
		VersionID:      versionID,
		ConversationID: conversationID,
		TurnID:         rec.TurnID,
		Act:            rec.Act,
		Reasons:        reasons,
		RecordJSON:     string(data),
		ErrorDetail:    errDetail,
		CreatedAt:      at,
	}, nil
}

// #endregion entry-from-record

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
