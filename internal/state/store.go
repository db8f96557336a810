package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/ledger"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS state_versions (
	version_id      TEXT PRIMARY KEY,
	parent_id       TEXT,
	conversation_id TEXT NOT NULL,
	snapshot_json   TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES state_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_state_versions_conv ON state_versions(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS active_state (
	conversation_id TEXT PRIMARY KEY,
	version_id      TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES state_versions(version_id)
);

CREATE TABLE IF NOT EXISTS ledger_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	event_json      TEXT NOT NULL,
	at              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_events_conv ON ledger_events(conversation_id, id);

CREATE TABLE IF NOT EXISTS provenance_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id      TEXT,
	conversation_id TEXT NOT NULL,
	turn_id         TEXT NOT NULL,
	act             TEXT NOT NULL,
	reasons         TEXT,
	record_json     TEXT,
	error_detail    TEXT,
	created_at      TEXT NOT NULL
);
`

// #endregion schema

// timeLayout is fixed-width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store manages versioned conversation state and the ledger in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region get-state
// GetState reads the active version for a conversation.
func (s *Store) GetState(ctx context.Context, conversationID string) (Snapshot, error) {
	var versionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT version_id FROM active_state WHERE conversation_id = ?`, conversationID,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get active %s: %w", conversationID, err)
	}
	return s.GetVersion(ctx, versionID)
}

// #endregion get-state

// #region get-version
// GetVersion retrieves a specific state version by ID.
func (s *Store) GetVersion(ctx context.Context, id string) (Snapshot, error) {
	var snapJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot_json FROM state_versions WHERE version_id = ?`, id,
	).Scan(&snapJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("get version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get version %s: %w", id, err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(snapJSON), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	return snap, nil
}

// #endregion get-version

// #region upsert-state
// UpsertState applies p to the active version, inserts the result as a new
// version and moves the active pointer, atomically.
func (s *Store) UpsertState(ctx context.Context, conversationID string, p Patch) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prev := Snapshot{ConversationID: conversationID}
	var prevJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT v.snapshot_json FROM active_state a
		 JOIN state_versions v ON v.version_id = a.version_id
		 WHERE a.conversation_id = ?`, conversationID,
	).Scan(&prevJSON)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Snapshot{}, fmt.Errorf("read active: %w", err)
	default:
		if err := json.Unmarshal([]byte(prevJSON), &prev); err != nil {
			return Snapshot{}, fmt.Errorf("unmarshal active: %w", err)
		}
	}

	if p.At.IsZero() {
		p.At = time.Now().UTC()
	}
	next := prev.Apply(p)
	next.ConversationID = conversationID
	next.ParentID = prev.VersionID
	next.VersionID = uuid.New().String()

	data, err := json.Marshal(next)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	var parentPtr interface{}
	if next.ParentID != "" {
		parentPtr = next.ParentID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_versions (version_id, parent_id, conversation_id, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		next.VersionID, parentPtr, conversationID, string(data), next.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_state (conversation_id, version_id) VALUES (?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET version_id = excluded.version_id`,
		conversationID, next.VersionID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// #endregion upsert-state

// #region rollback
// Rollback sets a conversation's active pointer to one of its earlier versions.
// A fixed anchor is terminal: a target that does not carry the same fixed
// anchor is rejected with ErrAnchorFixed.
func (s *Store) Rollback(ctx context.Context, conversationID, targetVersionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var targetJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT snapshot_json FROM state_versions WHERE version_id = ? AND conversation_id = ?`,
		targetVersionID, conversationID,
	).Scan(&targetJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version %s: %w", targetVersionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}

	var activeJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT v.snapshot_json FROM active_state a
		 JOIN state_versions v ON v.version_id = a.version_id
		 WHERE a.conversation_id = ?`, conversationID,
	).Scan(&activeJSON)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read active: %w", err)
	}
	if err == nil {
		var active, target Snapshot
		if err := json.Unmarshal([]byte(activeJSON), &active); err != nil {
			return fmt.Errorf("unmarshal active: %w", err)
		}
		if err := json.Unmarshal([]byte(targetJSON), &target); err != nil {
			return fmt.Errorf("unmarshal target: %w", err)
		}
		if releasesAnchor(active, target) {
			return fmt.Errorf("version %s: %w", targetVersionID, ErrAnchorFixed)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_state (conversation_id, version_id) VALUES (?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET version_id = excluded.version_id`,
		conversationID, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return tx.Commit()
}

func releasesAnchor(active, target Snapshot) bool {
	if !active.Anchor.Fixed {
		return false
	}
	return !target.Anchor.Fixed || target.Anchor.FixedKey != active.Anchor.FixedKey
}

// #endregion rollback

// #region list-versions
// ListVersions returns a conversation's versions newest first, each joined
// with the provenance row that produced it, if any.
func (s *Store) ListVersions(ctx context.Context, conversationID string, limit int) ([]VersionWithProvenance, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.snapshot_json, COALESCE(p.act, ''), COALESCE(p.reasons, ''), COALESCE(p.turn_id, '')
		 FROM state_versions v
		 LEFT JOIN provenance_log p ON p.version_id = v.version_id
		 WHERE v.conversation_id = ?
		 ORDER BY v.created_at DESC, v.rowid DESC
		 LIMIT ?`, conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionWithProvenance
	for rows.Next() {
		var v VersionWithProvenance
		var snapJSON string
		if err := rows.Scan(&snapJSON, &v.Act, &v.Reasons, &v.TurnID); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		if err := json.Unmarshal([]byte(snapJSON), &v.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region ledger
// AppendEvent appends one ledger event for a conversation.
func (s *Store) AppendEvent(ctx context.Context, conversationID string, e ledger.Event) error {
	data, err := ledger.EncodeLine(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_events (conversation_id, event_json, at) VALUES (?, ?, ?)`,
		conversationID, string(data), e.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events returns up to limit of the newest events in append order. limit <= 0
// returns all events.
func (s *Store) Events(ctx context.Context, conversationID string, limit int) ([]ledger.Event, error) {
	q := `SELECT event_json FROM ledger_events WHERE conversation_id = ? ORDER BY id DESC`
	args := []interface{}{conversationID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []ledger.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e ledger.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// #endregion ledger
