// Package history persists flattened snapshots of finalized sessions so the
// web UI can list and reopen past interactions. Write failures here never
// abort the interaction flow; they only affect history durability.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/session"
)

// Store provides SQLite-backed persistence for finalized interactions.
type Store struct {
	db            *sql.DB
	retentionDays int
	maxSessions   int
}

// Record is one persisted interaction.
type Record struct {
	SessionID      string
	Title          string
	Prompt         string
	SelectionMode  string
	Transport      string
	Options        []choice.Option
	Outcome        *choice.Outcome
	StartedAt      time.Time
	CompletedAt    *time.Time
	TimeoutSeconds int
	SurfaceURL     string
}

// NewStore opens the SQLite database at dbPath and creates tables if they
// don't exist. retentionDays and maxSessions bound the stored history.
func NewStore(dbPath string, retentionDays, maxSessions int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, retentionDays: retentionDays, maxSessions: maxSessions}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		prompt TEXT NOT NULL,
		selection_mode TEXT NOT NULL,
		transport TEXT NOT NULL,
		options_json TEXT NOT NULL,
		outcome_json TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		timeout_seconds INTEGER DEFAULT 0,
		surface_url TEXT
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Save persists a finalized session snapshot, replacing any previous row for
// the same session id, then enforces the retention limits.
func (s *Store) Save(snap session.Snapshot) error {
	optionsJSON, err := json.Marshal(snap.Request.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	var outcomeJSON any
	if snap.Outcome != nil {
		data, err := json.Marshal(snap.Outcome)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		outcomeJSON = string(data)
	}

	var completedAt any
	if snap.CompletedAt != nil {
		completedAt = *snap.CompletedAt
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO interactions
		 (id, title, prompt, selection_mode, transport, options_json, outcome_json,
		  started_at, completed_at, timeout_seconds, surface_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SessionID, snap.Request.Title, snap.Request.Prompt, snap.Request.SelectionMode,
		snap.Transport, string(optionsJSON), outcomeJSON,
		snap.StartedAt, completedAt, snap.TimeoutSeconds, snap.SurfaceURL,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}

	if _, err := s.Cleanup(); err != nil {
		return fmt.Errorf("cleanup after save: %w", err)
	}
	return nil
}

// GetByID retrieves a persisted interaction. Returns (nil, nil) when absent.
func (s *Store) GetByID(id string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT id, title, prompt, selection_mode, transport, options_json, outcome_json,
		        started_at, completed_at, timeout_seconds, COALESCE(surface_url, '')
		 FROM interactions WHERE id = ?`,
		id,
	)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan interaction: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit completed interactions, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, title, prompt, selection_mode, transport, options_json, outcome_json,
		        started_at, completed_at, timeout_seconds, COALESCE(surface_url, '')
		 FROM interactions
		 WHERE outcome_json IS NOT NULL
		 ORDER BY COALESCE(completed_at, started_at) DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// Remove deletes a persisted interaction. Returns true when a row was removed.
func (s *Store) Remove(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM interactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete interaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}

// Cleanup removes interactions older than the retention window, then trims
// the oldest rows beyond the maximum count. Returns how many were removed.
func (s *Store) Cleanup() (int, error) {
	removed := 0

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.Exec(
		`DELETE FROM interactions WHERE COALESCE(completed_at, started_at) < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		removed += int(n)
	}

	result, err = s.db.Exec(
		`DELETE FROM interactions WHERE id NOT IN (
			SELECT id FROM interactions
			ORDER BY COALESCE(completed_at, started_at) DESC
			LIMIT ?
		)`,
		s.maxSessions,
	)
	if err != nil {
		return removed, fmt.Errorf("trim to max sessions: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		removed += int(n)
	}

	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var optionsJSON string
	var outcomeJSON sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&rec.SessionID, &rec.Title, &rec.Prompt, &rec.SelectionMode, &rec.Transport,
		&optionsJSON, &outcomeJSON, &rec.StartedAt, &completedAt,
		&rec.TimeoutSeconds, &rec.SurfaceURL,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(optionsJSON), &rec.Options); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}
	if outcomeJSON.Valid {
		var out choice.Outcome
		if err := json.Unmarshal([]byte(outcomeJSON.String), &out); err != nil {
			return nil, fmt.Errorf("parse outcome: %w", err)
		}
		rec.Outcome = &out
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}

	return &rec, nil
}
