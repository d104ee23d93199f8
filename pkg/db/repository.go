package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Repository handles data access
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RunRecord represents a row in the runs table
type RunRecord struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Created      int
	Updated      int
	Moved        int
	StatusPushes int
	Errors       int
}

// RecordRun appends a finished run to the ledger
func (r *Repository) RecordRun(rec RunRecord) error {
	query := `INSERT INTO runs (started_at, finished_at, created, updated, moved, status_pushes, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query, rec.StartedAt, rec.FinishedAt,
		rec.Created, rec.Updated, rec.Moved, rec.StatusPushes, rec.Errors)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs first, at most limit rows
func (r *Repository) RecentRuns(limit int) ([]RunRecord, error) {
	query := `SELECT id, started_at, finished_at, created, updated, moved, status_pushes, errors
		FROM runs ORDER BY started_at DESC LIMIT ?`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt,
			&rec.Created, &rec.Updated, &rec.Moved, &rec.StatusPushes, &rec.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestRun returns the most recent run, or nil when the ledger is empty
func (r *Repository) LatestRun() (*RunRecord, error) {
	runs, err := r.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ArchivedCard represents a row in the archived_cards table
type ArchivedCard struct {
	ID         int64
	CardID     string
	Name       string
	SyncURL    string
	ArchivedAt time.Time
}

// RecordArchived remembers a card retired off the board. Re-archiving the
// same card is a no-op.
func (r *Repository) RecordArchived(cardID, name, syncURL string) error {
	query := `INSERT OR IGNORE INTO archived_cards (card_id, name, sync_url) VALUES (?, ?, ?)`
	_, err := r.db.Exec(query, cardID, name, syncURL)
	if err != nil {
		return fmt.Errorf("failed to record archived card: %w", err)
	}
	return nil
}

// GetArchivedByCardID returns the archive entry for a card, or nil
func (r *Repository) GetArchivedByCardID(cardID string) (*ArchivedCard, error) {
	query := `SELECT id, card_id, name, sync_url, archived_at FROM archived_cards WHERE card_id = ?`
	row := r.db.QueryRow(query, cardID)

	var rec ArchivedCard
	err := row.Scan(&rec.ID, &rec.CardID, &rec.Name, &rec.SyncURL, &rec.ArchivedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get archived card: %w", err)
	}
	return &rec, nil
}
