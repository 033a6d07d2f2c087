package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

type ScanStore struct {
	db *sql.DB
}

func NewScanStore(db *sql.DB) *ScanStore {
	return &ScanStore{db: db}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.ScanEntry, error) {
	var e model.ScanEntry
	err := scanner.Scan(&e.ID, &e.Points, &e.Description, &e.ScannedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Append stores e for userID. Re-sending an entry with the same id is a
// no-op, so clients may retry freely.
func (s *ScanStore) Append(userID string, e model.ScanEntry) (*model.ScanEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ScannedAt.IsZero() {
		e.ScannedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO scan_history (id, user_id, points, description, scanned_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, userID, e.Points, e.Description, e.ScannedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	return &e, nil
}

// List returns the user's scans, oldest first.
func (s *ScanStore) List(userID string) ([]model.ScanEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, points, description, scanned_at FROM scan_history WHERE user_id = ? ORDER BY scanned_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var entries []model.ScanEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
