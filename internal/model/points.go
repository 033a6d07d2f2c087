package model

import "time"

type PointsDirection string

const (
	PointsAdd      PointsDirection = "add"
	PointsSubtract PointsDirection = "subtract"
)

type Profile struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScanEntry is one line of the append-only scan history.
type ScanEntry struct {
	ID          string    `json:"id"`
	Points      int       `json:"points"`
	Description string    `json:"description"`
	ScannedAt   time.Time `json:"scanned_at"`
}
