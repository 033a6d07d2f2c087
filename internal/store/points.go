package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrInsufficientPoints is returned when a debit would take a balance below zero.
var ErrInsufficientPoints = errors.New("insufficient points")

// PointsStore keeps balances as the sum of a user's signed transactions.
type PointsStore struct {
	db *sql.DB
}

func NewPointsStore(db *sql.DB) *PointsStore {
	return &PointsStore{db: db}
}

func (s *PointsStore) Balance(userID string) (int, error) {
	var balance int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(delta), 0) FROM point_transactions WHERE user_id = ?`, userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Apply records a signed delta and returns the new balance. A negative
// delta larger than the balance fails with ErrInsufficientPoints and
// records nothing.
func (s *PointsStore) Apply(userID string, delta int) (int, error) {
	if delta == 0 {
		return s.Balance(userID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	if err := tx.QueryRow(
		`SELECT COALESCE(SUM(delta), 0) FROM point_transactions WHERE user_id = ?`, userID,
	).Scan(&balance); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if balance+delta < 0 {
		return balance, ErrInsufficientPoints
	}

	if _, err := tx.Exec(
		`INSERT INTO point_transactions (user_id, delta) VALUES (?, ?)`, userID, delta,
	); err != nil {
		return 0, fmt.Errorf("insert point transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return balance + delta, nil
}
