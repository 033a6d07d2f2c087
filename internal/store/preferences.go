package store

import (
	"database/sql"
	"fmt"

	"github.com/petra184/mobile-app-sub002/internal/model"
)

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Get returns the user's preferences. Users who never saved any get
// notifications on and no favorite teams.
func (s *PreferenceStore) Get(userID string) (model.Preferences, error) {
	prefs := model.Preferences{FavoriteTeams: []string{}, NotificationsEnabled: true}

	var enabled int
	err := s.db.QueryRow(
		`SELECT notifications_enabled FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&enabled)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return prefs, fmt.Errorf("get preferences: %w", err)
	default:
		prefs.NotificationsEnabled = enabled != 0
	}

	rows, err := s.db.Query(
		`SELECT team_id FROM favorite_teams WHERE user_id = ? ORDER BY team_id ASC`, userID,
	)
	if err != nil {
		return prefs, fmt.Errorf("list favorite teams: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var team string
		if err := rows.Scan(&team); err != nil {
			return prefs, fmt.Errorf("scan favorite team: %w", err)
		}
		prefs.FavoriteTeams = append(prefs.FavoriteTeams, team)
	}
	return prefs, rows.Err()
}

// Put replaces the user's preferences, favorite set included.
func (s *PreferenceStore) Put(userID string, prefs model.Preferences) error {
	var enabled int
	if prefs.NotificationsEnabled {
		enabled = 1
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO user_preferences (user_id, notifications_enabled, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   notifications_enabled = excluded.notifications_enabled,
		   updated_at = excluded.updated_at`,
		userID, enabled,
	); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM favorite_teams WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear favorite teams: %w", err)
	}
	for _, team := range prefs.FavoriteTeams {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO favorite_teams (user_id, team_id) VALUES (?, ?)`, userID, team,
		); err != nil {
			return fmt.Errorf("insert favorite team: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
