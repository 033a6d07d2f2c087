package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	err := scanner.Scan(&p.UserID, &p.Email, &p.DisplayName, &p.CreatedAt, &p.Points)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// profileSelect joins the running balance onto each user row.
const profileSelect = `SELECT u.id, u.email, u.display_name, u.created_at,
	COALESCE((SELECT SUM(delta) FROM point_transactions WHERE user_id = u.id), 0)
	FROM users u`

func (s *UserStore) Create(email, displayName string) (*model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, display_name) VALUES (?, ?, ?)`,
		id, email, displayName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.Profile, error) {
	row := s.db.QueryRow(profileSelect+` WHERE u.id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return p, nil
}

func (s *UserStore) GetByEmail(email string) (*model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRow(profileSelect+` WHERE u.email = ?`, email)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return p, nil
}

// GetOrCreate returns the user registered under email, creating it with a
// display name taken from the address when missing.
func (s *UserStore) GetOrCreate(email string) (*model.Profile, error) {
	p, err := s.GetByEmail(email)
	if err != nil || p != nil {
		return p, err
	}
	name := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		name = email[:i]
	}
	return s.Create(email, name)
}

func (s *UserStore) List() ([]model.Profile, error) {
	rows, err := s.db.Query(profileSelect + ` ORDER BY u.email ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *p)
	}
	return users, rows.Err()
}

func (s *UserStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
