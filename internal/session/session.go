// Package session owns the signed-in identity on the device.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/petra184/mobile-app-sub002/internal/kv"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

// StorageKey is where the current session is persisted on the device.
const StorageKey = "session"

var (
	ErrNoSession    = errors.New("session: not logged in")
	ErrInvalidToken = errors.New("session: invalid access token")
)

// Claims are the access-token claims the client reads. The token is verified
// by the data service; the device only decodes it.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type persisted struct {
	Session     model.Session `json:"session"`
	AccessToken string        `json:"access_token"`
}

// Listener is told about every identity change. A nil session means logout.
type Listener func(s *model.Session)

// Manager holds the current session and fans identity changes out to
// dependents so they reset at the same instant.
type Manager struct {
	mu        sync.RWMutex
	storage   kv.Storage
	logger    *slog.Logger
	current   *model.Session
	token     string
	listeners []Listener
	now       func() time.Time
}

func NewManager(storage kv.Storage, logger *slog.Logger) *Manager {
	return &Manager{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// OnChange registers fn. Listeners run synchronously, in registration order,
// after the new identity is visible through Current.
func (m *Manager) OnChange(fn Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// UserID returns the active user's id, or "".
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.UserID
}

// Token returns the active access token, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// ParseToken decodes the identity carried by an access token without
// verifying its signature. Expired tokens are rejected.
func ParseToken(accessToken string, now time.Time) (model.Session, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return model.Session{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	return model.Session{UserID: claims.Subject, Email: claims.Email}, nil
}

// Login adopts the identity in accessToken and persists it.
func (m *Manager) Login(ctx context.Context, accessToken string) (*model.Session, error) {
	s, err := ParseToken(accessToken, m.now())
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(persisted{Session: s, AccessToken: accessToken})
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := m.storage.Set(ctx, StorageKey, string(data)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.adopt(&s, accessToken)
	m.logger.Info("logged in", "user_id", s.UserID)
	return m.Current(), nil
}

// Restore reloads a persisted session at process start. Unreadable or
// expired state is discarded and the device stays logged out.
func (m *Manager) Restore(ctx context.Context) (*model.Session, error) {
	raw, ok, err := m.storage.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, kv.ErrSealed) {
			m.logger.Warn("discarding unreadable session", "error", err)
			m.discard(ctx)
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		m.logger.Warn("discarding malformed session", "error", err)
		m.discard(ctx)
		return nil, nil
	}

	s, err := ParseToken(p.AccessToken, m.now())
	if err != nil || s.UserID != p.Session.UserID {
		m.logger.Info("persisted session no longer valid", "error", err)
		m.discard(ctx)
		return nil, nil
	}

	m.adopt(&s, p.AccessToken)
	return m.Current(), nil
}

// Logout clears the session. Dependents are notified even if the storage
// removal fails, so in-memory state never outlives the identity.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.RLock()
	active := m.current != nil
	m.mu.RUnlock()
	if !active {
		return ErrNoSession
	}

	err := m.storage.Remove(ctx, StorageKey)
	m.adopt(nil, "")
	m.logger.Info("logged out")
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (m *Manager) discard(ctx context.Context) {
	if err := m.storage.Remove(ctx, StorageKey); err != nil {
		m.logger.Error("remove session", "error", err)
	}
}

func (m *Manager) adopt(s *model.Session, token string) {
	m.mu.Lock()
	prev := ""
	if m.current != nil {
		prev = m.current.UserID
	}
	m.current = s
	m.token = token
	next := ""
	if s != nil {
		next = s.UserID
	}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if prev == next {
		return
	}
	for _, fn := range listeners {
		if s == nil {
			fn(nil)
			continue
		}
		cp := *s
		fn(&cp)
	}
}
