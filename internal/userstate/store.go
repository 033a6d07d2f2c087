// Package userstate holds the signed-in user's points balance, preferences
// and scan history, and applies every mutation optimistically.
//
// Each mutator changes local state first, then calls the data service, then
// reconciles. The compensation differs per field:
//
//   - points (add and redeem): the exact inverse delta is applied to the
//     current balance, whatever it has become in the meantime
//   - notifications toggle: the flag is set to the negation of the requested value
//   - favorite-team toggle: nothing is inverted; preferences are re-fetched
//
// Scan history added by AddPoints is never rolled back.
package userstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petra184/mobile-app-sub002/internal/dataservice"
	"github.com/petra184/mobile-app-sub002/internal/lifecycle"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

// Snapshot is a point-in-time copy of the store's state.
type Snapshot struct {
	UserID      string            `json:"user_id"`
	Balance     int               `json:"balance"`
	Preferences model.Preferences `json:"preferences"`
	History     []model.ScanEntry `json:"history"`
}

// Store is owned by whoever constructs it; there is no package-level instance.
type Store struct {
	mu        sync.RWMutex
	svc       dataservice.Service
	logger    *slog.Logger
	guard     lifecycle.Guard
	userID    string
	balance   int
	prefs     model.Preferences
	history   []model.ScanEntry
	listeners []func(Snapshot)

	newID func() string
	now   func() time.Time
}

func New(svc dataservice.Service, logger *slog.Logger) *Store {
	return &Store{
		svc:    svc,
		logger: logger,
		prefs:  model.Preferences{FavoriteTeams: []string{}},
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// OnChange registers fn to receive a snapshot after every state change.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Store) Balance() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

func (s *Store) Preferences() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.Clone()
}

func (s *Store) History() []model.ScanEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ScanEntry(nil), s.history...)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		UserID:      s.userID,
		Balance:     s.balance,
		Preferences: s.prefs.Clone(),
		History:     append([]model.ScanEntry(nil), s.history...),
	}
}

// unlockAndNotify releases the write lock and then fans out a snapshot.
func (s *Store) unlockAndNotify() {
	snap := s.snapshotLocked()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Reset forgets the current user. Results of calls still in flight for that
// user are ignored when they land.
func (s *Store) Reset() {
	s.guard.Invalidate()
	s.mu.Lock()
	s.userID = ""
	s.balance = 0
	s.prefs = model.Preferences{FavoriteTeams: []string{}}
	s.history = nil
	s.unlockAndNotify()
}

// InitializeUser binds the store to userID and pulls authoritative state.
func (s *Store) InitializeUser(ctx context.Context, userID string) error {
	s.guard.Invalidate()
	s.mu.Lock()
	s.userID = userID
	s.balance = 0
	s.prefs = model.Preferences{FavoriteTeams: []string{}}
	s.history = nil
	s.unlockAndNotify()

	return s.RefreshUserData(ctx)
}

// RefreshUserData overwrites local state with whatever the data service
// returns. Each part is applied as soon as it arrives; failures are joined.
func (s *Store) RefreshUserData(ctx context.Context) error {
	tok := s.guard.Token()
	userID := s.UserID()
	if userID == "" {
		return fmt.Errorf("refresh user data: no user")
	}

	var errs []error

	if profile, err := s.svc.FetchProfile(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("fetch profile: %w", err))
	} else {
		s.apply(tok, func() { s.balance = max(profile.Points, 0) })
	}

	if prefs, err := s.svc.FetchPreferences(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("fetch preferences: %w", err))
	} else {
		s.apply(tok, func() {
			s.prefs = prefs.Clone()
			if s.prefs.FavoriteTeams == nil {
				s.prefs.FavoriteTeams = []string{}
			}
		})
	}

	if history, err := s.svc.FetchScanHistory(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("fetch scan history: %w", err))
	} else {
		s.apply(tok, func() { s.history = history })
	}

	return errors.Join(errs...)
}

// apply runs fn under the write lock unless tok has been retired.
func (s *Store) apply(tok lifecycle.Token, fn func()) bool {
	s.mu.Lock()
	if !s.guard.Valid(tok) {
		s.mu.Unlock()
		return false
	}
	fn()
	s.unlockAndNotify()
	return true
}

// applyForUser is apply for optimistic writes: it returns "" without running
// fn or notifying when tok is retired or nobody is signed in.
func (s *Store) applyForUser(tok lifecycle.Token, fn func()) string {
	s.mu.Lock()
	if !s.guard.Valid(tok) || s.userID == "" {
		s.mu.Unlock()
		return ""
	}
	userID := s.userID
	fn()
	s.unlockAndNotify()
	return userID
}

// AddPoints credits delta immediately and records a scan entry. If the data
// service rejects the credit, exactly delta is taken back off the balance;
// the scan entry stays.
func (s *Store) AddPoints(ctx context.Context, delta int, description string) bool {
	if delta <= 0 {
		s.logger.Warn("add points: non-positive delta", "delta", delta)
		return false
	}

	tok := s.guard.Token()
	entry := model.ScanEntry{
		ID:          s.newID(),
		Points:      delta,
		Description: description,
		ScannedAt:   s.now().UTC(),
	}

	userID := s.applyForUser(tok, func() {
		s.balance += delta
		s.history = append(s.history, entry)
	})
	if userID == "" {
		s.logger.Warn("add points: no active user")
		return false
	}

	if err := s.svc.ApplyPointsDelta(ctx, userID, delta, model.PointsAdd); err != nil {
		s.logger.Error("add points failed, reverting", "user_id", userID, "delta", delta, "error", err)
		s.apply(tok, func() { s.subtractClamped(delta) })
		return false
	}

	if err := s.svc.AppendScan(ctx, userID, entry); err != nil {
		s.logger.Warn("append scan failed", "user_id", userID, "scan_id", entry.ID, "error", err)
	}
	return true
}

// RedeemPoints spends delta. It refuses without any remote call when delta
// exceeds the balance, and returns true only once the data service agrees.
func (s *Store) RedeemPoints(ctx context.Context, delta int) bool {
	if delta <= 0 {
		s.logger.Warn("redeem points: non-positive delta", "delta", delta)
		return false
	}

	tok := s.guard.Token()
	var userID string
	s.mu.Lock()
	if !s.guard.Valid(tok) || s.userID == "" || delta > s.balance {
		s.mu.Unlock()
		return false
	}
	userID = s.userID
	s.balance -= delta
	s.unlockAndNotify()

	if err := s.svc.ApplyPointsDelta(ctx, userID, delta, model.PointsSubtract); err != nil {
		s.logger.Error("redeem points failed, reverting", "user_id", userID, "delta", delta, "error", err)
		s.apply(tok, func() { s.balance += delta })
		return false
	}
	return true
}

// subtractClamped keeps the balance non-negative when a compensation lands
// after other spends have already drawn it down. Caller holds the lock.
func (s *Store) subtractClamped(delta int) {
	if delta > s.balance {
		s.logger.Warn("compensation would make balance negative, clamping", "balance", s.balance, "delta", delta)
		s.balance = 0
		return
	}
	s.balance -= delta
}

// ToggleFavoriteTeam flips teamID in the favorite set. On failure the local
// guess is discarded by re-fetching, not by flipping it back.
func (s *Store) ToggleFavoriteTeam(ctx context.Context, teamID string) bool {
	tok := s.guard.Token()
	var next model.Preferences
	userID := s.applyForUser(tok, func() {
		next = s.prefs.WithTeamToggled(teamID)
		s.prefs = next.Clone()
	})
	if userID == "" {
		s.logger.Warn("toggle favorite team: no active user")
		return false
	}

	if err := s.svc.PersistPreferences(ctx, userID, next); err != nil {
		s.logger.Error("toggle favorite team failed, refreshing", "user_id", userID, "team_id", teamID, "error", err)
		if s.guard.Valid(tok) {
			if rerr := s.RefreshUserData(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.Error("refresh after failed team toggle", "user_id", userID, "error", rerr)
			}
		}
		return false
	}
	return true
}

// SetNotificationsEnabled stores the flag; on failure it is set to !enabled.
func (s *Store) SetNotificationsEnabled(ctx context.Context, enabled bool) bool {
	tok := s.guard.Token()
	var next model.Preferences
	userID := s.applyForUser(tok, func() {
		s.prefs.NotificationsEnabled = enabled
		next = s.prefs.Clone()
	})
	if userID == "" {
		s.logger.Warn("set notifications: no active user")
		return false
	}

	if err := s.svc.PersistPreferences(ctx, userID, next); err != nil {
		s.logger.Error("set notifications failed, reverting", "user_id", userID, "enabled", enabled, "error", err)
		s.apply(tok, func() { s.prefs.NotificationsEnabled = !enabled })
		return false
	}
	return true
}
