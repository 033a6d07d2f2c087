package userstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petra184/mobile-app-sub002/internal/logging"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

var errRemote = errors.New("remote unavailable")

// fakeService is an in-memory data service whose failures and latency are
// controlled by the test.
type fakeService struct {
	mu          sync.Mutex
	balance     int
	prefs       model.Preferences
	history     []model.ScanEntry
	failPoints  bool
	failPrefs   bool
	pointsCalls int
	prefsCalls  int
	fetchCalls  int
	gate        chan struct{} // when non-nil, ApplyPointsDelta waits on it
}

func (f *fakeService) FetchProfile(ctx context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return &model.Profile{UserID: userID, Points: f.balance}, nil
}

func (f *fakeService) ApplyPointsDelta(ctx context.Context, userID string, delta int, dir model.PointsDirection) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointsCalls++
	if f.failPoints {
		return errRemote
	}
	if dir == model.PointsAdd {
		f.balance += delta
	} else {
		f.balance -= delta
	}
	return nil
}

func (f *fakeService) FetchPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs.Clone(), nil
}

func (f *fakeService) PersistPreferences(ctx context.Context, userID string, prefs model.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefsCalls++
	if f.failPrefs {
		return errRemote
	}
	f.prefs = prefs.Clone()
	return nil
}

func (f *fakeService) FetchScanHistory(ctx context.Context, userID string) ([]model.ScanEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ScanEntry(nil), f.history...), nil
}

func (f *fakeService) AppendScan(ctx context.Context, userID string, scan model.ScanEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, scan)
	return nil
}

func setupStore(t *testing.T, svc *fakeService) *Store {
	t.Helper()
	s := New(svc, logging.Discard())
	if err := s.InitializeUser(context.Background(), "u-1"); err != nil {
		t.Fatalf("initialize user: %v", err)
	}
	return s
}

func TestInitializeUserLoadsAuthoritativeState(t *testing.T) {
	svc := &fakeService{
		balance: 80,
		prefs:   model.Preferences{FavoriteTeams: []string{"t-2"}, NotificationsEnabled: true},
		history: []model.ScanEntry{{ID: "s-1", Points: 80}},
	}
	s := setupStore(t, svc)

	if s.Balance() != 80 {
		t.Errorf("balance = %d, want 80", s.Balance())
	}
	if !s.Preferences().HasTeam("t-2") || !s.Preferences().NotificationsEnabled {
		t.Errorf("preferences = %+v", s.Preferences())
	}
	if len(s.History()) != 1 {
		t.Errorf("history len = %d, want 1", len(s.History()))
	}
}

func TestAddPointsSuccess(t *testing.T) {
	svc := &fakeService{balance: 10}
	s := setupStore(t, svc)

	if !s.AddPoints(context.Background(), 15, "gate scan") {
		t.Fatal("expected AddPoints to succeed")
	}
	if s.Balance() != 25 {
		t.Errorf("balance = %d, want 25", s.Balance())
	}
	h := s.History()
	if len(h) != 1 || h[0].Points != 15 || h[0].Description != "gate scan" {
		t.Errorf("history = %+v", h)
	}
	if len(svc.history) != 1 {
		t.Errorf("remote history len = %d, want 1", len(svc.history))
	}
}

func TestAddPointsFailureRestoresBalanceKeepsHistory(t *testing.T) {
	svc := &fakeService{balance: 40, failPoints: true}
	s := setupStore(t, svc)

	if s.AddPoints(context.Background(), 25, "bonus") {
		t.Fatal("expected AddPoints to report failure")
	}
	if s.Balance() != 40 {
		t.Errorf("balance = %d, want 40", s.Balance())
	}
	if len(s.History()) != 1 {
		t.Errorf("history len = %d, want 1 (history is not rolled back)", len(s.History()))
	}
}

func TestAddPointsRejectsNonPositive(t *testing.T) {
	svc := &fakeService{balance: 5}
	s := setupStore(t, svc)

	if s.AddPoints(context.Background(), 0, "nothing") {
		t.Error("expected zero delta to be rejected")
	}
	if svc.pointsCalls != 0 {
		t.Errorf("points calls = %d, want 0", svc.pointsCalls)
	}
}

func TestRedeemPointsOverBalanceMakesNoCall(t *testing.T) {
	svc := &fakeService{balance: 100}
	s := setupStore(t, svc)

	if s.RedeemPoints(context.Background(), 150) {
		t.Fatal("expected redeem over balance to return false")
	}
	if s.Balance() != 100 {
		t.Errorf("balance = %d, want 100", s.Balance())
	}
	if svc.pointsCalls != 0 {
		t.Errorf("points calls = %d, want 0", svc.pointsCalls)
	}
}

func TestRedeemPointsSuccessAndFailure(t *testing.T) {
	svc := &fakeService{balance: 100}
	s := setupStore(t, svc)
	ctx := context.Background()

	if !s.RedeemPoints(ctx, 30) {
		t.Fatal("expected redeem to succeed")
	}
	if s.Balance() != 70 {
		t.Errorf("balance = %d, want 70", s.Balance())
	}

	svc.failPoints = true
	if s.RedeemPoints(ctx, 20) {
		t.Fatal("expected redeem to fail")
	}
	if s.Balance() != 70 {
		t.Errorf("balance after failed redeem = %d, want 70", s.Balance())
	}
}

func TestRedeemThenFailedAddScenario(t *testing.T) {
	svc := &fakeService{balance: 100}
	s := setupStore(t, svc)
	ctx := context.Background()

	if s.RedeemPoints(ctx, 150) {
		t.Fatal("redeem 150 of 100 should fail")
	}
	if s.Balance() != 100 {
		t.Fatalf("balance = %d, want 100", s.Balance())
	}

	svc.mu.Lock()
	svc.failPoints = true
	svc.gate = make(chan struct{})
	gate := svc.gate
	svc.mu.Unlock()

	done := make(chan bool)
	go func() { done <- s.AddPoints(ctx, 50, "bonus") }()

	waitFor(t, func() bool { return s.Balance() == 150 })

	close(gate)
	if <-done {
		t.Fatal("expected AddPoints to fail")
	}
	if s.Balance() != 100 {
		t.Errorf("balance after revert = %d, want 100", s.Balance())
	}
}

func TestConcurrentMutationsComposeAdditively(t *testing.T) {
	svc := &fakeService{balance: 100}
	s := setupStore(t, svc)
	ctx := context.Background()

	svc.mu.Lock()
	svc.gate = make(chan struct{})
	gate := svc.gate
	svc.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.AddPoints(ctx, 20, "scan") }()
	go func() { defer wg.Done(); s.RedeemPoints(ctx, 50) }()

	waitFor(t, func() bool { return s.Balance() == 70 })
	close(gate)
	wg.Wait()

	if s.Balance() != 70 {
		t.Errorf("balance = %d, want 70", s.Balance())
	}
}

func TestToggleFavoriteTeamTwiceRestoresSet(t *testing.T) {
	svc := &fakeService{prefs: model.Preferences{FavoriteTeams: []string{"t-1"}}}
	s := setupStore(t, svc)
	ctx := context.Background()

	if !s.ToggleFavoriteTeam(ctx, "t-9") {
		t.Fatal("first toggle failed")
	}
	if !s.Preferences().HasTeam("t-9") {
		t.Error("expected t-9 after first toggle")
	}
	if !s.ToggleFavoriteTeam(ctx, "t-9") {
		t.Fatal("second toggle failed")
	}
	got := s.Preferences().FavoriteTeams
	if len(got) != 1 || got[0] != "t-1" {
		t.Errorf("favorite teams = %v, want [t-1]", got)
	}
}

func TestToggleFavoriteTeamFailureRefetches(t *testing.T) {
	svc := &fakeService{prefs: model.Preferences{FavoriteTeams: []string{"t-1"}}, failPrefs: true}
	s := setupStore(t, svc)
	before := svc.fetchCalls

	if s.ToggleFavoriteTeam(context.Background(), "t-2") {
		t.Fatal("expected toggle to fail")
	}
	if svc.fetchCalls != before+1 {
		t.Errorf("fetch calls = %d, want %d (full refresh)", svc.fetchCalls, before+1)
	}
	got := s.Preferences().FavoriteTeams
	if len(got) != 1 || got[0] != "t-1" {
		t.Errorf("favorite teams = %v, want server truth [t-1]", got)
	}
}

func TestSetNotificationsEnabledFailureNegates(t *testing.T) {
	svc := &fakeService{prefs: model.Preferences{NotificationsEnabled: true}}
	s := setupStore(t, svc)
	ctx := context.Background()

	if !s.SetNotificationsEnabled(ctx, false) {
		t.Fatal("expected success")
	}
	if s.Preferences().NotificationsEnabled {
		t.Error("expected notifications disabled")
	}

	svc.failPrefs = true
	if s.SetNotificationsEnabled(ctx, false) {
		t.Fatal("expected failure")
	}
	// Direct revert: the flag becomes !enabled, even though it was already false.
	if !s.Preferences().NotificationsEnabled {
		t.Error("expected notifications enabled after failed disable")
	}
}

func TestResetDropsLateResults(t *testing.T) {
	svc := &fakeService{balance: 50, failPoints: true}
	s := setupStore(t, svc)
	ctx := context.Background()

	svc.mu.Lock()
	svc.gate = make(chan struct{})
	gate := svc.gate
	svc.mu.Unlock()

	done := make(chan bool)
	go func() { done <- s.RedeemPoints(ctx, 20) }()
	waitFor(t, func() bool { return s.Balance() == 30 })

	s.Reset()
	close(gate)
	<-done

	if s.Balance() != 0 {
		t.Errorf("balance = %d, want 0 (late compensation must be dropped)", s.Balance())
	}
	if s.UserID() != "" {
		t.Errorf("user id = %q, want empty", s.UserID())
	}
}

func TestMutationsWithoutUser(t *testing.T) {
	svc := &fakeService{}
	s := New(svc, logging.Discard())
	ctx := context.Background()

	notified := 0
	s.OnChange(func(Snapshot) { notified++ })

	if s.AddPoints(ctx, 5, "x") {
		t.Error("AddPoints without user should fail")
	}
	if s.ToggleFavoriteTeam(ctx, "t") {
		t.Error("ToggleFavoriteTeam without user should fail")
	}
	if s.SetNotificationsEnabled(ctx, false) {
		t.Error("SetNotificationsEnabled without user should fail")
	}
	if s.Balance() != 0 {
		t.Errorf("balance = %d, want 0", s.Balance())
	}
	if notified != 0 {
		t.Errorf("listeners notified %d times, want 0", notified)
	}
	if svc.pointsCalls != 0 || svc.prefsCalls != 0 {
		t.Errorf("remote calls = %d points, %d prefs, want none", svc.pointsCalls, svc.prefsCalls)
	}
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	svc := &fakeService{balance: 10}
	s := setupStore(t, svc)

	var last Snapshot
	s.OnChange(func(snap Snapshot) { last = snap })
	s.AddPoints(context.Background(), 5, "x")

	if last.Balance != 15 {
		t.Errorf("last snapshot balance = %d, want 15", last.Balance)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}
