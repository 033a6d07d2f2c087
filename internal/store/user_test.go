package store

import (
	"database/sql"
	"testing"

	"github.com/petra184/mobile-app-sub002/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:", database.SchemaTwin)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserCreateAndGet(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("Fan@Example.com", "Fan")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.UserID == "" {
		t.Error("expected generated id")
	}
	if u.Email != "fan@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}
	if u.Points != 0 {
		t.Errorf("points = %d, want 0", u.Points)
	}

	got, err := us.GetByID(u.UserID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.DisplayName != "Fan" {
		t.Errorf("got = %+v, want display name Fan", got)
	}

	byEmail, err := us.GetByEmail("FAN@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail == nil || byEmail.UserID != u.UserID {
		t.Errorf("by email = %+v, want %s", byEmail, u.UserID)
	}
}

func TestUserGetMissing(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	got, err := us.GetByID("nope")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestUserGetOrCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	first, err := us.GetOrCreate("keeper@club.test")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first.DisplayName != "keeper" {
		t.Errorf("display name = %q, want keeper", first.DisplayName)
	}

	second, err := us.GetOrCreate("keeper@club.test")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if second.UserID != first.UserID {
		t.Errorf("second id = %s, want %s", second.UserID, first.UserID)
	}
}

func TestUserProfileCarriesBalance(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ps := NewPointsStore(db)

	u, _ := us.Create("a@b.test", "a")
	if _, err := ps.Apply(u.UserID, 120); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := ps.Apply(u.UserID, -20); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, _ := us.GetByID(u.UserID)
	if got.Points != 100 {
		t.Errorf("points = %d, want 100", got.Points)
	}

	list, err := us.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Points != 100 {
		t.Errorf("list = %+v", list)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ps := NewPointsStore(db)

	u, _ := us.Create("gone@b.test", "gone")
	ps.Apply(u.UserID, 50)

	if err := us.Delete(u.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	bal, err := ps.Balance(u.UserID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 0 {
		t.Errorf("balance = %d, want 0 after cascade", bal)
	}
}
