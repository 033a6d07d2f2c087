package store

import (
	"errors"
	"testing"
)

func TestPointsApply(t *testing.T) {
	db := setupTestDB(t)
	u, _ := NewUserStore(db).Create("p@b.test", "p")
	ps := NewPointsStore(db)

	bal, err := ps.Apply(u.UserID, 100)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if bal != 100 {
		t.Errorf("balance = %d, want 100", bal)
	}

	bal, err = ps.Apply(u.UserID, -40)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if bal != 60 {
		t.Errorf("balance = %d, want 60", bal)
	}

	got, _ := ps.Balance(u.UserID)
	if got != 60 {
		t.Errorf("stored balance = %d, want 60", got)
	}
}

func TestPointsInsufficient(t *testing.T) {
	db := setupTestDB(t)
	u, _ := NewUserStore(db).Create("p@b.test", "p")
	ps := NewPointsStore(db)
	ps.Apply(u.UserID, 30)

	bal, err := ps.Apply(u.UserID, -31)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}
	if bal != 30 {
		t.Errorf("reported balance = %d, want 30", bal)
	}
	if got, _ := ps.Balance(u.UserID); got != 30 {
		t.Errorf("balance = %d, want 30 (nothing recorded)", got)
	}
}

func TestPointsZeroDelta(t *testing.T) {
	db := setupTestDB(t)
	u, _ := NewUserStore(db).Create("p@b.test", "p")
	ps := NewPointsStore(db)
	ps.Apply(u.UserID, 10)

	bal, err := ps.Apply(u.UserID, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if bal != 10 {
		t.Errorf("balance = %d, want 10", bal)
	}
}

func TestPointsUnknownUser(t *testing.T) {
	ps := NewPointsStore(setupTestDB(t))
	if _, err := ps.Apply("ghost", 10); err == nil {
		t.Error("expected foreign key error for unknown user")
	}
}
