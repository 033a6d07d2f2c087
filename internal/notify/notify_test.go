package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/petra184/mobile-app-sub002/internal/logging"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

type scheduled struct {
	d  time.Duration
	fn func()
}

func setupToasts(t *testing.T) (*Toasts, *[]scheduled) {
	t.Helper()
	ts := NewToasts(0, 0, logging.Discard())
	var timers []scheduled
	ts.afterFunc = func(d time.Duration, fn func()) {
		timers = append(timers, scheduled{d: d, fn: fn})
	}
	return ts, &timers
}

func TestSixToastsKeepFiveNewestFirst(t *testing.T) {
	ts, _ := setupToasts(t)

	var ids []string
	for i := 1; i <= 6; i++ {
		ids = append(ids, ts.Info(fmt.Sprintf("toast %d", i), ""))
	}

	list := ts.List()
	if len(list) != 5 {
		t.Fatalf("len = %d, want 5", len(list))
	}
	if list[0].ID != ids[5] {
		t.Errorf("list[0] = %s, want newest %s", list[0].Title, "toast 6")
	}
	for _, toast := range list {
		if toast.ID == ids[0] {
			t.Error("oldest toast should have been evicted")
		}
	}
	if list[4].ID != ids[1] {
		t.Errorf("list[4] = %s, want toast 2", list[4].Title)
	}
}

func TestToastExpiresByItself(t *testing.T) {
	ts, timers := setupToasts(t)

	id := ts.Success("Saved", "")
	if len(*timers) != 1 {
		t.Fatalf("timers = %d, want 1", len(*timers))
	}
	if (*timers)[0].d != DefaultTTL {
		t.Errorf("ttl = %v, want %v", (*timers)[0].d, DefaultTTL)
	}

	(*timers)[0].fn()
	for _, toast := range ts.List() {
		if toast.ID == id {
			t.Fatal("toast still visible after its timer fired")
		}
	}
}

func TestCustomTTL(t *testing.T) {
	ts, timers := setupToasts(t)
	ts.Show(model.Toast{Title: "Quick", TTL: time.Second})
	if (*timers)[0].d != time.Second {
		t.Errorf("ttl = %v, want 1s", (*timers)[0].d)
	}
}

func TestPersistentToastHasNoTimer(t *testing.T) {
	ts, timers := setupToasts(t)

	id := ts.Show(model.Toast{Type: model.ToastWarning, Title: "Offline", Persistent: true})
	if len(*timers) != 0 {
		t.Fatalf("timers = %d, want 0", len(*timers))
	}
	if len(ts.List()) != 1 {
		t.Fatal("persistent toast missing")
	}

	ts.Dismiss(id)
	if len(ts.List()) != 0 {
		t.Error("dismissed toast still visible")
	}
}

func TestLateTimerAfterDismissIsHarmless(t *testing.T) {
	ts, timers := setupToasts(t)

	first := ts.Error("Failed", "try again")
	ts.Dismiss(first)
	second := ts.Info("Hello", "")

	(*timers)[0].fn()

	list := ts.List()
	if len(list) != 1 || list[0].ID != second {
		t.Errorf("list = %v, want only the second toast", list)
	}
}

func TestToastDefaults(t *testing.T) {
	ts, _ := setupToasts(t)
	ts.Show(model.Toast{Title: "Plain"})

	got := ts.List()[0]
	if got.ID == "" {
		t.Error("expected generated id")
	}
	if got.Type != model.ToastInfo {
		t.Errorf("type = %q, want info", got.Type)
	}
}

func TestToastListeners(t *testing.T) {
	ts, _ := setupToasts(t)
	var seen int
	ts.OnChange(func(list []model.Toast) { seen = len(list) })

	ts.Info("a", "")
	ts.Info("b", "")
	if seen != 2 {
		t.Errorf("listener saw %d toasts, want 2", seen)
	}
	ts.Clear()
	if seen != 0 {
		t.Errorf("listener saw %d toasts after clear, want 0", seen)
	}
}

func TestInboxReadState(t *testing.T) {
	b := NewInbox()

	first := b.Add(model.InboxNotification{Title: "Matchday promo", Read: true})
	second := b.Add(model.InboxNotification{Title: "Double points weekend"})

	if got := b.UnreadCount(); got != 2 {
		t.Fatalf("unread = %d, want 2 (added entries start unread)", got)
	}
	if b.Notifications()[0].ID != second {
		t.Error("newest notification should be first")
	}

	b.MarkAsRead(first)
	if got := b.UnreadCount(); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}

	b.MarkAllAsRead()
	if got := b.UnreadCount(); got != 0 {
		t.Errorf("unread = %d, want 0", got)
	}
}

func TestInboxRemoveAndClear(t *testing.T) {
	b := NewInbox()
	a := b.Add(model.InboxNotification{Title: "a"})
	b.Add(model.InboxNotification{Title: "b"})

	b.RemoveNotification(a)
	b.RemoveNotification("missing")
	if got := len(b.Notifications()); got != 1 {
		t.Fatalf("len = %d, want 1", got)
	}

	b.ClearAll()
	if got := len(b.Notifications()); got != 0 {
		t.Errorf("len = %d, want 0", got)
	}
}

func TestInboxTimestamp(t *testing.T) {
	b := NewInbox()
	fixed := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	b.Add(model.InboxNotification{Title: "Kickoff moved"})
	if got := b.Notifications()[0].Timestamp; !got.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", got, fixed)
	}
}
