package notify

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

// Inbox is an unbounded list of notifications that lives for the process.
// Newest entries are first. Nothing here is persisted.
type Inbox struct {
	mu        sync.Mutex
	items     []model.InboxNotification
	listeners []func([]model.InboxNotification)

	newID func() string
	now   func() time.Time
}

func NewInbox() *Inbox {
	return &Inbox{newID: uuid.NewString, now: time.Now}
}

func (b *Inbox) OnChange(fn func([]model.InboxNotification)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Add stores n as unread at the front of the list, so Notifications reads
// newest first, and returns its id.
func (b *Inbox) Add(n model.InboxNotification) string {
	if n.ID == "" {
		n.ID = b.newID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = b.now()
	}
	if n.Type == "" {
		n.Type = model.ToastInfo
	}
	n.Read = false

	b.mu.Lock()
	b.items = append([]model.InboxNotification{n}, b.items...)
	b.changedLocked()
	return n.ID
}

func (b *Inbox) Notifications() []model.InboxNotification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.InboxNotification(nil), b.items...)
}

func (b *Inbox) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, it := range b.items {
		if !it.Read {
			n++
		}
	}
	return n
}

func (b *Inbox) MarkAsRead(id string) {
	b.mu.Lock()
	for i := range b.items {
		if b.items[i].ID == id {
			if b.items[i].Read {
				break
			}
			b.items[i].Read = true
			b.changedLocked()
			return
		}
	}
	b.mu.Unlock()
}

func (b *Inbox) MarkAllAsRead() {
	b.mu.Lock()
	for i := range b.items {
		b.items[i].Read = true
	}
	b.changedLocked()
}

func (b *Inbox) RemoveNotification(id string) {
	b.mu.Lock()
	for i, it := range b.items {
		if it.ID == id {
			b.items = append(b.items[:i:i], b.items[i+1:]...)
			b.changedLocked()
			return
		}
	}
	b.mu.Unlock()
}

func (b *Inbox) ClearAll() {
	b.mu.Lock()
	b.items = nil
	b.changedLocked()
}

func (b *Inbox) changedLocked() {
	snap := append([]model.InboxNotification(nil), b.items...)
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
