// Package notify holds the two user-facing notification lists: a capped set
// of self-expiring toasts and a session-lived inbox.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

const (
	DefaultLimit = 5
	DefaultTTL   = 4 * time.Second
)

// Toasts is an ordered, newest-first list of at most limit toasts. Each
// non-persistent toast schedules its own removal when shown; nothing cancels
// that timer, and removing an id that is already gone does nothing.
type Toasts struct {
	mu        sync.Mutex
	logger    *slog.Logger
	limit     int
	ttl       time.Duration
	toasts    []model.Toast
	listeners []func([]model.Toast)

	newID     func() string
	afterFunc func(time.Duration, func())
}

func NewToasts(limit int, ttl time.Duration, logger *slog.Logger) *Toasts {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Toasts{
		logger: logger,
		limit:  limit,
		ttl:    ttl,
		newID:  uuid.NewString,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// OnChange registers fn to receive the visible toasts after each change.
func (t *Toasts) OnChange(fn func([]model.Toast)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// List returns the visible toasts, newest first.
func (t *Toasts) List() []model.Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Toast(nil), t.toasts...)
}

// Show puts toast at the front of the list and returns its id. When the
// list is full the oldest toast is dropped.
func (t *Toasts) Show(toast model.Toast) string {
	if toast.ID == "" {
		toast.ID = t.newID()
	}
	if toast.Type == "" {
		toast.Type = model.ToastInfo
	}
	if !toast.Persistent && toast.TTL <= 0 {
		toast.TTL = t.ttl
	}
	if toast.Persistent {
		toast.TTL = 0
	}

	t.mu.Lock()
	next := make([]model.Toast, 0, t.limit)
	next = append(next, toast)
	next = append(next, t.toasts...)
	if len(next) > t.limit {
		for _, dropped := range next[t.limit:] {
			t.logger.Debug("toast evicted", "id", dropped.ID, "title", dropped.Title)
		}
		next = next[:t.limit]
	}
	t.toasts = next
	t.changedLocked()

	if !toast.Persistent {
		id := toast.ID
		t.afterFunc(toast.TTL, func() { t.Dismiss(id) })
	}
	return toast.ID
}

// Dismiss removes the toast with id, if it is still visible.
func (t *Toasts) Dismiss(id string) {
	t.mu.Lock()
	for i, toast := range t.toasts {
		if toast.ID == id {
			t.toasts = append(t.toasts[:i:i], t.toasts[i+1:]...)
			t.changedLocked()
			return
		}
	}
	t.mu.Unlock()
}

// Clear removes every visible toast.
func (t *Toasts) Clear() {
	t.mu.Lock()
	t.toasts = nil
	t.changedLocked()
}

func (t *Toasts) Success(title, message string) string {
	return t.Show(model.Toast{Type: model.ToastSuccess, Title: title, Message: message})
}

func (t *Toasts) Error(title, message string) string {
	return t.Show(model.Toast{Type: model.ToastError, Title: title, Message: message})
}

func (t *Toasts) Info(title, message string) string {
	return t.Show(model.Toast{Type: model.ToastInfo, Title: title, Message: message})
}

func (t *Toasts) Warning(title, message string) string {
	return t.Show(model.Toast{Type: model.ToastWarning, Title: title, Message: message})
}

// changedLocked releases the lock and notifies listeners.
func (t *Toasts) changedLocked() {
	snap := append([]model.Toast(nil), t.toasts...)
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
