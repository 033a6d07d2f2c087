package model

import "time"

type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastInfo    ToastType = "info"
	ToastWarning ToastType = "warning"
)

// Action is an optional call-to-action attached to a toast or inbox entry.
type Action struct {
	Label string `json:"label"`
	Route string `json:"route"`
}

type Toast struct {
	ID         string        `json:"id"`
	Type       ToastType     `json:"type"`
	Title      string        `json:"title"`
	Message    string        `json:"message,omitempty"`
	TTL        time.Duration `json:"ttl,omitempty"`
	Persistent bool          `json:"persistent"`
	Action     *Action       `json:"action,omitempty"`
}

type InboxNotification struct {
	ID        string    `json:"id"`
	Type      ToastType `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Action    *Action   `json:"action,omitempty"`
}
