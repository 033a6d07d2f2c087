// Package dataservice is the client side of the remote data service that
// owns points, preferences and scan history.
package dataservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/petra184/mobile-app-sub002/internal/model"
)

var (
	ErrNotFound     = errors.New("dataservice: not found")
	ErrUnauthorized = errors.New("dataservice: unauthorized")
)

// StatusError reports a non-2xx response that has no dedicated sentinel.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

// Service is the request/response surface of the remote data service.
// Every call may block for an unbounded time; ctx is the only way to abandon it.
type Service interface {
	FetchProfile(ctx context.Context, userID string) (*model.Profile, error)
	ApplyPointsDelta(ctx context.Context, userID string, delta int, direction model.PointsDirection) error
	FetchPreferences(ctx context.Context, userID string) (model.Preferences, error)
	PersistPreferences(ctx context.Context, userID string, prefs model.Preferences) error
	FetchScanHistory(ctx context.Context, userID string) ([]model.ScanEntry, error)
	AppendScan(ctx context.Context, userID string, scan model.ScanEntry) error
}
