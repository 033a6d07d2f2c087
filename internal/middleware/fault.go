package middleware

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// Faults describes artificial trouble injected in front of the data routes
// so client rollback paths can be exercised against a live server.
type Faults struct {
	Latency  time.Duration
	FailRate float64
}

func (f Faults) Enabled() bool {
	return f.Latency > 0 || f.FailRate > 0
}

// InjectFaults delays every request by Latency and then fails a FailRate
// fraction of them with 503.
func InjectFaults(f Faults, logger *slog.Logger) func(http.Handler) http.Handler {
	return injectFaults(f, logger, rand.Float64)
}

func injectFaults(f Faults, logger *slog.Logger, roll func() float64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !f.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if f.Latency > 0 {
				timer := time.NewTimer(f.Latency)
				select {
				case <-timer.C:
				case <-r.Context().Done():
					timer.Stop()
					return
				}
			}

			if f.FailRate > 0 && roll() < f.FailRate {
				logger.Info("injected failure", "method", r.Method, "path", r.URL.Path)
				writeError(w, http.StatusServiceUnavailable, "injected failure")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
