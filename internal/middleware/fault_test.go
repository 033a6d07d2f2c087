package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/petra184/mobile-app-sub002/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestInjectFaultsDisabledPassesThrough(t *testing.T) {
	h := InjectFaults(Faults{}, logging.Discard())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestInjectFaultsFailRate(t *testing.T) {
	rolls := []float64{0.1, 0.9}
	roll := func() float64 {
		r := rolls[0]
		rolls = rolls[1:]
		return r
	}
	h := injectFaults(Faults{FailRate: 0.5}, logging.Discard(), roll)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/users/u-1/points", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("first status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "injected failure") {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/users/u-1/points", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("second status = %d, want 200", rec.Code)
	}
}

func TestInjectFaultsLatency(t *testing.T) {
	h := InjectFaults(Faults{Latency: 30 * time.Millisecond}, logging.Discard())(okHandler())

	start := time.Now()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 30ms", elapsed)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "debug", "text")

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=404") {
		t.Errorf("log = %q, want a WARN line with status=404", out)
	}
}
