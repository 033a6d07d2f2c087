package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petra184/mobile-app-sub002/internal/kv"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CartDebounce != 500*time.Millisecond {
		t.Errorf("cart debounce = %v, want 500ms", cfg.CartDebounce)
	}
	if cfg.ToastTTL != 4*time.Second {
		t.Errorf("toast ttl = %v, want 4s", cfg.ToastTTL)
	}
	if cfg.ToastLimit != 5 {
		t.Errorf("toast limit = %d, want 5", cfg.ToastLimit)
	}
	if cfg.Storage.Driver != kv.DriverSQLite {
		t.Errorf("driver = %q, want sqlite", cfg.Storage.Driver)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
api_url: https://api.example.com
cart_debounce: 250ms
toast_limit: 3
storage:
  driver: s3
  secret: hunter2
  s3:
    bucket: kiosk-carts
    region: us-east-1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("api url = %q", cfg.APIURL)
	}
	if cfg.CartDebounce != 250*time.Millisecond {
		t.Errorf("cart debounce = %v, want 250ms", cfg.CartDebounce)
	}
	if cfg.ToastLimit != 3 {
		t.Errorf("toast limit = %d, want 3", cfg.ToastLimit)
	}
	if cfg.Storage.S3.Bucket != "kiosk-carts" || cfg.Storage.Secret != "hunter2" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.ToastTTL != 4*time.Second {
		t.Errorf("unset toast ttl = %v, want default", cfg.ToastTTL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "api_url: https://file.example.com\n")
	t.Setenv("FANZONE_API_URL", "https://env.example.com")
	t.Setenv("FANZONE_TOAST_TTL", "2s")
	t.Setenv("FANZONE_STORAGE_DRIVER", "memory")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != "https://env.example.com" {
		t.Errorf("api url = %q, want env value", cfg.APIURL)
	}
	if cfg.ToastTTL != 2*time.Second {
		t.Errorf("toast ttl = %v, want 2s", cfg.ToastTTL)
	}
	if cfg.Storage.Driver != kv.DriverMemory {
		t.Errorf("driver = %q, want memory", cfg.Storage.Driver)
	}
}

func TestMalformedYAML(t *testing.T) {
	path := writeConfig(t, "api_url: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("FANZONE_TOAST_LIMIT", "many")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric toast limit")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = kv.DriverS3
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for s3 without bucket")
	}

	cfg = Default()
	cfg.ToastLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero toast limit")
	}

	cfg = Default()
	cfg.Storage.Driver = "floppy"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown driver")
	}
}
