package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
telegram:
  token: "123:abc"
  chat_id: 42
logging:
  level: DEBUG
  console: true
  file: {enabled: false, path: ""}
  telegram: {enabled: false, min_level: WARN, rate_per_sec: 1}
reminder:
  enabled: true
  interval_minutes: 60
  active_start: "08:00"
  active_end: "22:00"
  weekends: false
  message: "drink water"
delivery:
  console: true
  telegram: false
storage:
  driver: file
  path: ./store
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Reminder.Enabled || cfg.Reminder.IntervalMinutes != 60 {
		t.Fatalf("unexpected reminder config: %+v", cfg.Reminder)
	}
	if cfg.Reminder.ActiveStart != "08:00" || cfg.Reminder.ActiveEnd != "22:00" {
		t.Fatalf("unexpected window: %+v", cfg.Reminder)
	}
	if cfg.Reminder.Weekends {
		t.Fatal("weekends should be disabled")
	}
	if cfg.Telegram.ChatID != 42 {
		t.Fatalf("chat_id = %d", cfg.Telegram.ChatID)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"reminder": {"enabled": true, "interval": 60}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field \"interval\"")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"reminder": {"enabled": false}} {}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("telegram.poll_timeout", "", 10*time.Second)
	if err != nil || d != 10*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	d, err = ParseDurationField("storage.busy_timeout", "750ms")
	if err != nil || d != 750*time.Millisecond {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
