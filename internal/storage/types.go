package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + jsonl journal)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SettingsRecord is the persisted form of the reminder settings.
// Kept as plain data so the store stays decoupled from the engine.
type SettingsRecord struct {
	Enabled         bool
	IntervalMinutes int
	ActiveStart     string // "HH:MM"
	ActiveEnd       string // "HH:MM"
	Weekends        bool
	Message         string
	UpdatedAt       time.Time
}

// FireRecord is one delivery attempt.
type FireRecord struct {
	At      time.Time
	Message string
	Manual  bool // true when triggered via the test path
	OK      bool
	Error   string
}
