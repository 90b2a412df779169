package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Reminder is the recurring-reminder schedule itself.
	Reminder ReminderConfig `json:"reminder"`

	// Delivery selects which sinks present reminders to the user.
	Delivery DeliveryConfig `json:"delivery"`

	// Digest optionally sends a once-a-day summary of reminder activity.
	Digest *DigestConfig `json:"digest,omitempty"`

	// Storage persists settings and fire history across restarts.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Pprof exposes the Go profiling endpoints, off by default.
	Pprof *PprofConfig `json:"pprof,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ReminderConfig mirrors the user-facing reminder settings.
//
// ActiveStart/ActiveEnd are inclusive "HH:MM" window boundaries. A
// start later than the end yields an empty window; the scheduler then
// reports a configuration error instead of arming a timer.
type ReminderConfig struct {
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"interval_minutes"`
	ActiveStart     string `json:"active_start"`
	ActiveEnd       string `json:"active_end"`
	Weekends        bool   `json:"weekends"`
	Message         string `json:"message"`
}

type DeliveryConfig struct {
	Console  bool `json:"console"`
	Telegram bool `json:"telegram"`
	// RatePerSec caps outbound Telegram sends. Defaults to 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// DigestConfig controls the daily activity summary.
type DigestConfig struct {
	Enabled bool   `json:"enabled"`
	At      string `json:"at"`                 // "HH:MM"
	TZ      string `json:"timezone,omitempty"` // IANA TZ; empty means local
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./remindbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// PprofConfig controls the debug HTTP listener. A non-loopback addr
// requires a token.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}
