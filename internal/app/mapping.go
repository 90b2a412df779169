package app

import (
	"fmt"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/config"
	"remindbot/internal/observability/pprof"
	"remindbot/internal/services/digest"
	"remindbot/internal/services/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

const defaultIntervalMinutes = 60

// reminderSettings maps the user-facing config block onto the
// scheduler's settings. An empty window (start after end) maps as-is;
// the scheduler reports it when asked to arm.
func reminderSettings(rc config.ReminderConfig) (reminder.Settings, error) {
	start, err := clock.ParseTimeOfDay(rc.ActiveStart)
	if err != nil {
		return reminder.Settings{}, fmt.Errorf("reminder.active_start: %w", err)
	}
	end, err := clock.ParseTimeOfDay(rc.ActiveEnd)
	if err != nil {
		return reminder.Settings{}, fmt.Errorf("reminder.active_end: %w", err)
	}
	mins := rc.IntervalMinutes
	if mins < 0 {
		return reminder.Settings{}, fmt.Errorf("reminder.interval_minutes: must be positive, got %d", mins)
	}
	if mins == 0 {
		mins = defaultIntervalMinutes
	}
	msg := rc.Message
	if msg == "" {
		msg = "Time to hydrate."
	}
	return reminder.Settings{
		Enabled:  rc.Enabled,
		Interval: time.Duration(mins) * time.Minute,
		Window:   clock.Window{Start: start, End: end, Weekends: rc.Weekends},
		Message:  msg,
	}, nil
}

func digestConfig(dc *config.DigestConfig) (digest.Config, error) {
	if dc == nil || !dc.Enabled {
		return digest.Config{}, nil
	}
	at, err := clock.ParseTimeOfDay(dc.At)
	if err != nil {
		return digest.Config{}, fmt.Errorf("digest.at: %w", err)
	}
	return digest.Config{Enabled: true, At: at, TZ: dc.TZ}, nil
}

func storageConfig(sc *config.StorageConfig) (storage.Config, error) {
	if sc == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: sc.Driver, Path: sc.Path, BusyTimeout: busy}, nil
}

func pprofConfig(pc *config.PprofConfig) pprof.Config {
	if pc == nil {
		return pprof.Config{}
	}
	return pprof.Config{Enabled: pc.Enabled, Addr: pc.Addr, Token: pc.Token}
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// settingsRecord flattens scheduler settings for persistence.
func settingsRecord(s reminder.Settings, now time.Time) storage.SettingsRecord {
	return storage.SettingsRecord{
		Enabled:         s.Enabled,
		IntervalMinutes: int(s.Interval / time.Minute),
		ActiveStart:     s.Window.Start.String(),
		ActiveEnd:       s.Window.End.String(),
		Weekends:        s.Window.Weekends,
		Message:         s.Message,
		UpdatedAt:       now,
	}
}

func settingsFromRecord(rec storage.SettingsRecord) (reminder.Settings, error) {
	return reminderSettings(config.ReminderConfig{
		Enabled:         rec.Enabled,
		IntervalMinutes: rec.IntervalMinutes,
		ActiveStart:     rec.ActiveStart,
		ActiveEnd:       rec.ActiveEnd,
		Weekends:        rec.Weekends,
		Message:         rec.Message,
	})
}
