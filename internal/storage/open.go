package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "remindbot/pkg/logx"
)

// Store is the minimal persistence API used by the app glue.
type Store interface {
	PutSettings(ctx context.Context, s SettingsRecord) error
	GetSettings(ctx context.Context) (s SettingsRecord, ok bool, err error)
	AppendFire(ctx context.Context, e FireRecord) error
	RecentFires(ctx context.Context, since time.Time) ([]FireRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
