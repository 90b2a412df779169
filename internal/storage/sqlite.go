package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutSettings(ctx context.Context, rec SettingsRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(id, enabled, interval_m, active_from, active_to, weekends, message, updated_at)
		 VALUES(1,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   enabled=excluded.enabled, interval_m=excluded.interval_m,
		   active_from=excluded.active_from, active_to=excluded.active_to,
		   weekends=excluded.weekends, message=excluded.message,
		   updated_at=excluded.updated_at`,
		boolInt(rec.Enabled), rec.IntervalMinutes, rec.ActiveStart, rec.ActiveEnd,
		boolInt(rec.Weekends), rec.Message, rec.UpdatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) GetSettings(ctx context.Context) (SettingsRecord, bool, error) {
	if s == nil || s.db == nil {
		return SettingsRecord{}, false, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT enabled, interval_m, active_from, active_to, weekends, message, updated_at
		 FROM settings WHERE id = 1`)

	var (
		enabled, weekends, interval int
		from, to, message           string
		updated                     int64
	)
	err := row.Scan(&enabled, &interval, &from, &to, &weekends, &message, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return SettingsRecord{}, false, nil
	}
	if err != nil {
		return SettingsRecord{}, false, err
	}
	return SettingsRecord{
		Enabled:         enabled != 0,
		IntervalMinutes: interval,
		ActiveStart:     from,
		ActiveEnd:       to,
		Weekends:        weekends != 0,
		Message:         message,
		UpdatedAt:       time.UnixMilli(updated),
	}, true, nil
}

func (s *sqliteStore) AppendFire(ctx context.Context, e FireRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fires(at, message, manual, ok, err) VALUES(?,?,?,?,?)`,
		e.At.UnixMilli(), e.Message, boolInt(e.Manual), boolInt(e.OK), nullStr(e.Error),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneOld(pctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) RecentFires(ctx context.Context, since time.Time) ([]FireRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, message, manual, ok, COALESCE(err, '') FROM fires WHERE at >= ? ORDER BY at ASC`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FireRecord
	for rows.Next() {
		var (
			at         int64
			manual, ok int
			msg, errS  string
		)
		if err := rows.Scan(&at, &msg, &manual, &ok, &errS); err != nil {
			return nil, err
		}
		out = append(out, FireRecord{
			At: time.UnixMilli(at), Message: msg,
			Manual: manual != 0, OK: ok != 0, Error: errS,
		})
	}
	return out, rows.Err()
}

func (s *sqliteStore) pruneOld(ctx context.Context) error {
	horizon := time.Now().Add(-fireRetention).UnixMilli()
	_, err := s.db.ExecContext(ctx, `DELETE FROM fires WHERE at < ?`, horizon)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
