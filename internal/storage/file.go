package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "remindbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.settings.json (snapshot, rewritten atomically)
//   - <prefix>.fires.jsonl   (append-only JSON Lines, pruned on open)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	settingsPath string
	firesPath    string
	firesFile    *os.File

	fireWrites int
}

const (
	fireRetention   = 14 * 24 * time.Hour
	compactEveryN   = 500
	settingsTmpMode = 0o600
)

type settingsRecordJSON struct {
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"interval_minutes"`
	ActiveStart     string `json:"active_start"`
	ActiveEnd       string `json:"active_end"`
	Weekends        bool   `json:"weekends"`
	Message         string `json:"message"`
	UpdatedAt       int64  `json:"updated_at"` // unix milli
}

type fireRecordJSON struct {
	At      int64  `json:"at"` // unix milli
	Message string `json:"message"`
	Manual  bool   `json:"manual,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		settingsPath: prefix + ".settings.json",
		firesPath:    prefix + ".fires.jsonl",
	}

	if err := s.compactFiresLocked(); err != nil {
		log.Warn("fire journal compaction failed", logx.Err(err))
	}

	f, err := os.OpenFile(s.firesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.firesFile = f
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firesFile != nil {
		err := s.firesFile.Close()
		s.firesFile = nil
		return err
	}
	return nil
}

func (s *fileStore) PutSettings(_ context.Context, rec SettingsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	b, err := json.Marshal(settingsRecordJSON{
		Enabled:         rec.Enabled,
		IntervalMinutes: rec.IntervalMinutes,
		ActiveStart:     rec.ActiveStart,
		ActiveEnd:       rec.ActiveEnd,
		Weekends:        rec.Weekends,
		Message:         rec.Message,
		UpdatedAt:       rec.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write never corrupts the snapshot.
	tmp := s.settingsPath + ".tmp"
	if err := os.WriteFile(tmp, b, settingsTmpMode); err != nil {
		return err
	}
	return os.Rename(tmp, s.settingsPath)
}

func (s *fileStore) GetSettings(_ context.Context) (SettingsRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return SettingsRecord{}, false, nil
		}
		return SettingsRecord{}, false, err
	}
	var j settingsRecordJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return SettingsRecord{}, false, err
	}
	return SettingsRecord{
		Enabled:         j.Enabled,
		IntervalMinutes: j.IntervalMinutes,
		ActiveStart:     j.ActiveStart,
		ActiveEnd:       j.ActiveEnd,
		Weekends:        j.Weekends,
		Message:         j.Message,
		UpdatedAt:       time.UnixMilli(j.UpdatedAt),
	}, true, nil
}

func (s *fileStore) AppendFire(_ context.Context, e FireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firesFile == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(fireRecordJSON{
		At:      e.At.UnixMilli(),
		Message: e.Message,
		Manual:  e.Manual,
		OK:      e.OK,
		Error:   e.Error,
	})
	if err != nil {
		return err
	}
	if _, err := s.firesFile.Write(append(b, '\n')); err != nil {
		return err
	}
	s.fireWrites++
	if s.fireWrites%compactEveryN == 0 {
		if err := s.reopenCompactedLocked(); err != nil {
			s.log.Warn("fire journal compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentFires(_ context.Context, since time.Time) ([]FireRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readFiresLocked(since)
}

func (s *fileStore) readFiresLocked(since time.Time) ([]FireRecord, error) {
	f, err := os.Open(s.firesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []FireRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var j fireRecordJSON
		if err := json.Unmarshal([]byte(line), &j); err != nil {
			// Skip torn/corrupt lines instead of failing the whole read.
			continue
		}
		at := time.UnixMilli(j.At)
		if at.Before(since) {
			continue
		}
		out = append(out, FireRecord{At: at, Message: j.Message, Manual: j.Manual, OK: j.OK, Error: j.Error})
	}
	return out, sc.Err()
}

// compactFiresLocked rewrites the journal keeping only records inside
// the retention horizon.
func (s *fileStore) compactFiresLocked() error {
	recs, err := s.readFiresLocked(time.Now().Add(-fireRetention))
	if err != nil {
		return err
	}
	tmp := s.firesPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, r := range recs {
		b, err := json.Marshal(fireRecordJSON{
			At: r.At.UnixMilli(), Message: r.Message, Manual: r.Manual, OK: r.OK, Error: r.Error,
		})
		if err != nil {
			continue
		}
		_, _ = w.Write(append(b, '\n'))
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.firesPath)
}

func (s *fileStore) reopenCompactedLocked() error {
	if s.firesFile != nil {
		_ = s.firesFile.Close()
		s.firesFile = nil
	}
	if err := s.compactFiresLocked(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.firesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.firesFile = f
	return nil
}
