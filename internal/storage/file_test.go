package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func openTestFileStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetSettings(ctx); err != nil || ok {
		t.Fatalf("GetSettings on empty store = ok:%v err:%v", ok, err)
	}

	in := SettingsRecord{
		Enabled:         true,
		IntervalMinutes: 45,
		ActiveStart:     "09:00",
		ActiveEnd:       "21:30",
		Weekends:        false,
		Message:         "stretch your legs",
	}
	if err := st.PutSettings(ctx, in); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}

	out, ok, err := st.GetSettings(ctx)
	if err != nil || !ok {
		t.Fatalf("GetSettings = ok:%v err:%v", ok, err)
	}
	if out.IntervalMinutes != in.IntervalMinutes || out.ActiveStart != in.ActiveStart ||
		out.ActiveEnd != in.ActiveEnd || out.Weekends != in.Weekends ||
		out.Message != in.Message || !out.Enabled {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt should be set on write")
	}
}

func TestFileFireJournal(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t)
	ctx := context.Background()

	now := time.Now()
	records := []FireRecord{
		{At: now.Add(-48 * time.Hour), Message: "old", OK: true},
		{At: now.Add(-time.Hour), Message: "recent ok", OK: true},
		{At: now.Add(-30 * time.Minute), Message: "recent fail", OK: false, Error: "denied"},
		{At: now.Add(-time.Minute), Message: "manual", Manual: true, OK: true},
	}
	for _, r := range records {
		if err := st.AppendFire(ctx, r); err != nil {
			t.Fatalf("AppendFire: %v", err)
		}
	}

	got, err := st.RecentFires(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("RecentFires: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("RecentFires returned %d records, want 3", len(got))
	}
	if got[0].Message != "recent ok" || !got[0].OK {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Error != "denied" || got[1].OK {
		t.Fatalf("unexpected failure record: %+v", got[1])
	}
	if !got[2].Manual {
		t.Fatalf("manual flag lost: %+v", got[2])
	}
}
