package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

type fakeHistory struct {
	recs []storage.FireRecord
}

func (f *fakeHistory) RecentFires(_ context.Context, since time.Time) ([]storage.FireRecord, error) {
	var out []storage.FireRecord
	for _, r := range f.recs {
		if !r.At.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestComposeCountsRecords(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.June, 4, 21, 0, 0, 0, time.UTC)
	hist := &fakeHistory{recs: []storage.FireRecord{
		{At: now.Add(-30 * time.Hour), OK: true}, // outside 24h
		{At: now.Add(-10 * time.Hour), OK: true},
		{At: now.Add(-5 * time.Hour), OK: true},
		{At: now.Add(-2 * time.Hour), OK: false, Error: "denied"},
		{At: now.Add(-1 * time.Hour), OK: true, Manual: true},
	}}

	s := New(Config{}, nil, hist, logx.Nop(), nil)
	s.SetNextFireAt(func() time.Time {
		return time.Date(2025, time.June, 4, 22, 0, 0, 0, time.UTC)
	})

	text := s.Compose(context.Background(), now)
	for _, want := range []string{"2 delivered", "1 failed", "1 manual", "Next reminder at 22:00"} {
		if !strings.Contains(text, want) {
			t.Fatalf("digest %q missing %q", text, want)
		}
	}
}

func TestComposeWithoutHistory(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, nil, logx.Nop(), nil)
	text := s.Compose(context.Background(), time.Now())
	if !strings.Contains(text, "0 delivered") {
		t.Fatalf("unexpected digest: %q", text)
	}
	if strings.Contains(text, "failed") || strings.Contains(text, "manual") {
		t.Fatalf("zero counts should be omitted: %q", text)
	}
}
