package app

import (
	"testing"
	"time"

	"remindbot/internal/config"
)

func TestReminderSettingsMapping(t *testing.T) {
	t.Parallel()
	s, err := reminderSettings(config.ReminderConfig{
		Enabled:         true,
		IntervalMinutes: 45,
		ActiveStart:     "08:00",
		ActiveEnd:       "21:30",
		Weekends:        false,
		Message:         "drink water",
	})
	if err != nil {
		t.Fatalf("reminderSettings: %v", err)
	}
	if s.Interval != 45*time.Minute {
		t.Fatalf("interval = %s", s.Interval)
	}
	if got := s.Window.Start.String(); got != "08:00" {
		t.Fatalf("start = %q", got)
	}
	if got := s.Window.End.String(); got != "21:30" {
		t.Fatalf("end = %q", got)
	}
	if s.Window.Weekends {
		t.Fatal("weekends should be off")
	}
}

func TestReminderSettingsDefaults(t *testing.T) {
	t.Parallel()
	s, err := reminderSettings(config.ReminderConfig{
		ActiveStart: "08:00",
		ActiveEnd:   "21:00",
	})
	if err != nil {
		t.Fatalf("reminderSettings: %v", err)
	}
	if s.Interval != time.Duration(defaultIntervalMinutes)*time.Minute {
		t.Fatalf("default interval = %s", s.Interval)
	}
	if s.Message == "" {
		t.Fatal("default message missing")
	}
}

func TestReminderSettingsRejectsBadInput(t *testing.T) {
	t.Parallel()
	cases := []config.ReminderConfig{
		{ActiveStart: "8am", ActiveEnd: "21:00"},
		{ActiveStart: "08:00", ActiveEnd: "25:00"},
		{ActiveStart: "08:00", ActiveEnd: "21:00", IntervalMinutes: -5},
	}
	for _, rc := range cases {
		if _, err := reminderSettings(rc); err == nil {
			t.Fatalf("expected error for %+v", rc)
		}
	}
}

func TestSettingsRecordRoundTrip(t *testing.T) {
	t.Parallel()
	orig, err := reminderSettings(config.ReminderConfig{
		Enabled:         true,
		IntervalMinutes: 90,
		ActiveStart:     "09:15",
		ActiveEnd:       "18:45",
		Weekends:        true,
		Message:         "stretch",
	})
	if err != nil {
		t.Fatalf("reminderSettings: %v", err)
	}

	rec := settingsRecord(orig, time.Now())
	got, err := settingsFromRecord(rec)
	if err != nil {
		t.Fatalf("settingsFromRecord: %v", err)
	}
	if got != orig {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, orig)
	}
}

func TestDigestConfigMapping(t *testing.T) {
	t.Parallel()
	if dc, err := digestConfig(nil); err != nil || dc.Enabled {
		t.Fatalf("nil digest block: %+v, %v", dc, err)
	}
	dc, err := digestConfig(&config.DigestConfig{Enabled: true, At: "21:00", TZ: "UTC"})
	if err != nil {
		t.Fatalf("digestConfig: %v", err)
	}
	if dc.At.Hour != 21 || dc.At.Minute != 0 {
		t.Fatalf("at = %+v", dc.At)
	}
	if _, err := digestConfig(&config.DigestConfig{Enabled: true, At: "nope"}); err == nil {
		t.Fatal("expected error for bad digest time")
	}
}
