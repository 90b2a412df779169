package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

type fakeDeliverer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDeliverer) Deliver(_ context.Context, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, message)
	return d.err
}

func (d *fakeDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func testWindow(weekends bool) clock.Window {
	return clock.Window{
		Start:    clock.TimeOfDay{Hour: 8},
		End:      clock.TimeOfDay{Hour: 22},
		Weekends: weekends,
	}
}

func testSettings() Settings {
	return Settings{
		Enabled:  true,
		Interval: time.Hour,
		Window:   testWindow(true),
		Message:  "drink water",
	}
}

// newTestService returns a service pinned to Wednesday 2025-06-04 10:00
// UTC. The pinned clock keeps armed timers from firing during tests.
func newTestService(t *testing.T, d Deliverer, bus eventbus.Bus) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2025, time.June, 4, 10, 0, 0, 0, time.UTC)
	s := New(d, logx.Nop(), bus)
	s.nowFn = func() time.Time { return now }
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s, &now
}

func liveTimers(s *Service) uint64 {
	snap := s.Snapshot()
	if snap.TimersReleased > snap.TimersArmed {
		return 0
	}
	return snap.TimersArmed - snap.TimersReleased
}

// currentVer exposes the armed generation for driving the fire handler
// deterministically.
func currentVer(s *Service) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ver
}

func TestEnableArmsNextOccurrence(t *testing.T) {
	d := &fakeDeliverer{}
	s, _ := newTestService(t, d, nil)

	if err := s.Enable(testSettings()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	want := time.Date(2025, time.June, 4, 11, 0, 0, 0, time.UTC)
	if got := s.NextFireAt(); !got.Equal(want) {
		t.Fatalf("NextFireAt = %v, want %v", got, want)
	}
	snap := s.Snapshot()
	if !snap.Armed || !snap.Settings.Enabled {
		t.Fatalf("expected armed+enabled, got %+v", snap)
	}
	if n := liveTimers(s); n != 1 {
		t.Fatalf("live timers = %d, want 1", n)
	}
	if d.count() != 0 {
		t.Fatal("enable must not deliver")
	}
}

func TestEnableRejectsDisabledSettings(t *testing.T) {
	s, _ := newTestService(t, &fakeDeliverer{}, nil)
	st := testSettings()
	st.Enabled = false
	if err := s.Enable(st); !errors.Is(err, ErrDisabledSettings) {
		t.Fatalf("Enable = %v, want ErrDisabledSettings", err)
	}
}

func TestEnableEmptyWindowParks(t *testing.T) {
	s, _ := newTestService(t, &fakeDeliverer{}, nil)

	st := testSettings()
	st.Window.Start = clock.TimeOfDay{Hour: 22}
	st.Window.End = clock.TimeOfDay{Hour: 8}

	if err := s.Enable(st); !errors.Is(err, ErrNoOccurrence) {
		t.Fatalf("Enable = %v, want ErrNoOccurrence", err)
	}
	snap := s.Snapshot()
	if snap.Armed || !snap.NextFireAt.IsZero() {
		t.Fatalf("parked service should hold no timer: %+v", snap)
	}
	// Enabled flag is still recorded; a valid window recovers the loop.
	if !snap.Settings.Enabled {
		t.Fatal("enabled flag should be retained while parked")
	}
	if err := s.Reconfigure(testSettings()); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if !s.Snapshot().Armed {
		t.Fatal("expected armed after recovery")
	}
}

func TestDisableIdempotent(t *testing.T) {
	s, _ := newTestService(t, &fakeDeliverer{}, nil)
	if err := s.Enable(testSettings()); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	s.Disable()
	first := s.Snapshot()
	s.Disable()
	second := s.Snapshot()

	if first.Armed || second.Armed {
		t.Fatal("disable must clear the timer")
	}
	if first.Settings.Enabled || second.Settings.Enabled {
		t.Fatal("disable must clear the enabled flag")
	}
	if !first.NextFireAt.IsZero() || !second.NextFireAt.IsZero() {
		t.Fatal("disable must clear nextFireAt")
	}
	if n := liveTimers(s); n != 0 {
		t.Fatalf("live timers = %d, want 0", n)
	}
}

func TestNoDoubleArmAcrossOperations(t *testing.T) {
	d := &fakeDeliverer{}
	s, _ := newTestService(t, d, nil)

	check := func(step string) {
		if n := liveTimers(s); n > 1 {
			t.Fatalf("after %s: %d live timers", step, n)
		}
	}

	_ = s.Enable(testSettings())
	check("enable")
	_ = s.Reconfigure(testSettings())
	check("reconfigure")
	st := testSettings()
	st.Interval = 30 * time.Minute
	_ = s.Reconfigure(st)
	check("reconfigure interval")
	s.FireNow(context.Background())
	check("fireNow")
	s.Disable()
	check("disable")
	_ = s.Enable(testSettings())
	check("re-enable")
	s.onTimer(currentVer(s))
	check("timer fire")
}

func TestFireHandlerDeliversAndRearms(t *testing.T) {
	d := &fakeDeliverer{}
	bus := eventbus.New()
	fired, unsub := bus.Subscribe(4, eventbus.TopicReminderFired)
	defer unsub()

	s, now := newTestService(t, d, bus)
	if err := s.Enable(testSettings()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	before := s.NextFireAt()

	// Advance the clock to the occurrence and run the fire handler the
	// way the timer callback would.
	*now = before
	s.onTimer(currentVer(s))

	if d.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", d.count())
	}
	after := s.NextFireAt()
	if !after.After(before) {
		t.Fatalf("nextFireAt must strictly increase: %v -> %v", before, after)
	}
	st := testSettings()
	if !st.Window.Contains(after) || !st.Window.AllowsDay(after) {
		t.Fatalf("rearmed occurrence %v violates window constraints", after)
	}
	if n := liveTimers(s); n != 1 {
		t.Fatalf("live timers = %d, want 1", n)
	}

	select {
	case e := <-fired:
		ev := e.Data.(FiredEvent)
		if !ev.OK || ev.Manual || ev.Message != "drink water" {
			t.Fatalf("unexpected fired event: %+v", ev)
		}
		if !ev.NextAt.Equal(after) {
			t.Fatalf("event NextAt = %v, want %v", ev.NextAt, after)
		}
	default:
		t.Fatal("expected a fired event")
	}
}

func TestStaleTimerSkipped(t *testing.T) {
	d := &fakeDeliverer{}
	s, _ := newTestService(t, d, nil)
	if err := s.Enable(testSettings()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	v := currentVer(s)

	// Disable then simulate the old timer firing anyway.
	s.Disable()
	s.onTimer(v)

	if d.count() != 0 {
		t.Fatal("stale timer must not deliver")
	}
	if s.Snapshot().Armed {
		t.Fatal("stale timer must not re-arm")
	}
}

func TestDeliveryFailureKeepsLoop(t *testing.T) {
	d := &fakeDeliverer{err: errors.New("permission revoked")}
	bus := eventbus.New()
	errs, unsub := bus.Subscribe(4, eventbus.TopicReminderError)
	defer unsub()

	s, now := newTestService(t, d, bus)
	if err := s.Enable(testSettings()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	*now = s.NextFireAt()
	s.onTimer(currentVer(s))

	if d.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", d.count())
	}
	// The loop re-arms regardless: the next occurrence is the retry.
	if !s.Snapshot().Armed {
		t.Fatal("loop must continue after delivery failure")
	}
	select {
	case e := <-errs:
		ev := e.Data.(ErrorEvent)
		if ev.Kind != ErrorDelivery {
			t.Fatalf("error kind = %s, want delivery", ev.Kind)
		}
	default:
		t.Fatal("expected a delivery error event")
	}
}

func TestFireNowSharesProductionPath(t *testing.T) {
	d := &fakeDeliverer{}
	s, _ := newTestService(t, d, nil)
	if err := s.Enable(testSettings()); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	s.FireNow(context.Background())

	if d.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", d.count())
	}
	// Shared path: the manual fire consumed the pending occurrence and
	// rescheduled from now.
	snap := s.Snapshot()
	if !snap.Armed {
		t.Fatal("expected re-armed after manual fire")
	}
	if n := liveTimers(s); n != 1 {
		t.Fatalf("live timers = %d, want 1", n)
	}
}

func TestFireNowWhileDisabledDeliversOnce(t *testing.T) {
	d := &fakeDeliverer{}
	s, _ := newTestService(t, d, nil)

	st := testSettings()
	st.Enabled = false
	_ = s.Reconfigure(st)

	s.FireNow(context.Background())

	if d.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", d.count())
	}
	if s.Snapshot().Armed {
		t.Fatal("manual fire while disabled must not arm the loop")
	}
}

func TestReconfigureDisabledRetainsSettings(t *testing.T) {
	s, _ := newTestService(t, &fakeDeliverer{}, nil)
	_ = s.Enable(testSettings())

	st := testSettings()
	st.Enabled = false
	st.Message = "new text"
	if err := s.Reconfigure(st); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	snap := s.Snapshot()
	if snap.Armed || snap.Settings.Enabled {
		t.Fatal("expected disabled state")
	}
	if snap.Settings.Message != "new text" {
		t.Fatal("new settings must be retained while disabled")
	}
}
