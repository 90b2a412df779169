package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

const defaultDeliverTimeout = 30 * time.Second

// Service owns the schedule state: the current settings, the single
// pending occurrence, and the timer armed for it.
type Service struct {
	log       logx.Logger
	bus       eventbus.Bus
	deliverer Deliverer

	mu       sync.Mutex
	settings Settings
	next     time.Time   // zero when no timer is armed
	timer    *time.Timer // at most one live timer, ever
	ver      uint64      // generation; bumped on every arm/cancel

	nowFn          func() time.Time
	deliverTimeout time.Duration

	armedCount    atomic.Uint64
	releasedCount atomic.Uint64
}

// New creates a disabled service. bus may be nil.
func New(d Deliverer, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:            log,
		bus:            bus,
		deliverer:      d,
		nowFn:          time.Now,
		deliverTimeout: defaultDeliverTimeout,
	}
}

// Enable applies settings and arms the first occurrence. The settings
// must carry Enabled == true; the caller is responsible for having
// obtained delivery permission before enabling.
//
// ErrNoOccurrence means the enabled flag was recorded but no timer was
// armed (malformed window); recover via Reconfigure.
func (s *Service) Enable(settings Settings) error {
	if !settings.Enabled {
		return ErrDisabledSettings
	}
	return s.Reconfigure(settings)
}

// Disable cancels any pending occurrence and marks the service
// disabled. Idempotent.
func (s *Service) Disable() {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.settings.Enabled = false
	s.mu.Unlock()
	s.log.Info("reminders disabled")
}

// Reconfigure atomically replaces the settings: the existing timer is
// cancelled first, then a new one is armed if the settings are enabled.
// There is no window in which two timers are armed.
func (s *Service) Reconfigure(settings Settings) error {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.settings = settings
	if !settings.Enabled {
		s.mu.Unlock()
		s.log.Info("reminders reconfigured (disabled)")
		return nil
	}
	err := s.armNextLocked(s.nowFn())
	s.mu.Unlock()
	if err == nil {
		s.log.Info("reminders reconfigured",
			logx.Duration("interval", settings.Interval),
			logx.String("window", settings.Window.Start.String()+"-"+settings.Window.End.String()),
			logx.Bool("weekends", settings.Window.Weekends),
		)
	}
	return err
}

// FireNow triggers the delivery path immediately. It shares the
// production fire handler: when the service is enabled the pending
// occurrence is consumed and the loop reschedules from now; when
// disabled it delivers exactly once and leaves the state alone.
func (s *Service) FireNow(ctx context.Context) {
	s.mu.Lock()
	if s.settings.Enabled {
		s.cancelTimerLocked()
	}
	s.fireAndRearmLocked(ctx, true)
}

// Stop cancels the pending timer for session teardown. Settings are
// retained so a later Start-like Reconfigure can resume.
func (s *Service) Stop(ctx context.Context) {
	_ = ctx
	s.mu.Lock()
	s.cancelTimerLocked()
	s.mu.Unlock()
	s.log.Debug("reminder scheduler stopped")
}

// Snapshot returns a point-in-time view of the schedule state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Settings:       s.settings,
		Armed:          s.timer != nil,
		NextFireAt:     s.next,
		TimersArmed:    s.armedCount.Load(),
		TimersReleased: s.releasedCount.Load(),
	}
}

// NextFireAt returns the pending occurrence, zero when none.
func (s *Service) NextFireAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// ---- internals ----

// armNextLocked computes the next occurrence from now and arms a timer
// for it. Call with s.mu held and no timer armed.
func (s *Service) armNextLocked(now time.Time) error {
	next, ok := s.settings.Window.Next(now, s.settings.Interval)
	if !ok {
		s.next = time.Time{}
		s.log.Warn("window admits no occurrence; reminders parked until reconfigured",
			logx.String("start", s.settings.Window.Start.String()),
			logx.String("end", s.settings.Window.End.String()),
		)
		s.publish(eventbus.TopicReminderError, ErrorEvent{Kind: ErrorConfig, Detail: ErrNoOccurrence.Error()})
		return ErrNoOccurrence
	}
	s.armLocked(next)
	return nil
}

// armLocked arms the single timer for the given instant. Call with
// s.mu held and no timer armed.
func (s *Service) armLocked(at time.Time) {
	s.ver++
	v := s.ver
	s.next = at

	delay := at.Sub(s.nowFn())
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, func() { s.onTimer(v) })
	s.armedCount.Add(1)

	s.log.Debug("reminder armed", logx.Time("next", at), logx.Duration("in", delay))
	s.publish(eventbus.TopicReminderArmed, ArmedEvent{At: at})
}

// cancelTimerLocked stops and releases the pending timer, if any, and
// invalidates in-flight callbacks. Call with s.mu held.
func (s *Service) cancelTimerLocked() {
	if s.timer != nil {
		_ = s.timer.Stop()
		s.timer = nil
		s.releasedCount.Add(1)
	}
	// Bump even without a live timer handle: a callback may already be
	// past Stop() and must see a stale generation.
	s.ver++
	s.next = time.Time{}
}

// onTimer is the production fire handler.
func (s *Service) onTimer(v uint64) {
	s.mu.Lock()
	if v != s.ver || !s.settings.Enabled {
		// Stale timer: cancellation raced the callback, or the service
		// was disabled in between. Expected, not an error.
		s.mu.Unlock()
		s.log.Debug("stale reminder timer skipped")
		s.publish(eventbus.TopicReminderSkipped, nil)
		return
	}
	// Consume the fired timer.
	s.timer = nil
	s.releasedCount.Add(1)
	s.next = time.Time{}
	s.fireAndRearmLocked(context.Background(), false)
}

// fireAndRearmLocked delivers the reminder and re-arms the next
// occurrence. Called with s.mu held; the lock is released around the
// delivery call and the method returns unlocked.
func (s *Service) fireAndRearmLocked(ctx context.Context, manual bool) {
	msg := s.settings.Message
	verAtFire := s.ver
	d := s.deliverer
	timeout := s.deliverTimeout
	s.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, timeout)
	err := d.Deliver(dctx, msg)
	cancel()

	now := s.nowFn()
	ev := FiredEvent{At: now, Message: msg, Manual: manual, OK: err == nil}
	if err != nil {
		ev.Error = err.Error()
		// Delivery failure does not stop the loop: the next occurrence
		// is the retry, so a later permission grant resumes delivery.
		s.log.Warn("reminder delivery failed", logx.Err(err), logx.Bool("manual", manual))
		s.publish(eventbus.TopicReminderError, ErrorEvent{Kind: ErrorDelivery, Detail: err.Error()})
	} else {
		s.log.Info("reminder fired", logx.Bool("manual", manual))
	}

	s.mu.Lock()
	// Re-arm only if nobody reconfigured or disabled while the lock was
	// released for delivery; their call already owns the schedule.
	if s.ver == verAtFire && s.settings.Enabled {
		if next, ok := s.settings.Window.Next(now, s.settings.Interval); ok {
			s.armLocked(next)
			ev.NextAt = next
		} else {
			s.next = time.Time{}
			s.log.Warn("window admits no occurrence after fire; reminders parked")
			s.publish(eventbus.TopicReminderError, ErrorEvent{Kind: ErrorConfig, Detail: ErrNoOccurrence.Error()})
		}
	}
	s.mu.Unlock()

	s.publish(eventbus.TopicReminderFired, ev)
}

func (s *Service) publish(topic string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Topic: topic, Time: s.nowFn(), Data: data})
}
