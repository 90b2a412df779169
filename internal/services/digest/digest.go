// Package digest sends a once-a-day summary of reminder activity
// through the same delivery capability the reminders use.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	"remindbot/internal/services/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

type Config struct {
	Enabled bool
	At      clock.TimeOfDay
	TZ      string // IANA TZ; empty means local
}

// History supplies the fire records the digest summarizes.
// storage.Store satisfies it.
type History interface {
	RecentFires(ctx context.Context, since time.Time) ([]storage.FireRecord, error)
}

type Service struct {
	log       logx.Logger
	bus       eventbus.Bus
	deliverer reminder.Deliverer
	hist      History

	// nextFireAt, when set, adds the pending occurrence to the digest.
	nextFireAt func() time.Time

	mu    sync.Mutex
	cfg   Config
	c     *cron.Cron
	entry cron.EntryID
}

func New(cfg Config, d reminder.Deliverer, hist History, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, deliverer: d, hist: hist, log: log, bus: bus}
}

// SetNextFireAt installs an optional provider for the "next reminder"
// line of the digest.
func (s *Service) SetNextFireAt(fn func() time.Time) {
	s.mu.Lock()
	s.nextFireAt = fn
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if !s.cfg.Enabled || s.c != nil {
		return nil
	}
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.TZ); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("digest: invalid timezone %q: %w", tz, err)
		}
		loc = l
	}
	c := cron.New(cron.WithLocation(loc))
	spec := fmt.Sprintf("%d %d * * *", s.cfg.At.Minute, s.cfg.At.Hour)
	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("digest: register %q: %w", spec, err)
	}
	s.c = c
	s.entry = id
	c.Start()
	s.log.Info("digest scheduled", logx.String("at", s.cfg.At.String()), logx.String("tz", loc.String()))
	return nil
}

// Apply replaces the digest schedule at runtime.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.cfg = cfg
	return s.startLocked()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text := s.Compose(ctx, time.Now())
	if err := s.deliverer.Deliver(ctx, text); err != nil {
		s.log.Warn("digest delivery failed", logx.Err(err))
		return
	}
	s.log.Info("digest sent")
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: eventbus.TopicDigestSent, Data: text})
	}
}

// Compose builds the digest text for the 24 hours before now.
func (s *Service) Compose(ctx context.Context, now time.Time) string {
	var fired, failed, manual int
	if s.hist != nil {
		recs, err := s.hist.RecentFires(ctx, now.Add(-24*time.Hour))
		if err != nil {
			s.log.Warn("digest history read failed", logx.Err(err))
		}
		for _, r := range recs {
			switch {
			case r.Manual:
				manual++
			case r.OK:
				fired++
			default:
				failed++
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reminder digest: %d delivered", fired)
	if failed > 0 {
		fmt.Fprintf(&b, ", %d failed", failed)
	}
	if manual > 0 {
		fmt.Fprintf(&b, ", %d manual", manual)
	}
	b.WriteString(" in the last 24h.")

	s.mu.Lock()
	nextFn := s.nextFireAt
	s.mu.Unlock()
	if nextFn != nil {
		if next := nextFn(); !next.IsZero() {
			fmt.Fprintf(&b, " Next reminder at %s.", next.Format("15:04"))
		}
	}
	return b.String()
}
