// Package delivery provides the concrete sinks behind the reminder
// engine's Deliverer capability. The engine only ever sees the
// interface; transports are composed here.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"remindbot/internal/services/reminder"
)

// Console writes reminders to a local writer. Used headless and in
// development.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Deliver(_ context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "%s ⏰ %s\n", time.Now().Format("15:04:05"), message)
	return err
}

// Multi fans a reminder out to several sinks. Delivery succeeds when at
// least one sink succeeds; the joined errors are returned only when all
// sinks fail.
type Multi struct {
	sinks []reminder.Deliverer
}

func NewMulti(sinks ...reminder.Deliverer) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Deliver(ctx context.Context, message string) error {
	if len(m.sinks) == 0 {
		return errors.New("delivery: no sinks configured")
	}
	var errs []error
	delivered := false
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, message); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}
