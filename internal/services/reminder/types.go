package reminder

import (
	"context"
	"errors"
	"time"

	"remindbot/internal/clock"
)

// Deliverer is the single capability through which reminders reach the
// user. Concrete transports (Telegram, console) live elsewhere.
type Deliverer interface {
	Deliver(ctx context.Context, message string) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, message string) error

func (f DelivererFunc) Deliver(ctx context.Context, message string) error {
	return f(ctx, message)
}

// Settings is the caller-owned reminder configuration, passed by value.
type Settings struct {
	Enabled  bool
	Interval time.Duration
	Window   clock.Window
	Message  string
}

// ErrNoOccurrence reports a window that admits no future occurrence
// (e.g. start after end). The service parks until reconfigured.
var ErrNoOccurrence = errors.New("reminder: window admits no future occurrence")

// ErrDisabledSettings is returned by Enable when the supplied settings
// carry Enabled == false.
var ErrDisabledSettings = errors.New("reminder: settings not enabled")

// ErrorKind classifies reported failures.
type ErrorKind string

const (
	ErrorConfig   ErrorKind = "config"
	ErrorDelivery ErrorKind = "delivery"
)

// FiredEvent is published on eventbus.TopicReminderFired after each
// delivery attempt.
type FiredEvent struct {
	At      time.Time
	Message string
	Manual  bool
	OK      bool
	Error   string
	NextAt  time.Time // zero when the loop did not re-arm
}

// ErrorEvent is published on eventbus.TopicReminderError.
type ErrorEvent struct {
	Kind   ErrorKind
	Detail string
}

// ArmedEvent is published on eventbus.TopicReminderArmed whenever a new
// timer is armed.
type ArmedEvent struct {
	At time.Time
}

// Snapshot is a point-in-time view for status display.
type Snapshot struct {
	Settings   Settings
	Armed      bool
	NextFireAt time.Time // zero when not armed

	// TimersArmed/TimersReleased instrument the single-timer invariant:
	// armed minus released is the number of live timers and never
	// exceeds one.
	TimersArmed    uint64
	TimersReleased uint64
}
