package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/services/reminder"
	logx "remindbot/pkg/logx"
)

// Controller is the slice of the app the bot commands drive.
type Controller interface {
	EnableReminders() error
	DisableReminders()
	TestReminder(ctx context.Context) error
	ReminderStatus() reminder.Snapshot
}

// RegisterCommands wires /enable, /disable, /status and /test. Only the
// configured chat may use them; anything else is ignored.
func (a *Adapter) RegisterCommands(ctrl Controller) {
	handle := func(route string, fn func(ctx context.Context, c tele.Context) error) {
		a.bot.Handle(route, func(c tele.Context) error {
			if c.Chat() == nil || c.Chat().ID != a.cfg.ChatID {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := fn(ctx, c); err != nil {
				a.log.Warn("command failed", logx.String("cmd", route), logx.Err(err))
				return c.Send("error: " + err.Error())
			}
			return nil
		})
	}

	handle("/enable", func(_ context.Context, c tele.Context) error {
		if err := ctrl.EnableReminders(); err != nil {
			if errors.Is(err, reminder.ErrNoOccurrence) {
				return c.Send("enabled, but the active window is empty; no reminder scheduled")
			}
			return err
		}
		return c.Send(statusText(ctrl.ReminderStatus()))
	})

	handle("/disable", func(_ context.Context, c tele.Context) error {
		ctrl.DisableReminders()
		return c.Send("reminders disabled")
	})

	handle("/status", func(_ context.Context, c tele.Context) error {
		return c.Send(statusText(ctrl.ReminderStatus()))
	})

	handle("/test", func(ctx context.Context, c tele.Context) error {
		if err := ctrl.TestReminder(ctx); err != nil {
			return err
		}
		return c.Send("test reminder sent")
	})

	handle("/help", func(_ context.Context, c tele.Context) error {
		return c.Send(strings.Join([]string{
			"/enable - start recurring reminders",
			"/disable - stop recurring reminders",
			"/status - show schedule state",
			"/test - fire one reminder now",
		}, "\n"))
	})
}

func statusText(snap reminder.Snapshot) string {
	if !snap.Settings.Enabled {
		return "reminders are disabled"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "reminders every %s between %s and %s",
		snap.Settings.Interval, snap.Settings.Window.Start, snap.Settings.Window.End)
	if !snap.Settings.Window.Weekends {
		b.WriteString(", weekdays only")
	}
	if snap.Armed {
		fmt.Fprintf(&b, "\nnext: %s", snap.NextFireAt.Format("Mon 15:04"))
	} else {
		b.WriteString("\nnothing scheduled (empty window)")
	}
	return b.String()
}
