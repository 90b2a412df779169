package app

import (
	"context"
	"errors"

	"remindbot/internal/services/reminder"
)

// The bot command surface. App satisfies telegram.Controller.

func (a *App) EnableReminders() error {
	settings := a.rem.Snapshot().Settings
	settings.Enabled = true
	err := a.rem.Enable(settings)
	if err != nil && !errors.Is(err, reminder.ErrNoOccurrence) {
		return err
	}
	// Persist even when parked so the enabled flag survives a restart.
	a.persistSettings(context.Background())
	return err
}

func (a *App) DisableReminders() {
	a.rem.Disable()
	a.persistSettings(context.Background())
}

// TestReminder fires one reminder through the production delivery path.
// Failures surface through the fired event and the log, not here.
func (a *App) TestReminder(ctx context.Context) error {
	a.rem.FireNow(ctx)
	return nil
}

func (a *App) ReminderStatus() reminder.Snapshot {
	return a.rem.Snapshot()
}
