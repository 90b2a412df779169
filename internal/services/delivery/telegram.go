package delivery

import (
	"context"

	"golang.org/x/time/rate"
)

// Sender posts a text message to a chat. The Telegram transport adapter
// implements it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Telegram delivers reminders to a single chat, rate limited so a
// misconfigured interval cannot hit Telegram's flood limits.
type Telegram struct {
	sender  Sender
	chatID  int64
	limiter *rate.Limiter
}

func NewTelegram(sender Sender, chatID int64, perSec int) *Telegram {
	if perSec <= 0 {
		perSec = 1
	}
	return &Telegram{
		sender:  sender,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
	}
}

func (t *Telegram) Deliver(ctx context.Context, message string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.sender.SendText(ctx, t.chatID, message)
}
