// Package telegram is the Telegram transport: it delivers reminder
// texts to the configured chat and exposes the small command surface
// that drives the scheduler.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "remindbot/pkg/logx"
)

const textLimit = 4096

type Config struct {
	Token       string
	ChatID      int64
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// SendText posts text to the chat, chunked to Telegram's message limit.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range splitText(text, textLimit) {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if _, err := a.bot.Send(chat, chunk, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			return err
		}
	}
	return nil
}

// Start begins long polling. The control commands must be registered
// before Start.
func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.runMu.Unlock()

	// Stop telebot when the app context ends.
	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()

	go func() {
		a.log.Info("polling started")
		// Start blocks until Stop() is called.
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
}

func (a *Adapter) Stop(ctx context.Context) {
	_ = ctx
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if !wasRunning {
		return
	}
	// telebot Stop is expected to be fast; run it async just in case
	// and keep shutdown snappy even mid long-poll.
	done := make(chan struct{})
	go func() {
		a.bot.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func splitText(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var out []string
	for len(s) > limit {
		cut := limit
		// Prefer breaking on a newline inside the window.
		if i := strings.LastIndexByte(s[:limit], '\n'); i > 0 {
			cut = i + 1
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
