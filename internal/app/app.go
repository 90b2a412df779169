// Package app wires configuration, logging, storage, the Telegram
// transport and the reminder scheduler into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/observability/pprof"
	"remindbot/internal/services/delivery"
	"remindbot/internal/services/digest"
	"remindbot/internal/services/reminder"
	"remindbot/internal/storage"
	telegram "remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter

	rem  *reminder.Service
	dig  *digest.Service
	prof *pprof.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The transport doubles as the log sink, so it comes first with a
	// bootstrap console logger.
	var adapter *telegram.Adapter
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		adapter, err = telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			ChatID:      cfg.Telegram.ChatID,
			PollTimeout: pollTimeout,
		}, logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
	}

	var sender logx.Sender
	if adapter != nil {
		sender = adapter
	}
	logSvc, log := logx.New(logConfig(cfg), sender)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := storageConfig(cfg.Storage)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	deliverer, err := buildDeliverer(cfg, adapter)
	if err != nil {
		return nil, err
	}

	rem := reminder.New(deliverer, log.With(logx.String("comp", "reminder")), bus)

	dc, err := digestConfig(cfg.Digest)
	if err != nil {
		return nil, err
	}
	var hist digest.History
	if store != nil {
		hist = store
	}
	dig := digest.New(dc, deliverer, hist, log.With(logx.String("comp", "digest")), bus)
	dig.SetNextFireAt(rem.NextFireAt)

	prof := pprof.New(pprofConfig(cfg.Pprof), log.With(logx.String("comp", "pprof")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: adapter,
		rem:     rem,
		dig:     dig,
		prof:    prof,
	}, nil
}

// buildDeliverer assembles the sink stack the scheduler fires into.
// The scheduler only ever sees the combined Deliverer.
func buildDeliverer(cfg *config.Config, adapter *telegram.Adapter) (reminder.Deliverer, error) {
	var sinks []reminder.Deliverer
	if cfg.Delivery.Console {
		sinks = append(sinks, delivery.NewConsole(logx.Stdout()))
	}
	if cfg.Delivery.Telegram {
		if adapter == nil {
			return nil, errors.New("delivery.telegram enabled but telegram.token is not set")
		}
		if cfg.Telegram.ChatID == 0 {
			return nil, errors.New("delivery.telegram enabled but telegram.chat_id is not set")
		}
		sinks = append(sinks, delivery.NewTelegram(adapter, cfg.Telegram.ChatID, cfg.Delivery.RatePerSec))
	}
	if len(sinks) == 0 {
		// Deliveries must go somewhere; fall back to the console.
		sinks = append(sinks, delivery.NewConsole(logx.Stdout()))
	}
	return delivery.NewMulti(sinks...), nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := reminderSettings(cfg.Reminder); err != nil {
			return err
		}
		if _, err := digestConfig(cfg.Digest); err != nil {
			return err
		}
		_, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		return err
	})

	if a.adapter != nil {
		a.adapter.RegisterCommands(a)
		a.adapter.Start(runCtx)
	}

	if err := a.restoreSettings(runCtx); err != nil {
		return err
	}

	if a.store != nil {
		a.wg.Add(1)
		go a.recordFires(runCtx)
	}

	a.wg.Add(1)
	go a.watchConfig(runCtx)

	if err := a.dig.Start(runCtx); err != nil {
		return err
	}
	if err := a.prof.Start(runCtx); err != nil {
		a.log.Warn("pprof unavailable", logx.Err(err))
	}

	a.log.Info("remindbot started")
	return nil
}

// restoreSettings applies the boot settings: the persisted record wins
// over the config file so a /disable survives a restart.
func (a *App) restoreSettings(ctx context.Context) error {
	settings, err := reminderSettings(a.cfgm.Get().Reminder)
	if err != nil {
		return err
	}

	if a.store != nil {
		rec, ok, err := a.store.GetSettings(ctx)
		if err != nil {
			a.log.Warn("stored settings unreadable, using config", logx.Err(err))
		} else if ok {
			if restored, err := settingsFromRecord(rec); err != nil {
				a.log.Warn("stored settings invalid, using config", logx.Err(err))
			} else {
				settings = restored
				a.log.Info("settings restored from storage", logx.Time("updated_at", rec.UpdatedAt))
			}
		}
	}

	if err := a.rem.Reconfigure(settings); err != nil {
		if errors.Is(err, reminder.ErrNoOccurrence) {
			// Parked, not fatal: a reload or /enable with a sane window
			// resumes scheduling.
			a.log.Error("reminder window admits no occurrence at boot")
			return nil
		}
		return err
	}
	return nil
}

// recordFires journals every delivery attempt for the daily digest.
func (a *App) recordFires(ctx context.Context) {
	defer a.wg.Done()
	ch, unsub := a.bus.Subscribe(32, eventbus.TopicReminderFired)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fe, ok := ev.Data.(reminder.FiredEvent)
			if !ok {
				continue
			}
			rec := storage.FireRecord{At: fe.At, Message: fe.Message, Manual: fe.Manual, OK: fe.OK, Error: fe.Error}
			wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.store.AppendFire(wctx, rec); err != nil {
				a.log.Warn("fire record write failed", logx.Err(err))
			}
			cancel()
		}
	}
}

// watchConfig runs the fsnotify watcher and applies committed reloads.
func (a *App) watchConfig(ctx context.Context) {
	defer a.wg.Done()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	ch := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			a.applyReload(ctx, cfg)
		}
	}
}

func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logConfig(cfg))

	settings, err := reminderSettings(cfg.Reminder)
	if err != nil {
		// Validator runs before commit, so this is unexpected.
		a.log.Error("reload carried invalid reminder settings", logx.Err(err))
		return
	}
	if err := a.rem.Reconfigure(settings); err != nil && !errors.Is(err, reminder.ErrNoOccurrence) {
		a.log.Error("reminder reconfigure failed", logx.Err(err))
	}
	a.persistSettings(ctx)

	if dc, err := digestConfig(cfg.Digest); err == nil {
		if err := a.dig.Apply(dc); err != nil {
			a.log.Warn("digest reconfigure failed", logx.Err(err))
		}
	}

	if err := a.prof.Apply(pprofConfig(cfg.Pprof)); err != nil {
		a.log.Warn("pprof reconfigure failed", logx.Err(err))
	}

	a.log.Info("configuration reloaded")
}

func (a *App) persistSettings(ctx context.Context) {
	if a.store == nil {
		return
	}
	rec := settingsRecord(a.rem.Snapshot().Settings, time.Now())
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.store.PutSettings(wctx, rec); err != nil {
		a.log.Warn("settings persist failed", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.prof.Stop(ctx)
	a.dig.Stop(ctx)
	a.rem.Stop(ctx)
	if a.adapter != nil {
		a.adapter.Stop(ctx)
	}
	a.wg.Wait()
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if err := a.logs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("logx close: %w", err))
	}
	return errors.Join(errs...)
}
