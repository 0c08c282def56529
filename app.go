package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/config"
	"github.com/matt0x6f/garybot/internal/events"
	"github.com/matt0x6f/garybot/internal/handlers"
	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/logger"
	"github.com/matt0x6f/garybot/internal/notify"
	"github.com/matt0x6f/garybot/internal/plugin"
	"github.com/matt0x6f/garybot/internal/storage"
	"github.com/matt0x6f/garybot/internal/workers"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg           *config.Config
	storage       *storage.Storage
	eventBus      *events.EventBus
	session       *irc.Session
	pluginManager *plugin.Manager
	handlerOpts   handlers.Options
}

// NewApp opens storage and builds the session. Nothing touches the network
// until Run.
func NewApp(cfg *config.Config) (*App, error) {
	stor, err := storage.NewStorage(cfg.Storage.Path, cfg.Storage.BufferSize, cfg.Storage.FlushInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eventBus := events.NewEventBus()
	if cfg.Notify {
		notify.New(cfg.Bot.Nick).Register(eventBus)
	}

	pluginMgr := plugin.NewManager(cfg.Bot.Nick, cfg.Bot.Channel)
	pluginMgr.Subscribe(eventBus)

	return &App{
		cfg:           cfg,
		storage:       stor,
		eventBus:      eventBus,
		session:       irc.NewSession(cfg.SessionConfig(), eventBus),
		pluginManager: pluginMgr,
	}, nil
}

// Run connects, serves the channel until the shutdown signal or ctx is
// cancelled, then tears everything down. Cancellation is not an error.
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()

	a.pluginManager.Load(ctx, a.cfg.Plugins)

	pool := workers.NewPool(ctx, a.cfg.Workers.Size, a.cfg.Workers.Queue, nil)
	defer a.drain(pool)

	runner, err := a.buildRunner(ctx, pool)
	if err != nil {
		return err
	}

	// ReceiveLine has no context, closing the transport is what unblocks it
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			a.session.Close()
		case <-stop:
		}
	}()

	if err := a.session.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to start session: %w", err)
	}

	err = runner.Run(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) buildRunner(ctx context.Context, pool *workers.Pool) (*bot.Runner, error) {
	var triggers bot.Triggers
	if err := handlers.Register(ctx, &triggers, a.cfg, a.storage, a.handlerOpts); err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}
	if err := a.pluginManager.Register(&triggers); err != nil {
		return nil, fmt.Errorf("failed to register plugins: %w", err)
	}

	sessionCfg := a.session.Config()
	dispatcher, err := bot.NewDispatcher(sessionCfg.Nick, triggers, pool, a.storage)
	if err != nil {
		return nil, err
	}
	logger.Log.Info().
		Int("commands", len(triggers.Commands)).
		Int("patterns", len(triggers.Patterns)).
		Bool("mention", triggers.Mention != nil).
		Msg("Trigger table ready")

	return bot.NewRunner(a.session, bot.NewClassifier(sessionCfg), dispatcher, a.storage, sessionCfg.AdminNick), nil
}

// drain gives in-flight handlers a bounded grace period. Handlers still
// running afterwards may fail to send because the session is closed.
func (a *App) drain(pool *workers.Pool) {
	a.session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Workers.DrainTimeout)
	defer cancel()
	if err := pool.Drain(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Log.Warn().Err(err).Msg("Failed to drain handlers")
	}
}

func (a *App) shutdown() {
	logger.Log.Info().Msg("Shutdown initiated")

	if err := a.pluginManager.Close(); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to close plugins")
	}

	// Let notifications for the final session events go out
	waitDone := make(chan struct{})
	go func() {
		a.eventBus.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		logger.Log.Warn().Msg("Timeout waiting for event subscribers, continuing shutdown")
	}

	if err := a.storage.Close(); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to close storage")
	}
	logger.Log.Info().Msg("Shutdown complete")
}
