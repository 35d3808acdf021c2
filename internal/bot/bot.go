// Package bot orchestrates a groupbot process: the Telegram listener or
// forwarding engine runs next to the task scheduler until shutdown.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-running component. Run returns nil after ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Bot represents one process and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	name      string
	listener  Runner
	scheduler *Scheduler
}

// NewBot creates a process orchestrator for listener and scheduler.
func NewBot(logger *slog.Logger, name string, listener Runner, scheduler *Scheduler) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator", "bot", name),
		name:      name,
		listener:  listener,
		scheduler: scheduler,
	}
}

// Run starts the listener and the scheduler, handling graceful shutdown on
// context cancellation. A listener that stops by itself stops the process.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := b.listener.Run(gCtx)
		if err != nil {
			return fmt.Errorf("%s listener: %w", b.name, err)
		}
		if gCtx.Err() == nil {
			b.logger.Warn("Listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("%s listener stopped unexpectedly", b.name)
		}
		return nil
	})

	if b.scheduler != nil {
		g.Go(func() error {
			if err := b.scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
