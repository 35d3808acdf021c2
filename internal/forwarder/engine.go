// Package forwarder relays messages from a dynamic set of source channels
// into one destination chat and thread.
package forwarder

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
	"github.com/Dev-PGVAA/tg-group-bot/internal/metrics"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

// ChannelStore is the part of the store the engine uses.
type ChannelStore interface {
	Channels(ctx context.Context) []string
	AddChannel(ctx context.Context, id string) (string, store.Outcome)
	RemoveChannel(ctx context.Context, id string) (string, store.Outcome)
	AppendStat(ctx context.Context, channel string) bool
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures an Engine.
type Options struct {
	DestChatID       int64
	DestThreadID     int
	RefreshEvery     int
	ReconnectBackoff time.Duration
	MaxFloodWait     time.Duration
	JoinDelay        time.Duration
	Messages         config.MessagesConfig
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DestChatID:       cfg.Telegram.GroupID,
		DestThreadID:     cfg.Telegram.ForwardTopic,
		RefreshEvery:     cfg.Forwarder.RefreshEvery,
		ReconnectBackoff: cfg.Forwarder.ReconnectBackoff,
		MaxFloodWait:     cfg.Forwarder.MaxFloodWait,
		JoinDelay:        cfg.Forwarder.JoinDelay,
		Messages:         cfg.Messages,
	}
}

// Engine owns the channel state of one forwarder process. Events are
// handled one at a time; the monitored set is swapped atomically so a
// reader sees either the old or the new set.
type Engine struct {
	backend Backend
	store   ChannelStore
	sink    errsink.Reporter
	metrics metrics.Provider
	logger  *slog.Logger
	opts    Options
	sleep   SleepFunc

	selfID     int64
	channels   []string
	monitored  atomic.Pointer[map[int64]string]
	eventCount int
}

// New creates an engine. sink and m may be nil.
func New(backend Backend, st ChannelStore, sink errsink.Reporter, m metrics.Provider, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Noop()
	}
	if sink == nil {
		sink = discardSink{}
	}
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = 100
	}
	if opts.ReconnectBackoff <= 0 {
		opts.ReconnectBackoff = 10 * time.Second
	}
	if opts.Messages.ForwardFooter == "" {
		opts.Messages.ForwardFooter = config.DefaultMessages["forward_footer"]
	}

	e := &Engine{
		backend: backend,
		store:   st,
		sink:    sink,
		metrics: m,
		logger:  logger.With("component", "forwarder"),
		opts:    opts,
		sleep:   sleepContext,
	}
	empty := map[int64]string{}
	e.monitored.Store(&empty)
	return e
}

// SetSleep replaces the wait used for flood control and reconnect backoff.
func (e *Engine) SetSleep(fn SleepFunc) { e.sleep = fn }

// Run connects and listens until ctx is done, reconnecting after every
// failure except a fatal credential error.
func (e *Engine) Run(ctx context.Context) error {
	for {
		err := e.session(ctx)
		if ctx.Err() != nil {
			e.logger.Info("Forwarder stopped")
			return nil
		}
		if IsFatal(err) {
			e.logger.Error("Forwarder cannot start", "error", err)
			return err
		}

		e.logger.Warn("Connection lost, reconnecting", "error", err, "backoff", e.opts.ReconnectBackoff)
		e.sink.Report(fmt.Sprintf("Forwarder connection lost: %v", err))
		if err := e.sleep(ctx, e.opts.ReconnectBackoff); err != nil {
			return nil
		}
	}
}

// session runs one connect-resolve-listen sequence.
func (e *Engine) session(ctx context.Context) error {
	selfID, err := e.backend.Connect(ctx)
	if err != nil {
		return err
	}
	e.selfID = selfID
	e.logger.Info("Connected", "self_id", selfID)

	channels := e.reloadChannels(ctx)
	for i, id := range channels {
		if i > 0 && e.opts.JoinDelay > 0 {
			if err := e.sleep(ctx, e.opts.JoinDelay); err != nil {
				return err
			}
		}
		e.resolveAndJoin(ctx, id)
	}
	e.refreshMonitoredSet(ctx)
	e.logger.Info("Forwarder running", "watching", len(*e.monitored.Load()))

	events := make(chan Event, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := e.backend.Listen(gctx, events)
		if err == nil && ctx.Err() == nil {
			err = ErrDisconnected
		}
		return err
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-events:
				// in-flight forwards are not cancelled by a dropped listener
				e.HandleEvent(ctx, ev)
			}
		}
	})
	return g.Wait()
}

// MonitoredIDs returns the current monitored set (chat id to identifier).
func (e *Engine) MonitoredIDs() map[int64]string {
	cur := *e.monitored.Load()
	out := make(map[int64]string, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type discardSink struct{}

func (discardSink) Report(string) {}
