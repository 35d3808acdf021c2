package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Dev-PGVAA/tg-group-bot/internal/bot"
	"github.com/Dev-PGVAA/tg-group-bot/internal/bot/tasks"
	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
	"github.com/Dev-PGVAA/tg-group-bot/internal/forwarder"
	"github.com/Dev-PGVAA/tg-group-bot/internal/metrics"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
	"github.com/Dev-PGVAA/tg-group-bot/internal/telegram"
)

func newForwarderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forwarder",
		Short: "Relay posts from the monitored channels into the group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			return runForwarder(cmd.Context(), a)
		},
	}
}

func runForwarder(ctx context.Context, a *app) error {
	cfg, log := a.cfg, a.log

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	sink := errsink.New(cfg.Messages.ErrorDigestHeader, cfg.Reports.ErrorDigestLimit, loc)

	st, err := store.Open(cfg, log)
	if err != nil {
		log.Error("Failed to open store", "driver", cfg.Store.Driver, "error", err)
		return err
	}
	defer st.Close()

	m := metrics.New(cfg.Forwarder.MetricsListen != "")
	backend := telegram.NewForwarderBackend(cfg.Forwarder.Token, cfg.Forwarder, log)
	engine := forwarder.New(backend, st, sink, m, log, forwarder.OptionsFromConfig(cfg))

	var sched *bot.Scheduler
	if cfg.Forwarder.Token != "" {
		// a send-only client for the operator digest
		tg, err := telegram.NewTelegramBot(cfg.Forwarder.Token, log, tgbot.WithSkipGetMe())
		if err != nil {
			return err
		}
		taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
			Logger: log,
			Config: cfg,
			Sender: telegram.NewSender(tg, log),
			Sink:   sink,
		})
		if sched, err = bot.NewScheduler(log, &cfg.Scheduler, loc, taskMap); err != nil {
			return err
		}
	}

	runner := bot.RunnerFunc(func(ctx context.Context) error {
		if cfg.Forwarder.MetricsListen != "" {
			go serveMetrics(ctx, cfg.Forwarder.MetricsListen, m, log)
		}
		return engine.Run(ctx)
	})

	err = bot.NewBot(log, "forwarder", runner, sched).Run(ctx)
	if err != nil && forwarder.IsFatal(err) {
		log.Error("Forwarder credential problem, not retrying", "error", err)
	}
	return err
}

// serveMetrics exposes the forwarder's metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, m metrics.Provider, log *slog.Logger) {
	h := metrics.Handler(m)
	if h == nil {
		return
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(h))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics listener failed", "error", err)
	}
}
