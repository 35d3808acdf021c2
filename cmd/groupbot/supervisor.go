package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dev-PGVAA/tg-group-bot/internal/dashboard"
	"github.com/Dev-PGVAA/tg-group-bot/internal/metrics"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
	"github.com/Dev-PGVAA/tg-group-bot/internal/supervisor"
)

func newSupervisorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "supervisor",
		Short: "Run the dashboard and manage the bot processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			return runSupervisor(cmd.Context(), a)
		},
	}
}

func runSupervisor(ctx context.Context, a *app) error {
	log := a.log
	m := metrics.New(a.cfg.Dashboard.Metrics)

	sup, err := supervisor.New(a.cfg.Supervisor, a.cfg.Path, log, m)
	if err != nil {
		log.Error("Failed to create supervisor", "error", err)
		return err
	}

	st, err := store.Open(a.cfg, log)
	if err != nil {
		log.Error("Failed to open store", "driver", a.cfg.Store.Driver, "error", err)
		return err
	}
	defer st.Close()

	srv := dashboard.New(a.cfg, sup, st, m, log)
	sup.Autostart(ctx)

	runErr := srv.Run(ctx)

	// the HTTP server is down; now stop every bot
	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Supervisor.StopTimeout+5*time.Second)
	defer cancel()
	if err := sup.Shutdown(stopCtx); err != nil {
		log.Error("Failed to stop all bots", "error", err)
	}

	if runErr != nil {
		log.Error("Dashboard stopped due to error", "error", runErr)
		return runErr
	}
	log.Info("Supervisor stopped gracefully.")
	return nil
}
