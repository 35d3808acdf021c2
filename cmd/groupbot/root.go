package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/logger"
)

// app carries what every subcommand shares.
type app struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

// load reads the configuration and installs the logger.
func (a *app) load() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", a.configPath, "error", err)
		return err
	}
	a.cfg = cfg
	a.log = logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	a.log.Debug("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON, "config", cfg.Path)
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "groupbot",
		Short:         "Telegram group automation: channel forwarder, records bot and their supervisor",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath, "path to the configuration file")

	root.AddCommand(
		newSupervisorCmd(a),
		newForwarderCmd(a),
		newRecordsCmd(a),
		newCtlCmd(a),
	)
	return root
}
