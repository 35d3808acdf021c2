package main

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/cobra"

	"github.com/Dev-PGVAA/tg-group-bot/internal/bot"
	"github.com/Dev-PGVAA/tg-group-bot/internal/bot/handlers"
	"github.com/Dev-PGVAA/tg-group-bot/internal/bot/tasks"
	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
	"github.com/Dev-PGVAA/tg-group-bot/internal/logger"
	"github.com/Dev-PGVAA/tg-group-bot/internal/render"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
	"github.com/Dev-PGVAA/tg-group-bot/internal/telegram"
)

func newRecordsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "Run the strength records bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			return runRecords(cmd.Context(), a)
		},
	}
}

func runRecords(ctx context.Context, a *app) error {
	cfg, log := a.cfg, a.log

	token, err := config.RequireToken("telegram.token", cfg.Telegram.Token)
	if err != nil {
		log.Error("Records bot cannot start", "error", err)
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg, log)
	if err != nil {
		log.Error("Failed to open store", "driver", cfg.Store.Driver, "error", err)
		return err
	}
	defer st.Close()

	sink := errsink.New(cfg.Messages.ErrorDigestHeader, cfg.Reports.ErrorDigestLimit, loc)

	// The text handler needs the sender, which needs the bot.
	var textHandler tgbot.HandlerFunc
	tg, err := telegram.NewTelegramBot(token, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if textHandler != nil {
				textHandler(ctx, b, update)
			}
		}),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Telegram polling error", "error", err)
		}),
	)
	if err != nil {
		return err
	}
	sender := telegram.NewSender(tg, log)
	renderer := render.New(cfg.Reports.FontPath, render.DefaultLabels())

	tdeps := tasks.TaskDeps{
		Logger:   log,
		Config:   cfg,
		Sender:   sender,
		Sink:     sink,
		Records:  st,
		Store:    st,
		Renderer: renderer,
	}
	deps := handlers.HandlerDeps{
		Logger:      log,
		Config:      cfg,
		Store:       st,
		Messenger:   sender,
		Renderer:    renderer,
		Sink:        sink,
		Sessions:    handlers.NewSessions(),
		FlushErrors: tasks.FlushErrors(tdeps),
	}
	textHandler = handlers.Recover(deps)(handlers.NewTextHandler(deps))

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(deps)); err != nil {
		log.Error("Failed to register handlers", "error", err)
		return err
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, loc, tasks.RegisterAllTasks(tdeps))
	if err != nil {
		return err
	}

	listener := bot.RunnerFunc(func(ctx context.Context) error {
		tg.Start(ctx)
		return nil
	})
	return bot.NewBot(log, "records", listener, sched).Run(ctx)
}

