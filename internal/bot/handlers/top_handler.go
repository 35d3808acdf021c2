package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewTopHandler returns a handler for /top.
func NewTopHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil {
			return
		}

		lines := []string{deps.Config.Messages.TopHeader}
		for _, t := range deps.Store.TopTotals(ctx, deps.Config.Records.TopLimit) {
			lines = append(lines, fmt.Sprintf("%s — %d кг", t.User, int(t.Total)))
		}

		if _, err := deps.Messenger.SendText(ctx, msg.Chat.ID, deps.replyThread(msg), strings.Join(lines, "\n"), nil); err != nil {
			deps.report(ctx, update, "Failed to send top", err)
		}
	}
}

// NewTableHandler returns a handler for /table.
func NewTableHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil {
			return
		}

		png, err := deps.Renderer.Table(deps.Store.Records(ctx))
		if err != nil {
			deps.report(ctx, update, "Failed to render table", err)
			return
		}
		if err := deps.Messenger.SendPNG(ctx, msg.Chat.ID, deps.replyThread(msg), "records.png", png, deps.Config.Messages.TableCaption); err != nil {
			deps.report(ctx, update, "Failed to send table", err)
		}
	}
}

// NewErrorsHandler returns the admin /errors handler, which delivers the
// pending error digest immediately.
func NewErrorsHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		if err := deps.FlushErrors(ctx); err != nil {
			deps.Logger.WarnContext(ctx, "Error digest not delivered", "error", err)
		}
	}
}
