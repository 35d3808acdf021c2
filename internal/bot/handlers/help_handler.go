package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

// helpHandler processes the /help command using injected dependencies.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil {
		log.WarnContext(ctx, "Help handler received update with nil message", "update_id", update.ID)
		return
	}

	msg := update.Message
	if _, err := h.deps.Messenger.SendText(ctx, msg.Chat.ID, h.deps.replyThread(msg), h.deps.Config.Messages.Help, nil); err != nil {
		h.deps.report(ctx, update, "Failed to send help message", err)
		return
	}
	log.DebugContext(ctx, "Sent help message", "chat_id", msg.Chat.ID)
}
