// Package telegram wires go-telegram/bot into groupbot: bot construction,
// handler registration, a thread-tolerant sender and the forwarder backend.
package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/go-telegram/bot"

	"github.com/Dev-PGVAA/tg-group-bot/internal/bot/handlers"
)

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

// chain wraps h so that mw[0] sees the update first.
func chain(h bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// RegisterHandlers installs the named commands and callbacks from
// handlers.RegisterAllCommands, in name order. Free text is not part of the
// set; it reaches the records flow through the bot's default handler.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, set map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return errors.New("register handlers: nil bot")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "commands")

	names := slices.Sorted(maps.Keys(set))
	for _, name := range names {
		h := set[name]
		if h.Handler == nil {
			return fmt.Errorf("register handlers: %s has no handler", name)
		}
		b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, chain(h.Handler, h.Middleware))
		log.Debug("Command registered", "name", name, "pattern", h.Pattern, "middleware", len(h.Middleware))
	}

	log.Info("Commands ready", "names", names)
	return nil
}
