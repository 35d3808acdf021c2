// Package handlers contains the records bot command, callback and message
// handlers, along with their registration logic and middleware.
package handlers

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that lets only the configured admin user through.
// Other users are ignored silently.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if deps.Config.Telegram.AdminID == 0 || userID != deps.Config.Telegram.AdminID {
				deps.Logger.WarnContext(ctx, "Unauthorized access attempt",
					"middleware", "AdminOnly", "user_id", userID, "chat_id", update.Message.Chat.ID)
				return
			}

			next(ctx, bot, update)
		}
	}
}

// Recover turns a handler panic into a logged error and a digest entry.
func Recover(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					deps.Logger.ErrorContext(ctx, "Handler panicked", "panic", r, "stack", string(debug.Stack()))
					deps.report(ctx, update, "Records bot error", fmt.Errorf("panic: %v", r))
				}
			}()
			next(ctx, bot, update)
		}
	}
}

func updateOrigin(update *models.Update) (chatID, userID int64) {
	if update == nil {
		return 0, 0
	}
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
	case update.CallbackQuery != nil:
		userID = update.CallbackQuery.From.ID
		if m := update.CallbackQuery.Message.Message; m != nil {
			chatID = m.Chat.ID
		}
	}
	return chatID, userID
}

func formatOrigin(chatID, userID int64) string {
	if chatID == 0 && userID == 0 {
		return ""
	}
	return fmt.Sprintf("[chat_id=%d user_id=%d] ", chatID, userID)
}

// displayName is @username when set, else the full name.
func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
