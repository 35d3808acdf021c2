package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Dev-PGVAA/tg-group-bot/internal/render"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

var weightPattern = regexp.MustCompile(`(\d+[.,]?\d*)`)

// otherMovement names a movement whose key is unknown.
const otherMovement = "Другое"

// ParseWeight extracts the first number of text; "," is accepted as the
// decimal separator.
func ParseWeight(text string) (float64, bool) {
	m := weightPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	w, err := strconv.ParseFloat(strings.TrimRight(strings.ReplaceAll(m, ",", "."), "."), 64)
	if err != nil {
		return 0, false
	}
	return w, true
}

// movementKeyboard lays the preset movements out two per row, followed by
// the custom movement button.
func movementKeyboard(deps HandlerDeps) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(deps.Config.Records.Movements)+1)
	for _, mv := range deps.Config.Records.Movements {
		buttons = append(buttons, models.InlineKeyboardButton{Text: mv.Name, CallbackData: silCallbackPrefix + mv.Key})
	}
	buttons = append(buttons, models.InlineKeyboardButton{
		Text:         deps.Config.Messages.CustomMovement,
		CallbackData: silCallbackPrefix + customMovement,
	})

	var rows [][]models.InlineKeyboardButton
	for i := 0; i < len(buttons); i += 2 {
		end := min(i+2, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func movementName(deps HandlerDeps, key string) string {
	for _, mv := range deps.Config.Records.Movements {
		if mv.Key == key {
			return mv.Name
		}
	}
	return otherMovement
}

// NewSilHandler returns a handler for /sil: it offers the movement keyboard
// and starts a fresh dialogue for the user.
func NewSilHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil || msg.From == nil {
			return
		}

		id, err := deps.Messenger.SendText(ctx, msg.Chat.ID, deps.replyThread(msg), deps.Config.Messages.ChooseMovement, movementKeyboard(deps))
		if err != nil {
			deps.report(ctx, update, "Failed to send movement menu", err)
			return
		}
		deps.Sessions.put(msg.From.ID, session{PromptMessageID: []int{id}})
	}
}

// NewMovementCallbackHandler returns a handler for the movement buttons.
func NewMovementCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		cq := update.CallbackQuery
		if cq == nil {
			return
		}
		deps.Messenger.AnswerCallback(ctx, cq.ID)

		msg := cq.Message.Message
		if msg == nil {
			deps.Logger.WarnContext(ctx, "Movement callback on inaccessible message", "user_id", cq.From.ID)
			return
		}

		key := strings.TrimPrefix(cq.Data, silCallbackPrefix)
		prev, _ := deps.Sessions.get(cq.From.ID)
		for _, id := range prev.PromptMessageID {
			deps.Messenger.Delete(ctx, msg.Chat.ID, id)
		}

		sess := session{Movement: key}
		prompt := deps.Config.Messages.AskWeight
		if key == customMovement {
			sess.WaitingForName = true
			prompt = deps.Config.Messages.AskCustomName
		}

		id, err := deps.Messenger.SendText(ctx, msg.Chat.ID, deps.replyThread(msg), prompt, nil)
		if err != nil {
			deps.report(ctx, update, "Failed to send weight prompt", err)
		} else {
			sess.PromptMessageID = []int{id}
		}
		deps.Sessions.put(cq.From.ID, sess)
	}
}

// NewTextHandler returns the handler for free text: the custom movement
// name, then the weight.
func NewTextHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil || msg.From == nil || msg.Text == "" || strings.HasPrefix(msg.Text, "/") {
			return
		}

		sess, ok := deps.Sessions.get(msg.From.ID)
		if !ok {
			return
		}
		text := strings.TrimSpace(msg.Text)

		if sess.WaitingForName {
			sess.CustomName = text
			sess.WaitingForName = false
			id, err := deps.Messenger.SendText(ctx, msg.Chat.ID, deps.replyThread(msg),
				fmt.Sprintf(deps.Config.Messages.AskWeightFor, text), nil)
			if err != nil {
				deps.report(ctx, update, "Failed to send weight prompt", err)
			} else {
				sess.PromptMessageID = []int{id}
			}
			deps.Sessions.put(msg.From.ID, sess)
			return
		}

		if sess.Movement == "" {
			return
		}

		weight, ok := ParseWeight(text)
		if !ok {
			if _, err := deps.Messenger.SendText(ctx, msg.Chat.ID, msg.MessageThreadID, deps.Config.Messages.WeightNotParsed, nil); err != nil {
				deps.report(ctx, update, "Failed to send parse hint", err)
			}
			return
		}

		movement := movementName(deps, sess.Movement)
		if sess.Movement == customMovement {
			movement = otherMovement
			if sess.CustomName != "" {
				movement = sess.CustomName
			}
		}
		user := displayName(msg.From)

		rec, best, outcome := deps.Store.PutRecord(ctx, user, movement, weight)
		if outcome != store.OutcomeAdded {
			deps.report(ctx, update, "Failed to save record", fmt.Errorf("record %s/%s: %s", user, movement, outcome))
			return
		}
		deps.Logger.InfoContext(ctx, "Record saved", "user", user, "movement", movement, "weight", weight, "new_best", best)

		for _, id := range sess.PromptMessageID {
			deps.Messenger.Delete(ctx, msg.Chat.ID, id)
		}
		deps.Sessions.clear(msg.From.ID)

		thread := deps.replyThread(msg)
		weightText := render.FormatWeight(rec.Weight)
		confirm := fmt.Sprintf(deps.Config.Messages.RecordSaved, user, weightText, strings.ToUpper(movement))
		if _, err := deps.Messenger.SendText(ctx, msg.Chat.ID, thread, confirm, nil); err != nil {
			deps.report(ctx, update, "Failed to send confirmation", err)
		}
		if best {
			announce := fmt.Sprintf(deps.Config.Messages.NewRecord, user, weightText, strings.ToUpper(movement))
			if _, err := deps.Messenger.SendText(ctx, msg.Chat.ID, thread, announce, nil); err != nil {
				deps.report(ctx, update, "Failed to announce record", err)
			}
		}
	}
}
