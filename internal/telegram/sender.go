package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// API is the subset of *bot.Bot used by Sender and the forwarder backend.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// IsThreadError reports whether Telegram rejected a message because of its
// message_thread_id.
func IsThreadError(err error) bool {
	if err == nil || !errors.Is(err, bot.ErrorBadRequest) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "thread not found") || strings.Contains(msg, "topic_closed") ||
		strings.Contains(msg, "topic_deleted") || strings.Contains(msg, "message thread")
}

// Sender sends into a chat thread and falls back to the chat itself when
// the thread is gone.
type Sender struct {
	api    API
	logger *slog.Logger
}

// NewSender wraps api.
func NewSender(api API, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{api: api, logger: logger.With("component", "sender")}
}

// SendText sends text and returns the new message id.
func (s *Sender) SendText(ctx context.Context, chatID int64, threadID int, text string, markup models.ReplyMarkup) (int, error) {
	params := &bot.SendMessageParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Text:            text,
		ReplyMarkup:     markup,
	}
	msg, err := s.api.SendMessage(ctx, params)
	if err != nil && threadID != 0 && IsThreadError(err) {
		s.logger.Warn("Thread rejected, sending to chat", "chat_id", chatID, "thread_id", threadID, "error", err)
		params.MessageThreadID = 0
		msg, err = s.api.SendMessage(ctx, params)
	}
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return msg.ID, nil
}

// SendPNG uploads an image with a caption.
func (s *Sender) SendPNG(ctx context.Context, chatID int64, threadID int, name string, data []byte, caption string) error {
	send := func(thread int) error {
		_, err := s.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          chatID,
			MessageThreadID: thread,
			Photo:           &models.InputFileUpload{Filename: name, Data: bytes.NewReader(data)},
			Caption:         caption,
		})
		return err
	}

	err := send(threadID)
	if err != nil && threadID != 0 && IsThreadError(err) {
		s.logger.Warn("Thread rejected, sending photo to chat", "chat_id", chatID, "thread_id", threadID, "error", err)
		err = send(0)
	}
	if err != nil {
		return fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return nil
}

// Delete removes a message. Failures are logged only.
func (s *Sender) Delete(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := s.api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		s.logger.Debug("Failed to delete message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

// AnswerCallback acknowledges a callback query.
func (s *Sender) AnswerCallback(ctx context.Context, callbackID string) {
	if _, err := s.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}); err != nil {
		s.logger.Debug("Failed to answer callback", "callback_id", callbackID, "error", err)
	}
}
