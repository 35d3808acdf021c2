package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/forwarder"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

const healthProbeInterval = 30 * time.Second

// ForwarderBackend implements forwarder.Backend on the Bot API. The bot
// identity receives channel posts of every channel it was added to.
type ForwarderBackend struct {
	token  string
	cfg    config.ForwarderConfig
	logger *slog.Logger

	cache   *freecache.Cache
	limiter *rate.Limiter
	// clientOpts are appended to the bot options built by Connect.
	clientOpts []bot.Option

	mu      sync.Mutex
	api     *bot.Bot
	selfID  int64
	out     chan<- forwarder.Event
	outDone <-chan struct{}
	errs    chan error
}

// NewForwarderBackend creates a backend for the given token. Nothing is
// contacted until Connect.
func NewForwarderBackend(token string, cfg config.ForwarderConfig, logger *slog.Logger) *ForwarderBackend {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.ResolveCacheSizeMB
	if size <= 0 {
		size = 1
	}
	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}
	return &ForwarderBackend{
		token:   token,
		cfg:     cfg,
		logger:  logger.With("component", "forwarder_backend"),
		cache:   freecache.NewCache(size << 20),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Connect creates the bot client and verifies the token with getMe.
func (fb *ForwarderBackend) Connect(ctx context.Context) (int64, error) {
	if strings.TrimSpace(fb.token) == "" {
		return 0, forwarder.ErrMissingCredential
	}

	errs := make(chan error, 16)
	opts := []bot.Option{
		bot.WithDefaultHandler(fb.handleUpdate),
		// updates reach the engine one by one, in polling order
		bot.WithNotAsyncHandlers(),
		bot.WithErrorsHandler(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}),
		bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "channel_post"}),
	}
	b, err := bot.New(fb.token, append(opts, fb.clientOpts...)...)
	if err != nil {
		if errors.Is(err, bot.ErrorUnauthorized) {
			return 0, fmt.Errorf("%w: %v", forwarder.ErrUnauthorized, err)
		}
		return 0, fmt.Errorf("connect: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		if errors.Is(err, bot.ErrorUnauthorized) {
			return 0, fmt.Errorf("%w: %v", forwarder.ErrUnauthorized, err)
		}
		return 0, fmt.Errorf("get me: %w", err)
	}

	fb.mu.Lock()
	fb.api = b
	fb.selfID = me.ID
	fb.errs = errs
	fb.mu.Unlock()

	fb.logger.Info("Forwarder identity verified", "bot_id", me.ID, "username", me.Username)
	return me.ID, nil
}

func (fb *ForwarderBackend) client() (*bot.Bot, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.api == nil {
		return nil, forwarder.ErrDisconnected
	}
	return fb.api, nil
}

// Resolve looks up a channel by @username or numeric id. Results are cached.
func (fb *ForwarderBackend) Resolve(ctx context.Context, identifier string) (forwarder.Entity, error) {
	key := []byte(store.CanonicalIdentifier(identifier))
	if raw, err := fb.cache.Get(key); err == nil {
		var ent forwarder.Entity
		if json.Unmarshal(raw, &ent) == nil {
			return ent, nil
		}
	}

	b, err := fb.client()
	if err != nil {
		return forwarder.Entity{}, err
	}
	chat, err := b.GetChat(ctx, &bot.GetChatParams{ChatID: chatRef(identifier)})
	if err != nil {
		return forwarder.Entity{}, fmt.Errorf("resolve %s: %w", identifier, mapLookupError(err))
	}

	ent := forwarder.Entity{ID: chat.ID, Handle: chat.Username, Title: chat.Title}
	if raw, err := json.Marshal(ent); err == nil {
		_ = fb.cache.Set(key, raw, int(fb.cfg.ResolveCacheTTL.Seconds()))
	}
	return ent, nil
}

// Join verifies membership; a bot cannot join a channel by itself.
func (fb *ForwarderBackend) Join(ctx context.Context, entity forwarder.Entity) error {
	b, err := fb.client()
	if err != nil {
		return err
	}
	member, err := b.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: entity.ID, UserID: fb.selfID})
	if err != nil {
		return mapLookupError(err)
	}
	return membershipError(string(member.Type))
}

// Send delivers one payload, pacing outbound calls with the limiter.
func (fb *ForwarderBackend) Send(ctx context.Context, p forwarder.Payload) error {
	b, err := fb.client()
	if err != nil {
		return err
	}
	if err := fb.limiter.Wait(ctx); err != nil {
		return err
	}

	if p.Media == nil {
		_, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:              p.ChatID,
			MessageThreadID:     p.ThreadID,
			Text:                p.Text,
			DisableNotification: p.Silent,
		})
		return mapSendError(err)
	}

	file := &models.InputFileString{Data: p.Media.FileID}
	switch p.Media.Kind {
	case forwarder.MediaPhoto:
		_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{ChatID: p.ChatID, MessageThreadID: p.ThreadID, Photo: file, Caption: p.Text, DisableNotification: p.Silent})
	case forwarder.MediaVideo:
		_, err = b.SendVideo(ctx, &bot.SendVideoParams{ChatID: p.ChatID, MessageThreadID: p.ThreadID, Video: file, Caption: p.Text, DisableNotification: p.Silent})
	case forwarder.MediaDocument:
		_, err = b.SendDocument(ctx, &bot.SendDocumentParams{ChatID: p.ChatID, MessageThreadID: p.ThreadID, Document: file, Caption: p.Text, DisableNotification: p.Silent})
	case forwarder.MediaAudio:
		_, err = b.SendAudio(ctx, &bot.SendAudioParams{ChatID: p.ChatID, MessageThreadID: p.ThreadID, Audio: file, Caption: p.Text, DisableNotification: p.Silent})
	case forwarder.MediaAnimation:
		_, err = b.SendAnimation(ctx, &bot.SendAnimationParams{ChatID: p.ChatID, MessageThreadID: p.ThreadID, Animation: file, Caption: p.Text, DisableNotification: p.Silent})
	case forwarder.MediaVoice:
		_, err = b.SendVoice(ctx, &bot.SendVoiceParams{ChatID: p.ChatID, MessageThreadID: p.ThreadID, Voice: file, Caption: p.Text, DisableNotification: p.Silent})
	default:
		return fmt.Errorf("unsupported media kind %q", p.Media.Kind)
	}
	return mapSendError(err)
}

// Listen polls for updates until ctx is done. Consecutive polling failures
// beyond the configured threshold end the session with ErrDisconnected.
func (fb *ForwarderBackend) Listen(ctx context.Context, events chan<- forwarder.Event) error {
	b, err := fb.client()
	if err != nil {
		return err
	}

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fb.mu.Lock()
	fb.out = events
	fb.outDone = lctx.Done()
	errs := fb.errs
	fb.mu.Unlock()
	defer func() {
		fb.mu.Lock()
		fb.out = nil
		fb.api = nil
		fb.mu.Unlock()
	}()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		b.Start(lctx)
	}()

	threshold := fb.cfg.DisconnectThreshold
	if threshold <= 0 {
		threshold = config.DefaultForwarderDisconnectThreshold
	}
	probe := time.NewTicker(healthProbeInterval)
	defer probe.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			<-stopped
			return nil
		case <-stopped:
			if ctx.Err() != nil {
				return nil
			}
			return forwarder.ErrDisconnected
		case err := <-errs:
			if errors.Is(err, bot.ErrorUnauthorized) {
				cancel()
				<-stopped
				return fmt.Errorf("%w: %v", forwarder.ErrUnauthorized, err)
			}
			failures++
			fb.logger.Warn("Polling error", "error", err, "consecutive", failures)
			if failures >= threshold {
				cancel()
				<-stopped
				return fmt.Errorf("%w: %d consecutive polling errors: %v", forwarder.ErrDisconnected, failures, err)
			}
		case <-probe.C:
			if _, err := b.GetMe(lctx); err != nil {
				failures++
				fb.logger.Warn("Health probe failed", "error", err, "consecutive", failures)
				if failures >= threshold {
					cancel()
					<-stopped
					return fmt.Errorf("%w: %v", forwarder.ErrDisconnected, err)
				}
				continue
			}
			failures = 0
		}
	}
}

func (fb *ForwarderBackend) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	ev, ok := eventFromUpdate(update, fb.selfIDSnapshot())
	if !ok {
		return
	}

	fb.mu.Lock()
	out, done := fb.out, fb.outDone
	fb.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- ev:
	case <-done:
	case <-ctx.Done():
	}
}

func (fb *ForwarderBackend) selfIDSnapshot() int64 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.selfID
}

// eventFromUpdate converts message and channel_post updates.
func eventFromUpdate(update *models.Update, selfID int64) (forwarder.Event, bool) {
	if update == nil {
		return forwarder.Event{}, false
	}
	msg := update.ChannelPost
	if msg == nil {
		msg = update.Message
	}
	if msg == nil {
		return forwarder.Event{}, false
	}

	ev := forwarder.Event{
		SourceChatID: msg.Chat.ID,
		SourceHandle: msg.Chat.Username,
		SourceTitle:  msg.Chat.Title,
		MessageID:    msg.ID,
		ThreadID:     msg.MessageThreadID,
		Text:         msg.Text,
	}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.IsOutgoing = selfID != 0 && msg.From.ID == selfID
	}

	if media := mediaOf(msg); media != nil {
		ev.Media = media
		ev.Text = msg.Caption
	}
	return ev, true
}

func mediaOf(msg *models.Message) *forwarder.Media {
	switch {
	case len(msg.Photo) > 0:
		return &forwarder.Media{Kind: forwarder.MediaPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID}
	case msg.Video != nil:
		return &forwarder.Media{Kind: forwarder.MediaVideo, FileID: msg.Video.FileID}
	case msg.Animation != nil:
		// animations also carry a document
		return &forwarder.Media{Kind: forwarder.MediaAnimation, FileID: msg.Animation.FileID}
	case msg.Document != nil:
		return &forwarder.Media{Kind: forwarder.MediaDocument, FileID: msg.Document.FileID}
	case msg.Audio != nil:
		return &forwarder.Media{Kind: forwarder.MediaAudio, FileID: msg.Audio.FileID}
	case msg.Voice != nil:
		return &forwarder.Media{Kind: forwarder.MediaVoice, FileID: msg.Voice.FileID}
	}
	return nil
}

// chatRef turns a channel identifier into a Bot API chat_id value.
func chatRef(identifier string) any {
	canonical := store.CanonicalIdentifier(identifier)
	if id, err := strconv.ParseInt(canonical, 10, 64); err == nil {
		return id
	}
	return canonical
}

func membershipError(status string) error {
	switch status {
	case "creator", "administrator", "member", "restricted":
		return forwarder.ErrAlreadyMember
	case "left":
		return forwarder.ErrNotMember
	case "kicked":
		return forwarder.ErrPrivate
	default:
		return fmt.Errorf("unknown membership status %q", status)
	}
}

func mapLookupError(err error) error {
	switch {
	case errors.Is(err, bot.ErrorForbidden):
		return fmt.Errorf("%w: %v", forwarder.ErrPrivate, err)
	case errors.Is(err, bot.ErrorBadRequest), errors.Is(err, bot.ErrorNotFound):
		if strings.Contains(strings.ToLower(err.Error()), "chat not found") {
			return fmt.Errorf("%w: %v", forwarder.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %v", forwarder.ErrPrivate, err)
	}
	return err
}

func mapSendError(err error) error {
	if err == nil {
		return nil
	}
	var flood *bot.TooManyRequestsError
	if errors.As(err, &flood) {
		return &forwarder.RateLimitError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}
	if IsThreadError(err) {
		return fmt.Errorf("%w: %v", forwarder.ErrThreadNotFound, err)
	}
	return err
}
