package forwarder

import (
	"context"
	"errors"
	"fmt"
)

// reloadChannels re-reads the Channel Set into the engine's copy.
func (e *Engine) reloadChannels(ctx context.Context) []string {
	e.channels = e.store.Channels(ctx)
	e.logger.Debug("Loaded channels", "count", len(e.channels))
	return e.channels
}

// resolveAndJoin makes sure the listener can see the channel. Every
// failure is logged; only actionable ones go to the error sink.
func (e *Engine) resolveAndJoin(ctx context.Context, id string) {
	logger := e.logger.With("channel", id)

	ent, err := e.backend.Resolve(ctx, id)
	if err != nil {
		logger.Warn("Failed to resolve channel", "error", err)
		e.sink.Report(fmt.Sprintf("Forwarder cannot resolve %s: %v", id, err))
		return
	}

	err = e.backend.Join(ctx, ent)
	switch {
	case err == nil:
		logger.Info("Joined channel", "chat_id", ent.ID)
	case errors.Is(err, ErrAlreadyMember):
		logger.Info("Already a member", "chat_id", ent.ID)
	case errors.Is(err, ErrPrivate):
		logger.Warn("Channel is private", "chat_id", ent.ID)
	default:
		logger.Warn("Failed to join channel", "chat_id", ent.ID, "error", err)
		e.sink.Report(fmt.Sprintf("Forwarder cannot join %s: %v", id, err))
	}
}

// refreshMonitoredSet resolves every Channel Set entry and swaps in the
// new set. Entries that fail to resolve are left out until a later refresh.
func (e *Engine) refreshMonitoredSet(ctx context.Context) {
	channels := e.reloadChannels(ctx)
	next := make(map[int64]string, len(channels))
	for _, id := range channels {
		ent, err := e.backend.Resolve(ctx, id)
		if err != nil {
			e.logger.Warn("Cannot resolve channel for monitoring", "channel", id, "error", err)
			continue
		}
		next[ent.ID] = id
	}

	e.monitored.Store(&next)
	e.metrics.SetMonitoredChannels(len(next))
	e.logger.Info("Monitored channels updated", "configured", len(channels), "resolved", len(next))
}

func (e *Engine) isMonitored(chatID int64) (string, bool) {
	id, ok := (*e.monitored.Load())[chatID]
	return id, ok
}
