package forwarder

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

// isChannelsCommand matches "/channels" and "/channels@botname" with
// optional arguments.
func isChannelsCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.EqualFold(cmd, "/channels")
}

// handleCommand runs /channels in the destination chat and replies in the
// command's thread.
func (e *Engine) handleCommand(ctx context.Context, ev Event) {
	reply := e.ChannelCommand(ctx, ev.Text)

	err := e.send(ctx, Payload{ChatID: ev.SourceChatID, ThreadID: ev.ThreadID, Text: reply})
	if err != nil {
		e.logger.Error("Failed to reply to /channels", "error", err)
		e.sink.Report(fmt.Sprintf("Forwarder /channels reply failed: %v", err))
	}
}

// ChannelCommand executes a /channels command line and returns the reply.
func (e *Engine) ChannelCommand(ctx context.Context, text string) string {
	msgs := e.opts.Messages
	fields := strings.Fields(text)

	if len(fields) == 1 || (len(fields) == 2 && strings.EqualFold(fields[1], "list")) {
		channels := e.reloadChannels(ctx)
		if len(channels) == 0 {
			return msgs.ChannelsEmpty
		}
		var b strings.Builder
		b.WriteString(msgs.ChannelsList)
		for _, ch := range channels {
			b.WriteString("\n• ")
			b.WriteString(ch)
		}
		return b.String()
	}

	if len(fields) < 3 {
		return msgs.ChannelsUsage
	}

	arg := fields[2]
	switch strings.ToLower(fields[1]) {
	case "add":
		id, outcome := e.store.AddChannel(ctx, arg)
		switch outcome {
		case store.OutcomeAdded:
			e.resolveAndJoin(ctx, id)
			e.refreshMonitoredSet(ctx)
			return fmt.Sprintf(msgs.ChannelAdded, id)
		case store.OutcomeAlreadyPresent:
			return fmt.Sprintf(msgs.ChannelAlreadyAdded, id)
		case store.OutcomeFailed:
			return msgs.ChannelsSaveFailed
		default:
			return msgs.ChannelsUsage
		}
	case "remove", "delete":
		id, outcome := e.store.RemoveChannel(ctx, arg)
		switch outcome {
		case store.OutcomeRemoved:
			e.refreshMonitoredSet(ctx)
			return fmt.Sprintf(msgs.ChannelRemoved, id)
		case store.OutcomeNotFound:
			return fmt.Sprintf(msgs.ChannelNotFound, arg)
		case store.OutcomeFailed:
			return msgs.ChannelsSaveFailed
		default:
			return msgs.ChannelsUsage
		}
	default:
		return msgs.ChannelsUsage
	}
}
