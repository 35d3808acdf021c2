package forwarder

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	maxTextRunes    = 4096
	maxCaptionRunes = 1024
)

// HandleEvent runs one inbound event through the relay pipeline. It never
// panics outward; failures end up in the log and the error sink.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic in event handler", "panic", r, "stack", string(debug.Stack()))
			e.sink.Report(fmt.Sprintf("Forwarder handler panic: %v", r))
		}
	}()

	e.eventCount++
	if e.eventCount%e.opts.RefreshEvery == 0 {
		e.refreshMonitoredSet(ctx)
	}

	if ev.IsOutgoing || (e.selfID != 0 && ev.SenderID == e.selfID) {
		return
	}

	if ev.SourceChatID == e.opts.DestChatID {
		if isChannelsCommand(ev.Text) {
			e.handleCommand(ctx, ev)
		}
		return
	}

	if _, ok := e.isMonitored(ev.SourceChatID); !ok {
		return
	}

	if ev.Text == "" && ev.Media == nil {
		e.logger.Debug("Skipping message without text or supported media", "chat_id", ev.SourceChatID)
		e.metrics.IncForwardFailure("unsupported")
		return
	}

	label := ev.Label()
	logger := e.logger.With("channel", label, "chat_id", ev.SourceChatID, "message_id", ev.MessageID)
	payload := e.buildPayload(ev)

	err := e.send(ctx, payload)
	var rl *RateLimitError
	if errors.As(err, &rl) {
		secs := int(rl.RetryAfter.Seconds())
		logger.Warn("Flood wait", "retry_after", rl.RetryAfter)
		e.sink.Report(fmt.Sprintf("Forwarder FloodWait %ds: %s", secs, label))
		e.metrics.IncForwardFailure("flood_wait")

		if e.opts.MaxFloodWait > 0 && rl.RetryAfter > e.opts.MaxFloodWait {
			logger.Warn("Flood wait too long, message dropped", "max", e.opts.MaxFloodWait)
			return
		}
		if err := e.sleep(ctx, rl.RetryAfter); err != nil {
			return
		}
		err = e.send(ctx, payload)
		if err != nil {
			logger.Error("Retry after flood wait failed, message dropped", "error", err)
			e.sink.Report(fmt.Sprintf("Forwarder dropped message from %s after FloodWait: %v", label, err))
			e.metrics.IncForwardFailure("dropped")
			return
		}
	} else if err != nil {
		logger.Error("Failed to forward", "error", err)
		e.sink.Report(fmt.Sprintf("Forwarder send error from %s: %v", label, err))
		e.metrics.IncForwardFailure("send_error")
		return
	}

	if !e.store.AppendStat(ctx, label) {
		logger.Warn("Failed to record forward stat")
	}
	e.metrics.IncForward(label)
	logger.Info("Forwarded")
}

// send delivers p, retrying once without the thread when the thread was
// the problem.
func (e *Engine) send(ctx context.Context, p Payload) error {
	err := e.backend.Send(ctx, p)
	if err != nil && p.ThreadID != 0 && errors.Is(err, ErrThreadNotFound) {
		e.logger.Warn("Destination thread rejected, sending without it", "thread_id", p.ThreadID, "error", err)
		p.ThreadID = 0
		err = e.backend.Send(ctx, p)
	}
	return err
}

// buildPayload appends the attribution footer, truncating the original
// body so the footer always fits.
func (e *Engine) buildPayload(ev Event) Payload {
	footer := fmt.Sprintf(e.opts.Messages.ForwardFooter, ev.Link())
	limit := maxTextRunes
	if ev.Media != nil {
		limit = maxCaptionRunes
	}

	return Payload{
		ChatID:   e.opts.DestChatID,
		ThreadID: e.opts.DestThreadID,
		Text:     fitWithFooter(ev.Text, footer, limit),
		Media:    ev.Media,
		Silent:   true,
	}
}

func fitWithFooter(body, footer string, limit int) string {
	footerRunes := []rune(footer)
	if len(footerRunes) >= limit {
		return string(footerRunes[:limit])
	}
	room := limit - len(footerRunes)
	bodyRunes := []rune(body)
	if len(bodyRunes) > room {
		body = strings.TrimRightFunc(string(bodyRunes[:room-1]), func(r rune) bool { return r == ' ' || r == '\n' }) + "…"
	}
	return body + footer
}
