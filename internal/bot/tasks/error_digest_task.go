package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
)

// FlushErrors delivers the pending digest to the admin chat now.
func FlushErrors(deps TaskDeps) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		admin := deps.Config.Telegram.AdminID
		if admin == 0 {
			return fmt.Errorf("telegram.admin_id is not configured")
		}
		return deps.Sink.Flush(ctx, func(ctx context.Context, text string) error {
			_, err := deps.Sender.SendText(ctx, admin, 0, text, nil)
			return err
		})
	}
}

// newErrorDigestTask sends the queued errors to the admin. Undelivered
// entries stay queued for the next run.
func newErrorDigestTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", ErrorDigest)
	flush := FlushErrors(deps)

	return func(ctx context.Context) error {
		err := flush(ctx)
		switch {
		case errors.Is(err, errsink.ErrEmpty):
			log.DebugContext(ctx, "No errors to report")
			return nil
		case err != nil:
			return fmt.Errorf("error digest: %w", err)
		}
		log.InfoContext(ctx, "Error digest delivered")
		return nil
	}
}
