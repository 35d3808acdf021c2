package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TriggerPrefix starts the name of every manual report request file.
const TriggerPrefix = "report_trigger"

// sendReport renders the records table into the group's forward topic.
func sendReport(ctx context.Context, deps TaskDeps, caption string) error {
	png, err := deps.Renderer.Table(deps.Records.Records(ctx))
	if err != nil {
		return fmt.Errorf("render records: %w", err)
	}
	tg := deps.Config.Telegram
	if err := deps.Sender.SendPNG(ctx, tg.GroupID, tg.ForwardTopic, "records.png", png, caption); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

// newRecordsReportTask posts the periodic records table.
func newRecordsReportTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", RecordsReport)

	return func(ctx context.Context) error {
		caption := fmt.Sprintf(deps.Config.Messages.AutoReportCaption, deps.now().Format("2006-01-02"))
		if err := sendReport(ctx, deps, caption); err != nil {
			if deps.Sink != nil {
				deps.Sink.Reportf("Auto report failed: %v", err)
			}
			return err
		}
		log.InfoContext(ctx, "Auto report sent")
		return nil
	}
}

// pendingTriggers lists the request files in dir.
func pendingTriggers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), TriggerPrefix) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// newReportTriggerTask sends one manual report for any number of pending
// request files, then consumes them. Files stay in place when sending fails.
func newReportTriggerTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", ReportTrigger)

	return func(ctx context.Context) error {
		files, err := pendingTriggers(deps.Config.Reports.RequestsDir)
		if err != nil {
			return fmt.Errorf("list report requests: %w", err)
		}
		if len(files) == 0 {
			return nil
		}

		caption := fmt.Sprintf(deps.Config.Messages.ManualReportCap, deps.now().Format("2006-01-02 15:04"))
		if err := sendReport(ctx, deps, caption); err != nil {
			if deps.Sink != nil {
				deps.Sink.Reportf("Manual report failed: %v", err)
			}
			return err
		}

		for _, f := range files {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				log.WarnContext(ctx, "Failed to remove report request", "file", f, "error", err)
			}
		}
		log.InfoContext(ctx, "Manual report sent", "requests", len(files))
		return nil
	}
}
