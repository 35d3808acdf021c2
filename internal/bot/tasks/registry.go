package tasks

import (
	"context"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names as used in scheduler.tasks.
const (
	ErrorDigest      = "error_digest"
	RecordsReport    = "records_report"
	ReportTrigger    = "report_trigger"
	StoreMaintenance = "store_maintenance"
)

// RegisterAllTasks returns the tasks that deps can serve, keyed by the
// name used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	if deps.Sink != nil && deps.Sender != nil {
		tasks[ErrorDigest] = newErrorDigestTask(deps)
	}
	if deps.Records != nil && deps.Renderer != nil && deps.Sender != nil {
		tasks[RecordsReport] = newRecordsReportTask(deps)
		tasks[ReportTrigger] = newReportTriggerTask(deps)
	}
	if deps.Store != nil {
		tasks[StoreMaintenance] = newStoreMaintenanceTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
