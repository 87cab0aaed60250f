package models

import "time"

// RunStatus is the terminal state of one monitor run.
type RunStatus string

const (
	RunStatusNoActivity   RunStatus = "no_activity"
	RunStatusNotified     RunStatus = "notified"
	RunStatusNotifyFailed RunStatus = "notify_failed"
	RunStatusFailed       RunStatus = "failed"
	RunStatusDryRun       RunStatus = "dry_run"
)

// Run records the outcome of one monitor run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Fetched    int
	Notified   int
	StateSaved bool
	Error      string
}
