package domain

import "time"

// ScheduledTask is a recurring incremental sync of one document kind.
type ScheduledTask struct {
	// ID is the unique identifier for the task, see WatchTaskID.
	ID string

	Kind DocumentKind

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// LastRunID links to the RunStats of the most recent run.
	LastRunID string

	Enabled bool
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// WriterLockName returns the run lock that serialises every writer of a
// kind's records and index: sync runs and index rebuilds.
func WriterLockName(kind DocumentKind) string {
	return "sync:" + kind.Target()
}

// WatchTaskID returns the scheduled task ID for a kind.
func WatchTaskID(kind DocumentKind) string {
	return "watch:" + kind.Target()
}
