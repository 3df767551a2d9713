package domain

import "time"

// SyncMode selects how a harvesting run chooses its listing window.
type SyncMode string

const (
	// SyncModeFull walks every listing page from page 1.
	SyncModeFull SyncMode = "full"

	// SyncModeIncremental filters listings by a lower date bound.
	SyncModeIncremental SyncMode = "incremental"
)

// JobName returns the checkpoint key for a mode and kind.
func JobName(mode SyncMode, kind DocumentKind) string {
	return string(mode) + ":" + kind.Target()
}

// SyncCheckpoint is the minimal resumable state of an interrupted run.
// It is written after each fully processed listing page.
type SyncCheckpoint struct {
	JobName string

	// PageCursor is an opaque token encoding the last completed page.
	PageCursor string

	LastProcessedDate time.Time
	RunStartedAt      time.Time
}

// RunStatus is the terminal or in-progress state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// RunStats is the append-only audit record of one orchestrator run.
type RunStats struct {
	RunID       string
	JobName     string
	Mode        SyncMode
	Kind        DocumentKind
	Status      RunStatus
	AbortReason string

	TotalSeen      int
	Succeeded      int
	Failed         int
	PagesProcessed int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the run's elapsed time, or zero while running.
func (s *RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Finished reports whether the run has reached a terminal status.
func (s *RunStats) Finished() bool {
	return s.Status == RunCompleted || s.Status == RunAborted
}

// SyncPhase is the orchestrator state-machine position.
type SyncPhase string

const (
	PhaseIdle           SyncPhase = "idle"
	PhaseListingPage    SyncPhase = "listing"
	PhaseProcessingItem SyncPhase = "processing"
	PhaseFinalizing     SyncPhase = "finalizing"
	PhaseDone           SyncPhase = "done"
	PhaseAborted        SyncPhase = "aborted"
)
