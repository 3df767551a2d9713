package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// SyncOrchestrator drives harvesting runs.
type SyncOrchestrator interface {
	// Run harvests each requested kind in turn and returns one RunStats per kind.
	// A non-nil error means at least one run was aborted.
	Run(ctx context.Context, req SyncRequest) ([]domain.RunStats, error)

	// Status returns a snapshot of the run for a kind.
	Status(kind domain.DocumentKind) SyncStatus
}

// SyncRequest configures a harvesting invocation.
type SyncRequest struct {
	Mode  domain.SyncMode
	Kinds []domain.DocumentKind

	// Since overrides the incremental lower bound. Ignored for full syncs.
	Since time.Time

	// MaxPages bounds the number of listing pages. Zero means unbounded.
	MaxPages int

	// Display is the listing page size. Zero uses the configured default.
	Display int

	// Resume continues from a saved checkpoint when one exists.
	Resume bool

	// Observer receives progress events. May be nil.
	Observer SyncObserver
}

// SyncObserver receives progress events from a run.
// Calls are made from the orchestrator goroutine.
type SyncObserver interface {
	// OnPage is called after a listing page is fetched.
	// totalPages is zero when the upstream total is unknown.
	OnPage(kind domain.DocumentKind, page, totalPages, items int)

	// OnItem is called after each item completes, with its error if any.
	OnItem(kind domain.DocumentKind, serial string, err error)
}

// SyncStatus is a snapshot of one run's state machine.
type SyncStatus struct {
	Kind    domain.DocumentKind
	Phase   domain.SyncPhase
	Running bool

	Page      int
	Item      int
	Seen      int
	Succeeded int
	Failed    int
}

// Scheduler runs recurring incremental syncs.
type Scheduler interface {
	// Watch registers or updates the recurring task of each kind.
	Watch(ctx context.Context, interval time.Duration, kinds ...domain.DocumentKind) error

	// Start runs due tasks until Stop is called or ctx ends.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for an in-flight run.
	Stop() error
}
