package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// Sync defaults.
const (
	DefaultDisplay      = 100
	MaxDisplay          = 100
	DefaultEmbedWorkers = 4
	DefaultLockTTL      = 6 * time.Hour

	// IncrementalOverlap is subtracted from the last completed run so
	// late-published decisions are not missed.
	IncrementalOverlap = 24 * time.Hour
)

// SyncSettings tunes the orchestrator.
type SyncSettings struct {
	Display      int
	EmbedWorkers int
	LockTTL      time.Duration
}

// SyncOrchestrator walks listing pages, turns every item into a canonical
// record and keeps the vector index in step.
type SyncOrchestrator struct {
	source      driven.DocumentSource
	normaliser  driven.Normaliser
	records     driven.RecordStore
	checkpoints driven.CheckpointStore
	runs        driven.RunStatsStore
	lock        driven.RunLock
	index       *IndexManager
	settings    SyncSettings
	now         func() time.Time

	// Status tracking
	mu          sync.RWMutex
	activeSyncs map[domain.DocumentKind]*driving.SyncStatus
}

// NewSyncOrchestrator creates a new sync orchestrator.
// The index is optional; without it records are stored but not embedded.
func NewSyncOrchestrator(
	source driven.DocumentSource,
	normaliser driven.Normaliser,
	records driven.RecordStore,
	checkpoints driven.CheckpointStore,
	runs driven.RunStatsStore,
	lock driven.RunLock,
	index *IndexManager,
	settings SyncSettings,
) *SyncOrchestrator {
	if settings.Display <= 0 || settings.Display > MaxDisplay {
		settings.Display = DefaultDisplay
	}
	if settings.EmbedWorkers <= 0 {
		settings.EmbedWorkers = DefaultEmbedWorkers
	}
	if settings.LockTTL <= 0 {
		settings.LockTTL = DefaultLockTTL
	}
	return &SyncOrchestrator{
		source:      source,
		normaliser:  normaliser,
		records:     records,
		checkpoints: checkpoints,
		runs:        runs,
		lock:        lock,
		index:       index,
		settings:    settings,
		now:         time.Now,
		activeSyncs: make(map[domain.DocumentKind]*driving.SyncStatus),
	}
}

// Run harvests each requested kind in turn. Runs after a fatal abort
// (quota, rejected key, cancellation) are not started.
func (o *SyncOrchestrator) Run(ctx context.Context, req driving.SyncRequest) ([]domain.RunStats, error) {
	if len(req.Kinds) == 0 {
		return nil, fmt.Errorf("%w: no document kinds requested", domain.ErrInvalidInput)
	}
	for _, k := range req.Kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: document kind %q", domain.ErrInvalidInput, k)
		}
	}
	switch req.Mode {
	case "":
		req.Mode = domain.SyncModeFull
	case domain.SyncModeFull, domain.SyncModeIncremental:
	default:
		return nil, fmt.Errorf("%w: sync mode %q", domain.ErrInvalidInput, req.Mode)
	}

	var results []domain.RunStats
	var errs []error
	for _, kind := range req.Kinds {
		stats, err := o.runKind(ctx, req, kind)
		if stats != nil {
			results = append(results, *stats)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", kind, err))
			if isFatal(err) || ctx.Err() != nil {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}

// Status returns a snapshot of the run for a kind.
func (o *SyncOrchestrator) Status(kind domain.DocumentKind) driving.SyncStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if status, ok := o.activeSyncs[kind]; ok {
		// Return a copy to avoid race conditions
		return *status
	}

	// Not running - return idle status
	return driving.SyncStatus{Kind: kind, Phase: domain.PhaseIdle}
}

// run carries the mutable state of one kind's run.
type run struct {
	kind     domain.DocumentKind
	job      string
	stats    *domain.RunStats
	cursor   Cursor
	started  time.Time
	observer driving.SyncObserver
}

// runKind performs one harvesting run for a kind.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *SyncOrchestrator) runKind(ctx context.Context, req driving.SyncRequest, kind domain.DocumentKind) (*domain.RunStats, error) {
	job := domain.JobName(req.Mode, kind)

	// 1. Take the run lock
	lockName := domain.WriterLockName(kind)
	if o.lock != nil {
		ok, err := o.lock.Acquire(ctx, lockName, o.settings.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, kind)
		}
		defer func() {
			if err := o.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
				logger.Warn("Release lock %s: %v", lockName, err)
			}
		}()
	}

	// Pick up what other writers stored since this process last looked.
	if o.index.Available() {
		if err := o.index.Reload(ctx, kind); err != nil {
			logger.Warn("Reload %s index: %v", kind, err)
		}
	}

	// 2. Work out where to start
	r := &run{kind: kind, job: job, observer: req.Observer, started: o.now()}
	display := req.Display
	if display <= 0 || display > MaxDisplay {
		display = o.settings.Display
	}
	r.cursor = Cursor{Version: CursorVersion, Page: 0, Display: display}

	resumed := false
	if req.Resume {
		resumed = o.resume(ctx, r)
	}
	if !resumed && req.Mode == domain.SyncModeIncremental {
		since, err := o.incrementalSince(ctx, job, req.Since)
		if err != nil {
			return nil, err
		}
		r.cursor.Since = since
	}

	// 3. Record the run
	r.stats = &domain.RunStats{
		RunID:     uuid.New().String(),
		JobName:   job,
		Mode:      req.Mode,
		Kind:      kind,
		Status:    domain.RunRunning,
		StartedAt: o.now(),
	}
	if err := o.runs.Start(ctx, r.stats); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	// 4. Initialise status tracking
	o.setStatus(kind, &driving.SyncStatus{Kind: kind, Phase: domain.PhaseListingPage, Running: true})

	if r.cursor.Since.IsZero() {
		logger.Info("Starting %s sync for %s at page %d", req.Mode, kind, r.cursor.Page+1)
	} else {
		logger.Info("Starting %s sync for %s at page %d, since %s",
			req.Mode, kind, r.cursor.Page+1, r.cursor.Since.Format(domain.DateLayout))
	}

	// 5. Walk the listing
	exhausted, err := o.walk(ctx, r, req.MaxPages)

	// 6. Finalise
	o.update(kind, func(s *driving.SyncStatus) { s.Phase = domain.PhaseFinalizing })
	finishCtx := context.WithoutCancel(ctx)
	r.stats.FinishedAt = o.now()
	if err != nil {
		r.stats.Status = domain.RunAborted
		r.stats.AbortReason = err.Error()
	} else {
		r.stats.Status = domain.RunCompleted
		if exhausted {
			if derr := o.checkpoints.Delete(finishCtx, job); derr != nil {
				logger.Warn("Delete checkpoint %s: %v", job, derr)
			}
		}
	}
	if ferr := o.runs.Finish(finishCtx, r.stats); ferr != nil {
		logger.Error("Record run finish %s: %v", r.stats.RunID, ferr)
	}

	o.update(kind, func(s *driving.SyncStatus) {
		s.Running = false
		s.Phase = domain.PhaseDone
		if err != nil {
			s.Phase = domain.PhaseAborted
		}
	})

	if err != nil {
		logger.Warn("Sync %s aborted after %d pages: %v", kind, r.stats.PagesProcessed, err)
		return r.stats, fmt.Errorf("%w: %w", domain.ErrRunAborted, err)
	}
	logger.Info("Sync complete for %s: %d seen, %d succeeded, %d failed",
		kind, r.stats.TotalSeen, r.stats.Succeeded, r.stats.Failed)
	return r.stats, nil
}

// resume loads the saved cursor for the job. Reports whether one was found.
func (o *SyncOrchestrator) resume(ctx context.Context, r *run) bool {
	cp, err := o.checkpoints.Get(ctx, r.job)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Read checkpoint %s: %v", r.job, err)
		}
		return false
	}
	c, err := DecodeCursor(cp.PageCursor)
	if err != nil {
		logger.Warn("Checkpoint %s: %v, starting over", r.job, err)
		return false
	}
	r.cursor = *c
	if !cp.RunStartedAt.IsZero() {
		r.started = cp.RunStartedAt
	}
	logger.Info("Resuming %s after page %d", r.job, c.Page)
	return true
}

// incrementalSince picks the listing lower bound of an incremental run.
// A zero result means a full walk.
func (o *SyncOrchestrator) incrementalSince(ctx context.Context, job string, requested time.Time) (time.Time, error) {
	if !requested.IsZero() {
		return requested, nil
	}
	last, err := o.runs.LastCompleted(ctx, job)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("No completed run for %s, walking every page", job)
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last completed run: %w", err)
	}
	return last.FinishedAt.Add(-IncrementalOverlap), nil
}

// walk processes listing pages until the listing is exhausted, the page
// budget is spent or the run must abort. Reports whether the listing was
// exhausted.
//
//nolint:gocognit // Orchestration function coordinating paging and workers
func (o *SyncOrchestrator) walk(ctx context.Context, r *run, maxPages int) (bool, error) {
	for pages := 0; maxPages <= 0 || pages < maxPages; pages++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		page := r.cursor.Page + 1
		o.update(r.kind, func(s *driving.SyncStatus) {
			s.Phase = domain.PhaseListingPage
			s.Page = page
			s.Item = 0
		})

		listing, err := o.source.Listing(ctx, driven.ListingQuery{
			Kind:    r.kind,
			Page:    page,
			Display: r.cursor.Display,
			Since:   r.cursor.Since,
		})
		if err != nil {
			return false, fmt.Errorf("listing page %d: %w", page, err)
		}

		totalPages := 0
		if listing.TotalCount > 0 {
			totalPages = (listing.TotalCount + r.cursor.Display - 1) / r.cursor.Display
		}
		if r.observer != nil {
			r.observer.OnPage(r.kind, page, totalPages, len(listing.Items))
		}
		logger.Debug("%s page %d/%d: %d items", r.kind, page, totalPages, len(listing.Items))

		if len(listing.Items) == 0 {
			return true, nil
		}

		lastDate, err := o.processPage(ctx, r, listing.Items)
		if err != nil {
			return false, err
		}

		if err := o.checkpoint(ctx, r, page, lastDate); err != nil {
			return false, err
		}
		r.stats.PagesProcessed++

		if len(listing.Items) < r.cursor.Display || (totalPages > 0 && page >= totalPages) {
			return true, nil
		}
	}
	logger.Info("Stopped %s after %d pages; resume continues from page %d", r.kind, maxPages, r.cursor.Page+1)
	return false, nil
}

// itemResult is the outcome of one listing item.
type itemResult struct {
	serial string
	record *domain.CanonicalRecord
	err    error
}

// processPage runs every item of a page and waits for their embeddings.
// Returns the latest decision date stored, and an error only when the run
// must abort.
//
//nolint:gocognit,gocyclo // Pipeline orchestration with a worker pool
func (o *SyncOrchestrator) processPage(ctx context.Context, r *run, items []domain.RawFieldMap) (time.Time, error) {
	results := make([]itemResult, 0, len(items))
	embedErrs := make([]error, len(items))
	embed := o.index.Available()

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.settings.EmbedWorkers)

	// An item once started runs to completion under itemCtx, embedding
	// included. Cancellation is checked between items.
	itemCtx := context.WithoutCancel(ctx)

	var abort error
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			abort = err
			break
		}
		o.update(r.kind, func(s *driving.SyncStatus) {
			s.Phase = domain.PhaseProcessingItem
			s.Item = i + 1
		})

		res := itemResult{serial: item.Get(domain.FieldSerialNumber)}
		res.record, res.err = o.processItem(itemCtx, r.kind, item)
		results = append(results, res)

		if res.err != nil {
			if isFatal(res.err) {
				abort = res.err
				break
			}
			continue
		}

		if embed {
			idx := len(results) - 1
			rec := res.record
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				embedErrs[idx] = o.index.IndexRecord(itemCtx, rec)
			}()
		}
	}
	wg.Wait()

	var lastDate time.Time
	for i, res := range results {
		err := res.err
		if err == nil {
			err = embedErrs[i]
		}
		// A fatal error aborts the run; it does not count against the item.
		if err != nil && isFatal(err) && res.record == nil {
			continue
		}

		r.stats.TotalSeen++
		if err != nil {
			r.stats.Failed++
			logger.Warn("%s %s: [%s] %v", r.kind, res.serial, domain.Classify(err), err)
		} else {
			r.stats.Succeeded++
		}
		if res.record != nil && res.record.DecisionDate.After(lastDate) {
			lastDate = res.record.DecisionDate
		}
		o.update(r.kind, func(s *driving.SyncStatus) {
			s.Seen = r.stats.TotalSeen
			s.Succeeded = r.stats.Succeeded
			s.Failed = r.stats.Failed
		})
		if r.observer != nil {
			r.observer.OnItem(r.kind, res.serial, err)
		}
	}

	if abort != nil {
		// Keep vectors of items already stored in step with the entries.
		if embed {
			if err := o.index.Persist(itemCtx); err != nil {
				logger.Warn("Persist index: %v", err)
			}
		}
		return lastDate, abort
	}
	return lastDate, nil
}

// processItem fetches, normalises and stores one listing item.
func (o *SyncOrchestrator) processItem(ctx context.Context, kind domain.DocumentKind, listing domain.RawFieldMap) (*domain.CanonicalRecord, error) {
	serial := listing.Get(domain.FieldSerialNumber)
	if serial == "" {
		return nil, &domain.MissingFieldError{Field: domain.FieldSerialNumber}
	}
	logger.Debug("Processing: %s %s", kind, serial)

	// 1. DETAIL (structured, then page fallback)
	detail, err := o.source.Detail(ctx, kind, serial)
	if err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}

	// 2. NORMALISE (detail wins, listing fills gaps)
	rec, err := o.normaliser.Normalise(detail.Merge(listing))
	if err != nil {
		return nil, fmt.Errorf("normalise: %w", err)
	}

	// 3. STORE
	if err := o.records.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}
	return rec, nil
}

// checkpoint persists the index and records the page as done.
func (o *SyncOrchestrator) checkpoint(ctx context.Context, r *run, page int, lastDate time.Time) error {
	if o.index.Available() {
		if err := o.index.Persist(ctx); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
	}

	r.cursor.Page = page
	cp := domain.SyncCheckpoint{
		JobName:           r.job,
		PageCursor:        r.cursor.Encode(),
		LastProcessedDate: lastDate,
		RunStartedAt:      r.started,
	}
	if err := o.checkpoints.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// isFatal reports whether an error ends the run rather than one item.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrDailyQuotaExceeded) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, context.Canceled)
}

// setStatus sets the sync status for a kind.
func (o *SyncOrchestrator) setStatus(kind domain.DocumentKind, status *driving.SyncStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeSyncs[kind] = status
}

// update mutates the tracked status of a kind.
func (o *SyncOrchestrator) update(kind domain.DocumentKind, fn func(*driving.SyncStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.activeSyncs[kind]; ok {
		fn(s)
	}
}
