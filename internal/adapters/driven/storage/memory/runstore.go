package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure RunStatsStore implements the interface.
var _ driven.RunStatsStore = (*RunStatsStore)(nil)

// RunStatsStore is an in-memory implementation of driven.RunStatsStore.
type RunStatsStore struct {
	mu   sync.RWMutex
	runs []domain.RunStats
}

// NewRunStatsStore creates a new in-memory run store.
func NewRunStatsStore() *RunStatsStore {
	return &RunStatsStore{}
}

// Start appends a running run.
func (s *RunStatsStore) Start(_ context.Context, stats *domain.RunStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.RunID == stats.RunID {
			return fmt.Errorf("%w: run %s already recorded", domain.ErrInvalidInput, stats.RunID)
		}
	}
	s.runs = append(s.runs, *stats)
	return nil
}

// Finish finalises a running run. A run is finalised once.
func (s *RunStatsStore) Finish(_ context.Context, stats *domain.RunStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].RunID != stats.RunID {
			continue
		}
		if s.runs[i].Finished() {
			return fmt.Errorf("%w: run %s already finished", domain.ErrInvalidInput, stats.RunID)
		}
		s.runs[i] = *stats
		return nil
	}
	return domain.ErrNotFound
}

// LastCompleted returns the most recent completed run of a job.
func (s *RunStatsStore) LastCompleted(_ context.Context, jobName string) (*domain.RunStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *domain.RunStats
	for i := range s.runs {
		r := s.runs[i]
		if r.JobName != jobName || r.Status != domain.RunCompleted {
			continue
		}
		if last == nil || r.FinishedAt.After(last.FinishedAt) {
			last = &r
		}
	}
	if last == nil {
		return nil, domain.ErrNotFound
	}
	return last, nil
}

// List returns the most recent runs, newest first.
func (s *RunStatsStore) List(_ context.Context, limit int) ([]domain.RunStats, error) {
	s.mu.RLock()
	out := append([]domain.RunStats(nil), s.runs...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
