package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]domain.SyncCheckpoint
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]domain.SyncCheckpoint),
	}
}

// Save stores or updates a checkpoint.
func (s *CheckpointStore) Save(_ context.Context, cp domain.SyncCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.JobName] = cp
	return nil
}

// Get retrieves the checkpoint of a job.
func (s *CheckpointStore) Get(_ context.Context, jobName string) (*domain.SyncCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[jobName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cp, nil
}

// Delete removes the checkpoint of a job.
func (s *CheckpointStore) Delete(_ context.Context, jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, jobName)
	return nil
}
