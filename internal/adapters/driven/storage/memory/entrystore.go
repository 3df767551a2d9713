package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure EmbeddingEntryStore implements the interface.
var _ driven.EmbeddingEntryStore = (*EmbeddingEntryStore)(nil)

type generationKey struct {
	kind       domain.DocumentKind
	generation int64
}

// EmbeddingEntryStore is an in-memory implementation of driven.EmbeddingEntryStore.
type EmbeddingEntryStore struct {
	mu          sync.RWMutex
	entries     map[generationKey]map[domain.EmbeddingKey]domain.EmbeddingEntry
	generations map[domain.DocumentKind]int64
}

// NewEmbeddingEntryStore creates a new in-memory entry store.
func NewEmbeddingEntryStore() *EmbeddingEntryStore {
	return &EmbeddingEntryStore{
		entries:     make(map[generationKey]map[domain.EmbeddingKey]domain.EmbeddingEntry),
		generations: make(map[domain.DocumentKind]int64),
	}
}

// Put stores entries, replacing those with the same key and generation.
func (s *EmbeddingEntryStore) Put(_ context.Context, entries ...domain.EmbeddingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		gk := generationKey{kind: e.Kind, generation: e.Generation}
		m, ok := s.entries[gk]
		if !ok {
			m = make(map[domain.EmbeddingKey]domain.EmbeddingEntry)
			s.entries[gk] = m
		}
		m[e.Key()] = e
	}
	return nil
}

// List returns the entries of a generation ordered by position.
func (s *EmbeddingEntryStore) List(_ context.Context, kind domain.DocumentKind, generation int64) ([]domain.EmbeddingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.entries[generationKey{kind: kind, generation: generation}]
	out := make([]domain.EmbeddingEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// DeleteGeneration removes the entries of a generation.
func (s *EmbeddingEntryStore) DeleteGeneration(_ context.Context, kind domain.DocumentKind, generation int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, generationKey{kind: kind, generation: generation})
	return nil
}

// CurrentGeneration returns the active generation of a kind, or 0.
func (s *EmbeddingEntryStore) CurrentGeneration(_ context.Context, kind domain.DocumentKind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[kind], nil
}

// SetCurrentGeneration marks a generation active.
func (s *EmbeddingEntryStore) SetCurrentGeneration(_ context.Context, kind domain.DocumentKind, generation int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[kind] = generation
	return nil
}
