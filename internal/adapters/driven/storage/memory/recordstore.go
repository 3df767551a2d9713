package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[domain.RecordKey]domain.CanonicalRecord
	now     func() time.Time
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[domain.RecordKey]domain.CanonicalRecord),
		now:     time.Now,
	}
}

// Upsert stores or replaces a record.
func (s *RecordStore) Upsert(_ context.Context, record *domain.CanonicalRecord) error {
	if record == nil || record.SerialNumber == "" || !record.Kind.Valid() {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := cloneRecord(record)
	rec.UpdatedAt = s.now()
	record.UpdatedAt = rec.UpdatedAt
	s.records[rec.Key()] = rec
	return nil
}

// Get retrieves a record by key.
func (s *RecordStore) Get(_ context.Context, key domain.RecordKey) (*domain.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneRecord(&rec)
	return &out, nil
}

// Iterate calls fn for every record of a kind in serial order.
func (s *RecordStore) Iterate(ctx context.Context, kind domain.DocumentKind, fn func(*domain.CanonicalRecord) error) error {
	s.mu.RLock()
	batch := make([]domain.CanonicalRecord, 0, len(s.records))
	for k, rec := range s.records {
		if k.Kind == kind {
			batch = append(batch, cloneRecord(&rec))
		}
	}
	s.mu.RUnlock()

	sort.Slice(batch, func(i, j int) bool {
		return serialLess(batch[i].SerialNumber, batch[j].SerialNumber)
	})
	for i := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&batch[i]); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records of a kind.
func (s *RecordStore) Count(_ context.Context, kind domain.DocumentKind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.records {
		if k.Kind == kind {
			n++
		}
	}
	return n, nil
}

// serialLess orders numeric serials numerically and others lexically.
func serialLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func cloneRecord(r *domain.CanonicalRecord) domain.CanonicalRecord {
	out := *r
	out.ReferenceArticles = append([]domain.ReferenceArticle(nil), r.ReferenceArticles...)
	out.ReferenceCases = append([]domain.ReferenceCase(nil), r.ReferenceCases...)
	return out
}
