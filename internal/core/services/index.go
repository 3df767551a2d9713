package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure IndexManager implements the interface.
var _ driving.IndexService = (*IndexManager)(nil)

// IndexManager owns the vector indexes, one per document kind.
//
// Each index generation is an append-only vector store plus the entries
// mapping embedding keys to positions. Re-inserting a key appends a new
// vector and leaves the old slot as a tombstone; Rebuild writes a fresh
// generation and retires the old one wholesale.
//
// Writers of a kind, sync runs and rebuilds, hold the kind's writer lock and
// call Reload after taking it, so they never append to a stale copy.
type IndexManager struct {
	factory driven.VectorIndexFactory
	entries driven.EmbeddingEntryStore
	records driven.RecordStore
	encoder *Encoder

	lock    driven.RunLock
	lockTTL time.Duration

	mu      sync.Mutex
	indexes map[domain.DocumentKind]*kindIndex
}

// kindIndex is the open generation of one kind.
type kindIndex struct {
	generation int64
	index      driven.VectorIndex
	live       map[domain.EmbeddingKey]domain.EmbeddingEntry
	byPos      map[int64]domain.EmbeddingKey

	// pending entries are written to the entry store on Persist, together
	// with the vectors they point at.
	pending map[domain.EmbeddingKey]domain.EmbeddingEntry
}

func newKindIndex(generation int64, index driven.VectorIndex) *kindIndex {
	return &kindIndex{
		generation: generation,
		index:      index,
		live:       make(map[domain.EmbeddingKey]domain.EmbeddingEntry),
		byPos:      make(map[int64]domain.EmbeddingKey),
		pending:    make(map[domain.EmbeddingKey]domain.EmbeddingEntry),
	}
}

// put makes e the live entry of its key. A position belongs to one key;
// an entry already claiming it is no longer live.
func (k *kindIndex) put(e domain.EmbeddingEntry) bool {
	key := e.Key()
	if old, ok := k.live[key]; ok {
		delete(k.byPos, old.Position)
	}
	displaced := false
	if prev, ok := k.byPos[e.Position]; ok && prev != key {
		delete(k.live, prev)
		displaced = true
	}
	k.live[key] = e
	k.byPos[e.Position] = key
	return displaced
}

// tombstones counts stored slots no live entry points at.
func (k *kindIndex) tombstones() int {
	return max(0, int(k.index.Len())-len(k.byPos))
}

// NewIndexManager creates an index manager. The record store is read by
// Rebuild; the encoder supplies vectors for records.
func NewIndexManager(
	factory driven.VectorIndexFactory,
	entries driven.EmbeddingEntryStore,
	records driven.RecordStore,
	encoder *Encoder,
) *IndexManager {
	return &IndexManager{
		factory: factory,
		entries: entries,
		records: records,
		encoder: encoder,
		indexes: make(map[domain.DocumentKind]*kindIndex),
	}
}

// SetRunLock makes Rebuild take the kind's writer lock for up to ttl.
func (m *IndexManager) SetRunLock(lock driven.RunLock, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	m.lock = lock
	m.lockTTL = ttl
}

// Available reports whether vectors can be produced and stored.
func (m *IndexManager) Available() bool {
	return m != nil && m.factory != nil && m.entries != nil && m.encoder.Available()
}

// Load opens the active generation of a kind, restoring it from storage.
func (m *IndexManager) Load(ctx context.Context, kind domain.DocumentKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.open(ctx, kind)
	return err
}

// Reload discards the cached index of a kind, with any unpersisted appends,
// and opens it again from storage. Another process may have written it.
func (m *IndexManager) Reload(ctx context.Context, kind domain.DocumentKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.forget(kind)
	_, err := m.open(ctx, kind)
	return err
}

// forget closes and drops the cached index of a kind. Callers hold m.mu.
func (m *IndexManager) forget(kind domain.DocumentKind) {
	if ki, ok := m.indexes[kind]; ok {
		if err := ki.index.Close(); err != nil {
			logger.Warn("Close %s index: %v", kind, err)
		}
		delete(m.indexes, kind)
	}
}

// open returns the loaded index of a kind. Callers hold m.mu.
func (m *IndexManager) open(ctx context.Context, kind domain.DocumentKind) (*kindIndex, error) {
	if ki, ok := m.indexes[kind]; ok {
		return ki, nil
	}
	if !m.Available() {
		return nil, domain.ErrVectorIndexUnavailable
	}

	gen, err := m.entries.CurrentGeneration(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("current generation: %w", err)
	}
	if gen == 0 {
		gen = 1
		if err := m.entries.SetCurrentGeneration(ctx, kind, gen); err != nil {
			return nil, fmt.Errorf("set generation: %w", err)
		}
	}

	idx, err := m.factory.Open(ctx, kind, gen, m.encoder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", kind, err)
	}
	if err := idx.Load(ctx); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("load %s index (rebuild may be required): %w", kind, err)
	}
	if idx.Dimensions() != m.encoder.Dimensions() {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %s index has %d, model %s has %d; run rebuild",
			domain.ErrDimensionMismatch, kind, idx.Dimensions(), m.encoder.ModelName(), m.encoder.Dimensions())
	}

	entries, err := m.entries.List(ctx, kind, gen)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("list entries: %w", err)
	}

	ki := newKindIndex(gen, idx)
	dropped, displaced := 0, 0
	for _, e := range entries {
		// Entries past the persisted vectors belong to an unfinished write.
		if e.Position >= idx.Len() {
			dropped++
			continue
		}
		if ki.put(e) {
			displaced++
		}
	}
	if dropped > 0 {
		logger.Warn("%s index: ignored %d entries beyond %d stored vectors", kind, dropped, idx.Len())
	}
	if displaced > 0 {
		logger.Warn("%s index: %d entries share a position with another; run rebuild", kind, displaced)
	}

	logger.Debug("Loaded %s index generation %d: %d vectors, %d live", kind, gen, idx.Len(), len(ki.live))
	m.indexes[kind] = ki
	return ki, nil
}

// Insert stores one vector for an entry, tombstoning any previous slot of
// the same key. The entry's position and generation are assigned here.
func (m *IndexManager) Insert(ctx context.Context, entry domain.EmbeddingEntry, vec []float32) (int64, error) {
	positions, err := m.InsertBatch(ctx, entry.Kind, []domain.EmbeddingEntry{entry}, [][]float32{vec})
	if err != nil {
		return 0, err
	}
	return positions[0], nil
}

// InsertBatch stores vectors for entries of one kind and returns their positions.
func (m *IndexManager) InsertBatch(
	ctx context.Context, kind domain.DocumentKind, entries []domain.EmbeddingEntry, vecs [][]float32,
) ([]int64, error) {
	if len(entries) != len(vecs) {
		return nil, fmt.Errorf("%w: %d entries for %d vectors", domain.ErrInvalidInput, len(entries), len(vecs))
	}
	if len(entries) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ki, err := m.open(ctx, kind)
	if err != nil {
		return nil, err
	}
	for _, v := range vecs {
		if len(v) != ki.index.Dimensions() {
			return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), ki.index.Dimensions())
		}
	}

	first, err := ki.index.Append(ctx, vecs)
	if err != nil {
		return nil, fmt.Errorf("append vectors: %w", err)
	}

	positions := make([]int64, len(entries))
	for i, e := range entries {
		e.Kind = kind
		e.Generation = ki.generation
		e.Position = first + int64(i)
		ki.put(e)
		ki.pending[e.Key()] = e
		positions[i] = e.Position
	}
	return positions, nil
}

// IndexRecord embeds a record's text and inserts it.
// Failures are returned as *domain.IndexError.
func (m *IndexManager) IndexRecord(ctx context.Context, rec *domain.CanonicalRecord) error {
	text, textType := rec.EmbeddingText()
	if text == "" {
		return &domain.IndexError{Key: rec.Key(), Err: fmt.Errorf("%w: no text to embed", domain.ErrInvalidInput)}
	}

	vec, err := m.encoder.Encode(ctx, text)
	if err != nil {
		return &domain.IndexError{Key: rec.Key(), Err: err}
	}

	entry := domain.EmbeddingEntry{
		SerialNumber:      rec.SerialNumber,
		Kind:              rec.Kind,
		ModelIdentifier:   m.encoder.ModelName(),
		TextType:          textType,
		SourceTextPreview: domain.Preview(text),
	}
	if _, err := m.Insert(ctx, entry, vec); err != nil {
		return &domain.IndexError{Key: rec.Key(), Err: err}
	}
	return nil
}

// VectorOf returns the stored vector of a record under the current model.
// A record without one yields domain.ErrNotFound.
func (m *IndexManager) VectorOf(ctx context.Context, key domain.RecordKey) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ki, err := m.open(ctx, key.Kind)
	if err != nil {
		return nil, err
	}
	model := m.encoder.ModelName()
	for k, e := range ki.live {
		if k.SerialNumber == key.SerialNumber && e.ModelIdentifier == model {
			return ki.index.Vector(ctx, e.Position)
		}
	}
	return nil, fmt.Errorf("%w: no vector for %s %s", domain.ErrNotFound, key.Kind, key.SerialNumber)
}

// Query returns up to topK live entries scoring at least minScore, best
// first. Ties are ordered by position. Serials in exclude are skipped.
func (m *IndexManager) Query(
	ctx context.Context, kind domain.DocumentKind, vec []float32, topK int, minScore float64, exclude ...string,
) ([]domain.SimilarityHit, error) {
	if topK <= 0 {
		return []domain.SimilarityHit{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ki, err := m.open(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(vec) != ki.index.Dimensions() {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), ki.index.Dimensions())
	}

	skip := make(map[string]bool, len(exclude))
	for _, s := range exclude {
		skip[s] = true
	}

	total := int(ki.index.Len())
	k := min(topK+ki.tombstones()+len(exclude), total)
	for {
		raw, err := ki.index.Search(ctx, vec, k)
		if err != nil {
			return nil, fmt.Errorf("search %s index: %w", kind, err)
		}
		sort.SliceStable(raw, func(i, j int) bool {
			if raw[i].Similarity != raw[j].Similarity {
				return raw[i].Similarity > raw[j].Similarity
			}
			return raw[i].Position < raw[j].Position
		})

		hits := make([]domain.SimilarityHit, 0, topK)
		seen := make(map[string]bool)
		belowFloor := false
		for _, h := range raw {
			if h.Similarity < minScore {
				belowFloor = true
				break
			}
			key, ok := ki.byPos[h.Position]
			if !ok || skip[key.SerialNumber] || seen[key.SerialNumber] {
				continue
			}
			seen[key.SerialNumber] = true
			hits = append(hits, domain.SimilarityHit{SerialNumber: key.SerialNumber, Kind: kind, Score: h.Similarity})
			if len(hits) == topK {
				break
			}
		}

		// Widen the window when stale slots crowded out live ones.
		if len(hits) == topK || belowFloor || k >= total {
			return hits, nil
		}
		k = min(k*2, total)
	}
}

// Persist flushes every open index and its pending entries.
func (m *IndexManager) Persist(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for kind, ki := range m.indexes {
		if err := m.persist(ctx, ki); err != nil {
			errs = append(errs, fmt.Errorf("persist %s index: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

func (m *IndexManager) persist(ctx context.Context, ki *kindIndex) error {
	if err := ki.index.Persist(ctx); err != nil {
		return err
	}
	if len(ki.pending) == 0 {
		return nil
	}
	batch := make([]domain.EmbeddingEntry, 0, len(ki.pending))
	for _, e := range ki.pending {
		batch = append(batch, e)
	}
	if err := m.entries.Put(ctx, batch...); err != nil {
		return fmt.Errorf("put entries: %w", err)
	}
	ki.pending = make(map[domain.EmbeddingKey]domain.EmbeddingEntry)
	return nil
}

// Rebuild re-embeds every stored record of a kind into a new generation,
// makes it active and drops the old one along with its tombstones.
//
//nolint:gocyclo // Generation swap with sequential steps
func (m *IndexManager) Rebuild(ctx context.Context, kind domain.DocumentKind) (*domain.IndexStats, error) {
	if !m.Available() {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if m.records == nil {
		return nil, errors.New("record store unavailable")
	}

	if m.lock != nil {
		name := domain.WriterLockName(kind)
		ok, err := m.lock.Acquire(ctx, name, m.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, kind)
		}
		defer func() {
			if err := m.lock.Release(context.WithoutCancel(ctx), name); err != nil {
				logger.Warn("Release lock %s: %v", name, err)
			}
		}()
	}

	// The cached generation may predate another process's writes.
	m.mu.Lock()
	m.forget(kind)
	m.mu.Unlock()

	oldGen, err := m.entries.CurrentGeneration(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("current generation: %w", err)
	}
	newGen := oldGen + 1
	logger.Info("Rebuilding %s index as generation %d", kind, newGen)

	idx, err := m.factory.Open(ctx, kind, newGen, m.encoder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("open generation %d: %w", newGen, err)
	}
	// Clear leftovers of an interrupted rebuild.
	if err := idx.Drop(ctx); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("reset generation %d: %w", newGen, err)
	}
	if err := m.entries.DeleteGeneration(ctx, kind, newGen); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("reset generation %d entries: %w", newGen, err)
	}

	ki := newKindIndex(newGen, idx)
	fail := func(err error) (*domain.IndexStats, error) {
		_ = idx.Drop(context.WithoutCancel(ctx))
		_ = idx.Close()
		return nil, err
	}

	var batch []*domain.CanonicalRecord
	skipped := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		entries := make([]domain.EmbeddingEntry, len(batch))
		for i, rec := range batch {
			text, textType := rec.EmbeddingText()
			texts[i] = text
			entries[i] = domain.EmbeddingEntry{
				SerialNumber:      rec.SerialNumber,
				Kind:              kind,
				Generation:        newGen,
				ModelIdentifier:   m.encoder.ModelName(),
				TextType:          textType,
				SourceTextPreview: domain.Preview(text),
			}
		}
		vecs, err := m.encoder.EncodeBatch(ctx, texts)
		if err != nil {
			return err
		}
		first, err := idx.Append(ctx, vecs)
		if err != nil {
			return fmt.Errorf("append vectors: %w", err)
		}
		for i := range entries {
			entries[i].Position = first + int64(i)
			ki.put(entries[i])
			ki.pending[entries[i].Key()] = entries[i]
		}
		batch = batch[:0]
		return nil
	}

	err = m.records.Iterate(ctx, kind, func(rec *domain.CanonicalRecord) error {
		if text, _ := rec.EmbeddingText(); text == "" {
			skipped++
			return nil
		}
		batch = append(batch, rec)
		if len(batch) >= m.encoder.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return fail(fmt.Errorf("rebuild %s: %w", kind, err))
	}
	if err := m.persist(ctx, ki); err != nil {
		return fail(fmt.Errorf("persist generation %d: %w", newGen, err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.entries.SetCurrentGeneration(ctx, kind, newGen); err != nil {
		return fail(fmt.Errorf("activate generation %d: %w", newGen, err))
	}
	old := m.indexes[kind]
	m.indexes[kind] = ki

	if oldGen > 0 {
		m.retire(ctx, kind, oldGen, old)
	}
	if skipped > 0 {
		logger.Warn("Rebuild %s: skipped %d records without text", kind, skipped)
	}
	logger.Info("Rebuilt %s index: %d vectors", kind, idx.Len())
	return m.stats(kind, ki), nil
}

// retire drops a replaced generation. Failures leave orphaned storage
// behind but do not affect the active index.
func (m *IndexManager) retire(ctx context.Context, kind domain.DocumentKind, gen int64, open *kindIndex) {
	ctx = context.WithoutCancel(ctx)

	var idx driven.VectorIndex
	if open != nil {
		idx = open.index
	} else if opened, err := m.factory.Open(ctx, kind, gen, m.encoder.Dimensions()); err == nil {
		idx = opened
	} else {
		logger.Warn("Retire %s generation %d: %v", kind, gen, err)
	}
	if idx != nil {
		if err := idx.Drop(ctx); err != nil {
			logger.Warn("Drop %s generation %d: %v", kind, gen, err)
		}
		_ = idx.Close()
	}
	if err := m.entries.DeleteGeneration(ctx, kind, gen); err != nil {
		logger.Warn("Delete %s generation %d entries: %v", kind, gen, err)
	}
}

// Stats describes the active generation of a kind's index.
func (m *IndexManager) Stats(ctx context.Context, kind domain.DocumentKind) (*domain.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ki, err := m.open(ctx, kind)
	if err != nil {
		return nil, err
	}
	return m.stats(kind, ki), nil
}

func (m *IndexManager) stats(kind domain.DocumentKind, ki *kindIndex) *domain.IndexStats {
	return &domain.IndexStats{
		Kind:        kind,
		Generation:  ki.generation,
		Dimensions:  ki.index.Dimensions(),
		Vectors:     int(ki.index.Len()),
		LiveEntries: len(ki.live),
		Tombstones:  ki.tombstones(),
		Model:       m.encoder.ModelName(),
	}
}

// Close releases every open index without persisting.
func (m *IndexManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for kind, ki := range m.indexes {
		if err := ki.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s index: %w", kind, err))
		}
		delete(m.indexes, kind)
	}
	return errors.Join(errs...)
}
