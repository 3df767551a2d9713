package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// entryStore implements driven.EmbeddingEntryStore.
type entryStore struct {
	store *Store
}

var _ driven.EmbeddingEntryStore = (*entryStore)(nil)

// Put stores entries in one transaction, replacing those with the same key
// and generation.
func (s *entryStore) Put(ctx context.Context, entries ...domain.EmbeddingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embedding_entries (kind, generation, serial_number, model_identifier, text_type, position, preview)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, generation, serial_number, model_identifier, text_type) DO UPDATE SET
			position = excluded.position,
			preview = excluded.preview
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Kind, e.Generation, e.SerialNumber, e.ModelIdentifier,
			e.TextType, e.Position, nullString(e.SourceTextPreview)); err != nil {
			return fmt.Errorf("saving entry %s: %w", e.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// List returns the entries of a generation ordered by position.
func (s *entryStore) List(ctx context.Context, kind domain.DocumentKind, generation int64) ([]domain.EmbeddingEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT kind, generation, serial_number, model_identifier, text_type, position, preview
		FROM embedding_entries
		WHERE kind = ? AND generation = ?
		ORDER BY position
	`, kind, generation)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.EmbeddingEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.EmbeddingEntry
		var preview sql.NullString
		if err := rows.Scan(&e.Kind, &e.Generation, &e.SerialNumber, &e.ModelIdentifier,
			&e.TextType, &e.Position, &preview); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.SourceTextPreview = preview.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// DeleteGeneration removes the entries of a generation.
func (s *entryStore) DeleteGeneration(ctx context.Context, kind domain.DocumentKind, generation int64) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM embedding_entries WHERE kind = ? AND generation = ?", kind, generation)
	if err != nil {
		return fmt.Errorf("deleting generation: %w", err)
	}
	return nil
}

// CurrentGeneration returns the active generation of a kind, or 0.
func (s *entryStore) CurrentGeneration(ctx context.Context, kind domain.DocumentKind) (int64, error) {
	var gen int64
	err := s.store.db.QueryRowContext(ctx,
		"SELECT generation FROM index_generations WHERE kind = ?", kind).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading generation: %w", err)
	}
	return gen, nil
}

// SetCurrentGeneration marks a generation active.
func (s *entryStore) SetCurrentGeneration(ctx context.Context, kind domain.DocumentKind, generation int64) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO index_generations (kind, generation) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET generation = excluded.generation
	`, kind, generation)
	if err != nil {
		return fmt.Errorf("saving generation: %w", err)
	}
	return nil
}
