package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingEntryStore = (*EntryStore)(nil)

// EntryStore implements driven.EmbeddingEntryStore using PostgreSQL.
type EntryStore struct {
	db *DB
}

// Put stores entries in one transaction, replacing those with the same key
// and generation.
func (s *EntryStore) Put(ctx context.Context, entries ...domain.EmbeddingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embedding_entries (kind, generation, serial_number, model_identifier, text_type, position, preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kind, generation, serial_number, model_identifier, text_type) DO UPDATE SET
			position = EXCLUDED.position,
			preview = EXCLUDED.preview
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, string(e.Kind), e.Generation, e.SerialNumber, e.ModelIdentifier,
			string(e.TextType), e.Position, NullString(e.SourceTextPreview)); err != nil {
			return fmt.Errorf("saving entry %s: %w", e.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// List returns the entries of a generation ordered by position.
func (s *EntryStore) List(ctx context.Context, kind domain.DocumentKind, generation int64) ([]domain.EmbeddingEntry, error) {
	query := `
		SELECT kind, generation, serial_number, model_identifier, text_type, position, preview
		FROM embedding_entries
		WHERE kind = $1 AND generation = $2
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, string(kind), generation)
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
func (s *EntryStore) DeleteGeneration(ctx context.Context, kind domain.DocumentKind, generation int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM embedding_entries WHERE kind = $1 AND generation = $2", string(kind), generation)
	if err != nil {
		return fmt.Errorf("deleting generation: %w", err)
	}
	return nil
}

// CurrentGeneration returns the active generation of a kind, or 0.
func (s *EntryStore) CurrentGeneration(ctx context.Context, kind domain.DocumentKind) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx,
		"SELECT generation FROM index_generations WHERE kind = $1", string(kind)).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading generation: %w", err)
	}
	return gen, nil
}

// SetCurrentGeneration marks a generation active.
func (s *EntryStore) SetCurrentGeneration(ctx context.Context, kind domain.DocumentKind, generation int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_generations (kind, generation) VALUES ($1, $2)
		ON CONFLICT (kind) DO UPDATE SET generation = EXCLUDED.generation
	`, string(kind), generation)
	if err != nil {
		return fmt.Errorf("saving generation: %w", err)
	}
	return nil
}
