package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// iterateBatch is the keyset page size of Iterate.
const iterateBatch = 500

// Verify interface compliance
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore implements driven.RecordStore using PostgreSQL.
type RecordStore struct {
	db *DB
}

const recordColumns = `kind, serial_number, title, case_number, decision_date, decision_type,
	court_name, court_code, court_provenance, category_name, category_code, category_provenance,
	holding_text, summary_text, full_text, ruling_text, reasoning_text, remarks,
	reference_articles, reference_cases, search_text, updated_at`

// Upsert stores or replaces a record keyed by kind and serial number.
func (s *RecordStore) Upsert(ctx context.Context, r *domain.CanonicalRecord) error {
	if r == nil || r.SerialNumber == "" || !r.Kind.Valid() {
		return domain.ErrInvalidInput
	}

	articles, err := json.Marshal(nonNil(r.ReferenceArticles))
	if err != nil {
		return fmt.Errorf("marshalling reference articles: %w", err)
	}
	cases, err := json.Marshal(nonNil(r.ReferenceCases))
	if err != nil {
		return fmt.Errorf("marshalling reference cases: %w", err)
	}

	updatedAt := s.db.now().UTC()
	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (kind, serial_number) DO UPDATE SET
			title = EXCLUDED.title,
			case_number = EXCLUDED.case_number,
			decision_date = EXCLUDED.decision_date,
			decision_type = EXCLUDED.decision_type,
			court_name = EXCLUDED.court_name,
			court_code = EXCLUDED.court_code,
			court_provenance = EXCLUDED.court_provenance,
			category_name = EXCLUDED.category_name,
			category_code = EXCLUDED.category_code,
			category_provenance = EXCLUDED.category_provenance,
			holding_text = EXCLUDED.holding_text,
			summary_text = EXCLUDED.summary_text,
			full_text = EXCLUDED.full_text,
			ruling_text = EXCLUDED.ruling_text,
			reasoning_text = EXCLUDED.reasoning_text,
			remarks = EXCLUDED.remarks,
			reference_articles = EXCLUDED.reference_articles,
			reference_cases = EXCLUDED.reference_cases,
			search_text = EXCLUDED.search_text,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		string(r.Kind),
		r.SerialNumber,
		r.Title,
		r.CaseNumber,
		NullString(r.DecisionDateString()),
		NullString(r.DecisionType),
		NullString(r.CourtName),
		NullString(r.CourtCode),
		NullString(string(r.CourtProvenance)),
		NullString(r.CategoryName),
		NullString(r.CategoryCode),
		NullString(string(r.CategoryProvenance)),
		NullString(r.HoldingText),
		NullString(r.SummaryText),
		NullString(r.FullText),
		NullString(r.RulingText),
		NullString(r.ReasoningText),
		NullString(r.Remarks),
		string(articles),
		string(cases),
		NullString(r.SearchText),
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}

	r.UpdatedAt = updatedAt
	return nil
}

// Get retrieves a record by key.
func (s *RecordStore) Get(ctx context.Context, key domain.RecordKey) (*domain.CanonicalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE kind = $1 AND serial_number = $2`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, string(key.Kind), key.SerialNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// Iterate calls fn for every record of a kind, in numeric serial order.
func (s *RecordStore) Iterate(ctx context.Context, kind domain.DocumentKind, fn func(*domain.CanonicalRecord) error) error {
	after := ""
	for {
		batch, err := s.page(ctx, kind, after)
		if err != nil {
			return err
		}
		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		if len(batch) < iterateBatch {
			return nil
		}
		after = batch[len(batch)-1].SerialNumber
	}
}

func (s *RecordStore) page(ctx context.Context, kind domain.DocumentKind, after string) ([]*domain.CanonicalRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM records
		WHERE kind = $1 AND (length(serial_number), serial_number) > ($2, $3)
		ORDER BY length(serial_number), serial_number
		LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query, string(kind), len(after), after, iterateBatch)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	batch := make([]*domain.CanonicalRecord, 0, iterateBatch)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return batch, nil
}

// Count returns the number of records of a kind.
func (s *RecordStore) Count(ctx context.Context, kind domain.DocumentKind) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE kind = $1", string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func scanRecord(row scanner) (*domain.CanonicalRecord, error) {
	var r domain.CanonicalRecord
	var decisionDate sql.NullTime
	var decisionType, courtName, courtCode, courtProv sql.NullString
	var categoryName, categoryCode, categoryProv sql.NullString
	var holding, summary, full, ruling, reasoning, remarks, searchText sql.NullString
	var articles, cases []byte

	err := row.Scan(
		&r.Kind,
		&r.SerialNumber,
		&r.Title,
		&r.CaseNumber,
		&decisionDate,
		&decisionType,
		&courtName,
		&courtCode,
		&courtProv,
		&categoryName,
		&categoryCode,
		&categoryProv,
		&holding,
		&summary,
		&full,
		&ruling,
		&reasoning,
		&remarks,
		&articles,
		&cases,
		&searchText,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	r.DecisionDate = TimeValue(decisionDate)
	r.DecisionType = decisionType.String
	r.CourtName = courtName.String
	r.CourtCode = courtCode.String
	r.CourtProvenance = domain.Provenance(courtProv.String)
	r.CategoryName = categoryName.String
	r.CategoryCode = categoryCode.String
	r.CategoryProvenance = domain.Provenance(categoryProv.String)
	r.HoldingText = holding.String
	r.SummaryText = summary.String
	r.FullText = full.String
	r.RulingText = ruling.String
	r.ReasoningText = reasoning.String
	r.Remarks = remarks.String
	r.SearchText = searchText.String
	r.UpdatedAt = r.UpdatedAt.UTC()

	if err := json.Unmarshal(articles, &r.ReferenceArticles); err != nil {
		return nil, fmt.Errorf("unmarshaling reference articles: %w", err)
	}
	if err := json.Unmarshal(cases, &r.ReferenceCases); err != nil {
		return nil, fmt.Errorf("unmarshaling reference cases: %w", err)
	}
	if len(r.ReferenceArticles) == 0 {
		r.ReferenceArticles = nil
	}
	if len(r.ReferenceCases) == 0 {
		r.ReferenceCases = nil
	}
	return &r, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
