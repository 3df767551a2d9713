package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// iterateBatch is the page size of Iterate. Rows are not held open while
// the callback runs.
const iterateBatch = 500

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

const recordColumns = `kind, serial_number, title, case_number, decision_date, decision_type,
	court_name, court_code, court_provenance, category_name, category_code, category_provenance,
	holding_text, summary_text, full_text, ruling_text, reasoning_text, remarks,
	reference_articles, reference_cases, search_text, updated_at`

// Upsert stores or replaces a record keyed by kind and serial number.
func (s *recordStore) Upsert(ctx context.Context, r *domain.CanonicalRecord) error {
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

	updatedAt := s.store.now().UTC()
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, serial_number) DO UPDATE SET
			title = excluded.title,
			case_number = excluded.case_number,
			decision_date = excluded.decision_date,
			decision_type = excluded.decision_type,
			court_name = excluded.court_name,
			court_code = excluded.court_code,
			court_provenance = excluded.court_provenance,
			category_name = excluded.category_name,
			category_code = excluded.category_code,
			category_provenance = excluded.category_provenance,
			holding_text = excluded.holding_text,
			summary_text = excluded.summary_text,
			full_text = excluded.full_text,
			ruling_text = excluded.ruling_text,
			reasoning_text = excluded.reasoning_text,
			remarks = excluded.remarks,
			reference_articles = excluded.reference_articles,
			reference_cases = excluded.reference_cases,
			search_text = excluded.search_text,
			updated_at = excluded.updated_at
	`, r.Kind, r.SerialNumber, r.Title, r.CaseNumber, nullString(r.DecisionDateString()), nullString(r.DecisionType),
		nullString(r.CourtName), nullString(r.CourtCode), nullString(string(r.CourtProvenance)),
		nullString(r.CategoryName), nullString(r.CategoryCode), nullString(string(r.CategoryProvenance)),
		nullString(r.HoldingText), nullString(r.SummaryText), nullString(r.FullText),
		nullString(r.RulingText), nullString(r.ReasoningText), nullString(r.Remarks),
		string(articles), string(cases), nullString(r.SearchText), formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}

	r.UpdatedAt = updatedAt
	return nil
}

// Get retrieves a record by key.
func (s *recordStore) Get(ctx context.Context, key domain.RecordKey) (*domain.CanonicalRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM records WHERE kind = ? AND serial_number = ?
	`, key.Kind, key.SerialNumber)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// Iterate calls fn for every record of a kind, in numeric serial order.
func (s *recordStore) Iterate(ctx context.Context, kind domain.DocumentKind, fn func(*domain.CanonicalRecord) error) error {
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

// page returns the next batch of records after the given serial.
func (s *recordStore) page(ctx context.Context, kind domain.DocumentKind, after string) ([]*domain.CanonicalRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE kind = ? AND (length(serial_number) > ? OR (length(serial_number) = ? AND serial_number > ?))
		ORDER BY length(serial_number), serial_number
		LIMIT ?
	`, kind, len(after), len(after), after, iterateBatch)
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
func (s *recordStore) Count(ctx context.Context, kind domain.DocumentKind) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE kind = ?", kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func scanRecord(row scanner) (*domain.CanonicalRecord, error) {
	var r domain.CanonicalRecord
	var decisionDate, decisionType, courtName, courtCode, courtProv sql.NullString
	var categoryName, categoryCode, categoryProv sql.NullString
	var holding, summary, full, ruling, reasoning, remarks, searchText sql.NullString
	var articles, cases string
	var updatedAt sql.NullString

	err := row.Scan(&r.Kind, &r.SerialNumber, &r.Title, &r.CaseNumber, &decisionDate, &decisionType,
		&courtName, &courtCode, &courtProv, &categoryName, &categoryCode, &categoryProv,
		&holding, &summary, &full, &ruling, &reasoning, &remarks,
		&articles, &cases, &searchText, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if decisionDate.Valid {
		d, err := time.Parse(domain.DateLayout, decisionDate.String)
		if err != nil {
			return nil, fmt.Errorf("record %s: decision date %q: %w", r.SerialNumber, decisionDate.String, err)
		}
		r.DecisionDate = d
	}
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
	r.UpdatedAt = parseTime(updatedAt)

	if err := json.Unmarshal([]byte(articles), &r.ReferenceArticles); err != nil {
		return nil, fmt.Errorf("unmarshaling reference articles: %w", err)
	}
	if err := json.Unmarshal([]byte(cases), &r.ReferenceCases); err != nil {
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

// nonNil keeps empty reference lists as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
