package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindDocumentBySlugOrNumber resolves a document by its id or its normalized
// SFS number. Returns (nil, nil) when no document matches; callers decide
// whether that is a 404.
func (s *PostgresStore) FindDocumentBySlugOrNumber(ctx context.Context, idOrNumber string) (*LegalDocument, error) {
	const query = `
		SELECT id, document_number, title, full_text, COALESCE(html, ''), status, kind,
		       base_law_id, effective_date, publication_date, created_at
		FROM legal_documents
		WHERE id = $1 OR document_number = $1
	`
	var doc LegalDocument
	err := s.db.QueryRowContext(ctx, query, idOrNumber).Scan(
		&doc.ID,
		&doc.DocumentNumber,
		&doc.Title,
		&doc.FullText,
		&doc.HTML,
		&doc.Status,
		&doc.Kind,
		&doc.BaseLawID,
		&doc.EffectiveDate,
		&doc.PublicationDate,
		&doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup document %s: %w", idOrNumber, err)
	}
	return &doc, nil
}

// ListBaseSections returns the parsed original section set of a base law,
// in document position order.
func (s *PostgresStore) ListBaseSections(ctx context.Context, documentID string) ([]DocumentSection, error) {
	const query = `
		SELECT document_id, COALESCE(chapter, 0), section, body, position
		FROM document_sections
		WHERE document_id = $1
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list base sections: %w", err)
	}
	defer rows.Close()

	var sections []DocumentSection
	for rows.Next() {
		var section DocumentSection
		if err := rows.Scan(&section.DocumentID, &section.Chapter, &section.Section, &section.Body, &section.Position); err != nil {
			return nil, fmt.Errorf("scan base section: %w", err)
		}
		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate base sections: %w", err)
	}
	return sections, nil
}

// ListAmendments returns every amendment of a base law with its section
// changes nested, changes ordered by document position. The returned order of
// amendments is incidental; chronological ordering is the version package's
// responsibility.
func (s *PostgresStore) ListAmendments(ctx context.Context, baseLawID string) ([]Amendment, error) {
	const amendmentsQuery = `
		SELECT id, document_number, base_law_id, effective_date
		FROM legal_documents
		WHERE kind = 'amendment' AND base_law_id = $1
	`
	rows, err := s.db.QueryContext(ctx, amendmentsQuery, baseLawID)
	if err != nil {
		return nil, fmt.Errorf("list amendments: %w", err)
	}
	defer rows.Close()

	var amendments []Amendment
	index := make(map[string]int)
	for rows.Next() {
		var amendment Amendment
		if err := rows.Scan(&amendment.ID, &amendment.DocumentNumber, &amendment.BaseLawID, &amendment.EffectiveDate); err != nil {
			return nil, fmt.Errorf("scan amendment: %w", err)
		}
		index[amendment.ID] = len(amendments)
		amendments = append(amendments, amendment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate amendments: %w", err)
	}
	if len(amendments) == 0 {
		return nil, nil
	}

	const changesQuery = `
		SELECT sc.id, sc.amendment_id, COALESCE(sc.chapter, 0), sc.section,
		       sc.change_type, sc.new_text, sc.raw_length, sc.position
		FROM section_changes sc
		JOIN legal_documents a ON a.id = sc.amendment_id
		WHERE a.base_law_id = $1
		ORDER BY sc.amendment_id, sc.position
	`
	changeRows, err := s.db.QueryContext(ctx, changesQuery, baseLawID)
	if err != nil {
		return nil, fmt.Errorf("list section changes: %w", err)
	}
	defer changeRows.Close()

	for changeRows.Next() {
		var change SectionChange
		if err := changeRows.Scan(
			&change.ID,
			&change.AmendmentID,
			&change.Chapter,
			&change.Section,
			&change.ChangeType,
			&change.NewText,
			&change.RawLength,
			&change.Position,
		); err != nil {
			return nil, fmt.Errorf("scan section change: %w", err)
		}
		if i, ok := index[change.AmendmentID]; ok {
			amendments[i].Changes = append(amendments[i].Changes, change)
		}
	}
	if err := changeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate section changes: %w", err)
	}

	return amendments, nil
}
