package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production [Store] backed by the documents and segments
// tables. All methods are safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store on top of an existing connection pool.
// The pool is owned by the caller.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// GetDocument implements [Store].
func (s *Postgres) GetDocument(ctx context.Context, documentID int64) (Document, error) {
	const q = `
		SELECT document_id, title, COALESCE(speaker, ''), status
		FROM   documents
		WHERE  document_id = $1`

	var d Document
	err := s.pool.QueryRow(ctx, q, documentID).Scan(&d.ID, &d.Title, &d.Speaker, &d.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get document %d: %w", documentID, err)
	}
	return d, nil
}

// ListSegments implements [Store]. It first selects vetted segments with a
// translation; when that set is empty it falls back to every segment of the
// document so a not-yet-vetted document can still be aligned.
func (s *Postgres) ListSegments(ctx context.Context, documentID int64) ([]Segment, error) {
	const vettedQ = `
		SELECT segment_id, document_id, segment_order, source_text,
		       COALESCE(translation, ''), is_vetted
		FROM   segments
		WHERE  document_id = $1
		  AND  is_vetted
		  AND  translation IS NOT NULL
		ORDER  BY segment_order`

	segs, err := s.querySegments(ctx, vettedQ, documentID)
	if err != nil {
		return nil, err
	}
	if len(segs) > 0 {
		return segs, nil
	}

	const allQ = `
		SELECT segment_id, document_id, segment_order, source_text,
		       COALESCE(translation, ''), is_vetted
		FROM   segments
		WHERE  document_id = $1
		ORDER  BY segment_order`

	return s.querySegments(ctx, allQ, documentID)
}

func (s *Postgres) querySegments(ctx context.Context, q string, documentID int64) ([]Segment, error) {
	rows, err := s.pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("docstore: list segments for document %d: %w", documentID, err)
	}
	segs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Segment, error) {
		var seg Segment
		err := row.Scan(&seg.ID, &seg.DocumentID, &seg.Order, &seg.Text, &seg.Translation, &seg.Vetted)
		return seg, err
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: scan segments: %w", err)
	}
	return segs, nil
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
