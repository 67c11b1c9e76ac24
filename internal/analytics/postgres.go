package analytics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/versecast/internal/align"
)

// Postgres implements [Sink] on a pgx connection pool.
//
// Expected schema:
//
//	CREATE TABLE live_sessions (
//	    id            BIGSERIAL PRIMARY KEY,
//	    document_id   BIGINT NOT NULL,
//	    started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    ended_at      TIMESTAMPTZ,
//	    status        TEXT NOT NULL DEFAULT 'active',
//	    error_message TEXT,
//	    cycles        INT NOT NULL DEFAULT 0,
//	    matched       INT NOT NULL DEFAULT 0,
//	    skipped       INT NOT NULL DEFAULT 0,
//	    avg_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    min_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    max_score     DOUBLE PRECISION NOT NULL DEFAULT 0
//	);
//
//	CREATE TABLE live_session_logs (
//	    id          BIGSERIAL PRIMARY KEY,
//	    session_id  BIGINT NOT NULL REFERENCES live_sessions(id),
//	    at          TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    kind        TEXT NOT NULL,
//	    spoken      TEXT NOT NULL,
//	    buffer_text TEXT NOT NULL,
//	    score       DOUBLE PRECISION NOT NULL,
//	    threshold   DOUBLE PRECISION NOT NULL,
//	    segment_id  BIGINT,
//	    seg_order   INT
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool. The pool's lifecycle belongs to the
// caller.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// StartSession implements [Sink].
func (p *Postgres) StartSession(ctx context.Context, documentID int64) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO live_sessions (document_id) VALUES ($1) RETURNING id`,
		documentID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("analytics: start session for document %d: %w", documentID, err)
	}
	return id, nil
}

// LogEvent implements [Sink]. Matched cycles are logged as "match" rows,
// every jumped-over segment as a "skip" row. Plain rejections are not
// persisted.
func (p *Postgres) LogEvent(ctx context.Context, sessionID int64, ev align.Event) error {
	if !ev.Matched {
		return nil
	}

	if ev.Segment != nil {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO live_session_logs (session_id, kind, spoken, buffer_text, score, threshold, segment_id, seg_order)
			 VALUES ($1, 'match', $2, $3, $4, $5, $6, $7)`,
			sessionID, ev.Spoken, ev.BufferText, ev.Score, ev.Threshold,
			ev.Segment.SegmentID, ev.Segment.Order,
		)
		if err != nil {
			return fmt.Errorf("analytics: log match for session %d: %w", sessionID, err)
		}
	}

	for _, seg := range ev.Skipped {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO live_session_logs (session_id, kind, spoken, buffer_text, score, threshold, segment_id, seg_order)
			 VALUES ($1, 'skip', $2, $3, $4, $5, $6, $7)`,
			sessionID, ev.Spoken, ev.BufferText, ev.Score, ev.Threshold,
			seg.SegmentID, seg.Order,
		)
		if err != nil {
			return fmt.Errorf("analytics: log skip for session %d: %w", sessionID, err)
		}
	}
	return nil
}

// Finalize implements [Sink].
func (p *Postgres) Finalize(ctx context.Context, sessionID int64, sum align.Summary) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE live_sessions
		 SET ended_at = now(), status = $2, error_message = NULLIF($3, ''),
		     cycles = $4, matched = $5, skipped = $6,
		     avg_score = $7, min_score = $8, max_score = $9
		 WHERE id = $1`,
		sessionID, sum.Status, sum.ErrorMessage,
		sum.Cycles, sum.Matched, sum.Skipped,
		sum.AvgScore, sum.MinScore, sum.MaxScore,
	)
	if err != nil {
		return fmt.Errorf("analytics: finalize session %d: %w", sessionID, err)
	}
	return nil
}
