// Package analytics records live session activity for later review:
// one row per session plus one row per processing cycle that matched or
// skipped a segment. All writes are best effort from the caller's point
// of view; a failing sink must never take a live session down.
package analytics

import (
	"context"

	"github.com/MrWong99/versecast/internal/align"
)

// Sink persists session activity.
type Sink interface {
	// StartSession opens a session record for a document and returns its
	// ID for subsequent log and finalize calls.
	StartSession(ctx context.Context, documentID int64) (int64, error)

	// LogEvent records one processing cycle's outcome. Rejected cycles
	// with no skip information may be discarded by the implementation.
	LogEvent(ctx context.Context, sessionID int64, ev align.Event) error

	// Finalize closes the session record with its aggregate statistics.
	Finalize(ctx context.Context, sessionID int64, sum align.Summary) error
}

// Nop is a Sink that discards everything. Used when no database is
// configured.
type Nop struct{}

func (Nop) StartSession(context.Context, int64) (int64, error) { return 0, nil }

func (Nop) LogEvent(context.Context, int64, align.Event) error { return nil }

func (Nop) Finalize(context.Context, int64, align.Summary) error { return nil }
