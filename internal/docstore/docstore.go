// Package docstore provides read access to documents and their ordered,
// pre-vetted text segments, the alignment targets of a live session.
//
// The live engine never mutates segments; segment ingestion and vetting
// happen in separate tooling that shares the same database.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Document holds document metadata.
type Document struct {
	// ID is the document's database identifier.
	ID int64

	// Title is the human-readable document title.
	Title string

	// Speaker is the person delivering the document, if known.
	Speaker string

	// Status tracks the preparation pipeline:
	// draft → segmented → translated → vetted → delivered.
	Status string
}

// Segment is one ordered unit of a document's text. Order is unique within
// a document and defines the total order the live engine advances through.
type Segment struct {
	// ID is the segment's database identifier.
	ID int64

	// DocumentID is the owning document.
	DocumentID int64

	// Order is the segment's position within the document, starting at 1.
	Order int

	// Text is the source-language segment text that recognition output is
	// matched against.
	Text string

	// Translation is the vetted display translation, empty if not yet
	// translated.
	Translation string

	// Vetted reports whether a reviewer approved the translation.
	Vetted bool
}

// Store is the read-only segment repository consumed by the live engine.
//
// Implementations must be safe for concurrent use; multiple sessions may
// load the same document simultaneously.
type Store interface {
	// GetDocument returns metadata for the given document, or [ErrNotFound].
	GetDocument(ctx context.Context, documentID int64) (Document, error)

	// ListSegments returns the document's segments ordered ascending by
	// Order. Vetted, translated segments are preferred; when none exist the
	// full segment list is returned so a session can still run against an
	// unvetted document.
	ListSegments(ctx context.Context, documentID int64) ([]Segment, error)
}
