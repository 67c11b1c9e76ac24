// Package recog defines the Source interface for streaming speech
// recognizers.
//
// A Source wraps a recognition backend (local whisper.cpp, Google Cloud
// Speech, or a test double) and exposes it as a stream of recognized text
// chunks plus a cooperative stop signal. Recognition is expensive (one
// model, one audio device), so the process runs a single Source shared by
// all sessions; the worker package owns that sharing.
package recog

import (
	"context"
	"time"
)

// Chunk is one recognized piece of speech.
type Chunk struct {
	// Text is the recognized text, whitespace-trimmed and non-empty.
	Text string

	// At is when the recognizer emitted the chunk.
	At time.Time
}

// Source is the abstraction over any streaming recognizer.
//
// Start begins recognition and returns a channel of text chunks. The
// channel is closed when the source stops: after [Source.RequestStop],
// when ctx is cancelled, or on permanent recognizer failure. Transient
// recognition errors must be handled inside the implementation (logged,
// stream continues); a closed channel always means the stream is over.
//
// A Source must be restartable: after the chunk channel closes, a
// subsequent Start call begins a fresh stream.
type Source interface {
	Start(ctx context.Context) (<-chan Chunk, error)

	// RequestStop asks the source to stop cooperatively. It is best-effort
	// and idempotent, and must not block; the chunk channel closing is the
	// authoritative end-of-stream signal.
	RequestStop()
}
