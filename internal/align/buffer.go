package align

import "strings"

// Buffer is the per-session rolling transcript buffer. It accumulates
// recent recognition chunks, oldest first, bounded both by chunk count and
// by the total length of the joined text.
//
// A Buffer is owned by exactly one session loop and needs no locking.
type Buffer struct {
	chunks   []string
	maxCount int
	maxChars int
}

// NewBuffer creates a Buffer capped at maxCount chunks and maxChars joined
// characters.
func NewBuffer(maxCount, maxChars int) *Buffer {
	return &Buffer{
		chunks:   make([]string, 0, maxCount),
		maxCount: maxCount,
		maxChars: maxChars,
	}
}

// Push appends chunk and evicts from the oldest end until both caps hold.
// Eviction drops whole chunks; only when the single newest chunk alone
// exceeds the character cap is it truncated, keeping the most recent
// characters.
func (b *Buffer) Push(chunk string) {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return
	}
	b.chunks = append(b.chunks, chunk)

	if len(b.chunks) > b.maxCount {
		b.chunks = append(b.chunks[:0], b.chunks[len(b.chunks)-b.maxCount:]...)
	}

	for len(b.chunks) > 1 && b.joinedLen() > b.maxChars {
		b.chunks = append(b.chunks[:0], b.chunks[1:]...)
	}
	if len(b.chunks) == 1 {
		if runes := []rune(b.chunks[0]); len(runes) > b.maxChars {
			b.chunks[0] = string(runes[len(runes)-b.maxChars:])
		}
	}
}

// Snapshot returns the joined buffer text, single-space separated.
func (b *Buffer) Snapshot() string {
	return strings.Join(b.chunks, " ")
}

// Len returns the current chunk count.
func (b *Buffer) Len() int {
	return len(b.chunks)
}

// Flush clears the buffer. Called only when a match is accepted: the
// buffered words are considered consumed into the confirmed transcript.
func (b *Buffer) Flush() {
	b.chunks = b.chunks[:0]
}

func (b *Buffer) joinedLen() int {
	n := 0
	for i, c := range b.chunks {
		if i > 0 {
			n++
		}
		n += len([]rune(c))
	}
	return n
}
