package align

import "github.com/MrWong99/versecast/internal/docstore"

// SegmentPayload is the wire form of a segment inside an [Event].
type SegmentPayload struct {
	SegmentID   int64  `json:"segment_id"`
	Order       int    `json:"order"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// CandidateRef identifies the best-scoring candidate of a cycle whether or
// not it was accepted. Both fields are null when the lookahead window was
// empty.
type CandidateRef struct {
	SegmentID *int64 `json:"segment_id"`
	Order     *int   `json:"order"`
}

// Event is the outcome of one processing cycle, sent to every transport
// and analytics consumer. The engine holds no copy after emission.
type Event struct {
	// Spoken is the latest recognition chunk that triggered this cycle.
	Spoken string `json:"spoken"`

	// BufferText is the rolling buffer snapshot the cycle scored against.
	BufferText string `json:"buffer_text"`

	// BufferChunks is the buffer's chunk count at scoring time.
	BufferChunks int `json:"buffer_chunks"`

	// Score is the winning candidate's score, 0 when no candidate existed.
	Score float64 `json:"score"`

	// Matched reports whether the candidate was accepted.
	Matched bool `json:"matched"`

	// Threshold is the acceptance threshold used this cycle.
	Threshold float64 `json:"threshold"`

	// Candidate identifies the best-scoring segment regardless of outcome.
	Candidate CandidateRef `json:"candidate"`

	// Segment is the accepted segment, null on rejected cycles.
	Segment *SegmentPayload `json:"segment"`

	// Skipped lists segments passed over by this acceptance, ascending by
	// order. Empty on rejected cycles and on single-step advances.
	Skipped []SegmentPayload `json:"skipped_segments"`

	// SkippedFrom and SkippedTo bound a catch-up jump: the cursor before
	// the acceptance and the accepted order. Both are nil unless Skipped
	// is non-empty.
	SkippedFrom *int `json:"skipped_from,omitempty"`
	SkippedTo   *int `json:"skipped_to,omitempty"`
}

func segmentPayload(seg docstore.Segment) SegmentPayload {
	return SegmentPayload{
		SegmentID:   seg.ID,
		Order:       seg.Order,
		Text:        seg.Text,
		Translation: seg.Translation,
	}
}
