package align

import (
	"time"

	"github.com/MrWong99/versecast/internal/docstore"
)

// Session is the per-connection alignment state machine: cursor, rolling
// buffer, and acceptance policy over one document's segment list.
//
// A Session is not safe for concurrent use. It is owned by exactly one
// connection's processing loop, created when the session starts and
// discarded when it ends.
type Session struct {
	segments  []docstore.Segment
	buf       *Buffer
	policy    *Policy
	lookLimit int

	lastMatched int
	stats       stats
	startedAt   time.Time
}

type stats struct {
	cycles   int
	matched  int
	skipped  int
	scoreSum float64
	scoreMin float64
	scoreMax float64
}

// SessionConfig configures a [Session].
type SessionConfig struct {
	// Segments is the document's full ordered segment list.
	Segments []docstore.Segment

	// LookaheadLimit caps how many forward segments are scored per cycle.
	LookaheadLimit int

	// BufferMaxChunks and BufferMaxChars bound the rolling buffer.
	BufferMaxChunks int
	BufferMaxChars  int

	// Policy configures the acceptance threshold.
	Policy PolicyConfig
}

// NewSession creates a Session positioned before the first segment.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		segments:    cfg.Segments,
		buf:         NewBuffer(cfg.BufferMaxChunks, cfg.BufferMaxChars),
		policy:      NewPolicy(cfg.Policy),
		lookLimit:   cfg.LookaheadLimit,
		lastMatched: -1,
		startedAt:   time.Now().UTC(),
	}
}

// LastMatchedOrder returns the cursor: the order of the most recently
// accepted segment, or -1 before the first acceptance. It is monotonically
// non-decreasing for the lifetime of the session.
func (s *Session) LastMatchedOrder() int {
	return s.lastMatched
}

// Step processes one recognition chunk and returns the cycle's event.
//
// The chunk joins the rolling buffer, then both the buffer snapshot and
// the chunk alone are scored against the lookahead window and the higher
// scorer wins (ties prefer the buffer, which carries more context). A
// winning candidate is accepted only with strict forward progress and a
// score clearing the current threshold; acceptance advances the cursor,
// flushes the buffer, and enumerates any segments the acceptance jumped
// over.
func (s *Session) Step(chunk string) Event {
	s.buf.Push(chunk)
	bufferText := s.buf.Snapshot()
	window := lookahead(s.segments, s.lastMatched, s.lookLimit)

	chosen := BestMatch(bufferText, window)
	if single := BestMatch(chunk, window); single.Score > chosen.Score {
		chosen = single
	}

	ev := Event{
		Spoken:       chunk,
		BufferText:   bufferText,
		BufferChunks: s.buf.Len(),
		Score:        chosen.Score,
		Threshold:    s.policy.Threshold(),
		Skipped:      []SegmentPayload{},
	}
	if chosen.Segment != nil {
		ev.Candidate.SegmentID = &chosen.Segment.ID
		ev.Candidate.Order = &chosen.Segment.Order
	}

	accepted := chosen.Segment != nil &&
		chosen.Segment.Order > s.lastMatched &&
		s.policy.Admit(chosen.Score)
	if !accepted {
		s.stats.cycles++
		s.policy.OnReject()
		return ev
	}

	if skipped := skippedBetween(s.segments, s.lastMatched, chosen.Segment.Order); len(skipped) > 0 {
		from, to := s.lastMatched, chosen.Segment.Order
		ev.SkippedFrom = &from
		ev.SkippedTo = &to
		for _, seg := range skipped {
			ev.Skipped = append(ev.Skipped, segmentPayload(seg))
		}
		s.stats.skipped += len(skipped)
	}

	ev.Matched = true
	payload := segmentPayload(*chosen.Segment)
	ev.Segment = &payload

	s.lastMatched = chosen.Segment.Order
	s.buf.Flush()

	s.stats.cycles++
	s.stats.matched++
	s.stats.scoreSum += chosen.Score
	if s.stats.matched == 1 || chosen.Score < s.stats.scoreMin {
		s.stats.scoreMin = chosen.Score
	}
	if chosen.Score > s.stats.scoreMax {
		s.stats.scoreMax = chosen.Score
	}
	s.policy.OnAccept()

	return ev
}

// Summary describes a finished session for the analytics sink.
type Summary struct {
	Status       string
	ErrorMessage string
	Cycles       int
	Matched      int
	Skipped      int
	AvgScore     float64
	MinScore     float64
	MaxScore     float64
	Duration     time.Duration
}

// Summarize returns the session's aggregate statistics with the given
// terminal status ("completed", "interrupted", or "error").
func (s *Session) Summarize(status, errorMessage string) Summary {
	sum := Summary{
		Status:       status,
		ErrorMessage: errorMessage,
		Cycles:       s.stats.cycles,
		Matched:      s.stats.matched,
		Skipped:      s.stats.skipped,
		MinScore:     s.stats.scoreMin,
		MaxScore:     s.stats.scoreMax,
		Duration:     time.Since(s.startedAt),
	}
	if s.stats.matched > 0 {
		sum.AvgScore = s.stats.scoreSum / float64(s.stats.matched)
	}
	return sum
}
