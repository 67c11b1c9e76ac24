package align

import (
	"encoding/json"
	"testing"
)

func newTestSession(threshold float64, texts ...string) *Session {
	return NewSession(SessionConfig{
		Segments:        segs(texts...),
		LookaheadLimit:  10,
		BufferMaxChunks: 5,
		BufferMaxChars:  400,
		Policy:          PolicyConfig{Threshold: threshold},
	})
}

func TestSession_FollowsSequentialSpeech(t *testing.T) {
	s := newTestSession(0.55,
		"selamat pagi semua",
		"hari ini kita berkongsi",
		"tentang kasih sayang",
	)

	ev := s.Step("selamat pagi")
	if !ev.Matched || ev.Segment == nil || ev.Segment.Order != 0 {
		t.Fatalf("cycle 1: matched=%v segment=%v, want match on order 0", ev.Matched, ev.Segment)
	}
	if len(ev.Skipped) != 0 {
		t.Errorf("cycle 1: skipped %d segments, want 0", len(ev.Skipped))
	}

	ev = s.Step("hari ini kita berkongsi")
	if !ev.Matched || ev.Segment.Order != 1 {
		t.Fatalf("cycle 2: matched=%v, want match on order 1", ev.Matched)
	}

	ev = s.Step("tentang kasih sayang")
	if !ev.Matched || ev.Segment.Order != 2 {
		t.Fatalf("cycle 3: matched=%v, want match on order 2", ev.Matched)
	}
	if s.LastMatchedOrder() != 2 {
		t.Errorf("LastMatchedOrder() = %d, want 2", s.LastMatchedOrder())
	}
}

func TestSession_NeverMovesBackward(t *testing.T) {
	s := newTestSession(0.55,
		"selamat pagi semua",
		"hari ini kita berkongsi",
		"tentang kasih sayang",
	)

	if ev := s.Step("hari ini kita berkongsi"); !ev.Matched || ev.Segment.Order != 1 {
		t.Fatalf("setup: want match on order 1, got %+v", ev)
	}

	// Repeating an earlier segment's text must not pull the cursor back.
	ev := s.Step("selamat pagi semua")
	if ev.Matched {
		t.Errorf("matched backward segment: %+v", ev.Segment)
	}
	if s.LastMatchedOrder() != 1 {
		t.Errorf("cursor moved to %d, want to stay at 1", s.LastMatchedOrder())
	}
}

func TestSession_RecordsSkipsOnCatchUp(t *testing.T) {
	s := newTestSession(0.55,
		"selamat pagi semua",
		"hari ini kita berkongsi",
		"tentang kasih sayang",
		"terima kasih banyak",
	)

	ev := s.Step("terima kasih banyak")
	if !ev.Matched || ev.Segment.Order != 3 {
		t.Fatalf("want match on order 3, got %+v", ev)
	}
	if len(ev.Skipped) != 3 {
		t.Fatalf("skipped %d segments, want 3", len(ev.Skipped))
	}
	for i, seg := range ev.Skipped {
		if seg.Order != i {
			t.Errorf("skipped[%d].Order = %d, want %d (ascending)", i, seg.Order, i)
		}
	}
	if ev.SkippedFrom == nil || ev.SkippedTo == nil {
		t.Fatal("skip bounds missing on a catch-up event")
	}
	if *ev.SkippedFrom != -1 || *ev.SkippedTo != 3 {
		t.Errorf("skip bounds = (%d, %d), want (-1, 3)", *ev.SkippedFrom, *ev.SkippedTo)
	}
}

func TestSession_BufferFlushedOnAccept(t *testing.T) {
	s := newTestSession(0.55,
		"selamat pagi semua",
		"hari ini kita berkongsi",
	)

	if ev := s.Step("selamat pagi semua"); !ev.Matched {
		t.Fatal("setup: first chunk should match")
	}

	// The next cycle's buffer must contain only the new chunk.
	ev := s.Step("hari")
	if ev.BufferChunks != 1 {
		t.Errorf("BufferChunks = %d, want 1 after flush", ev.BufferChunks)
	}
	if ev.BufferText != "hari" {
		t.Errorf("BufferText = %q, want %q", ev.BufferText, "hari")
	}
}

func TestSession_BufferAccumulatesAcrossRejections(t *testing.T) {
	s := newTestSession(0.60, "hari ini kita berkongsi tentang kasih sayang")

	// Two halves that individually fall short of the long segment.
	ev := s.Step("hari ini kita")
	first := ev.Matched

	ev = s.Step("berkongsi tentang kasih sayang")
	if !ev.Matched {
		t.Fatalf("accumulated buffer did not match: score=%v threshold=%v", ev.Score, ev.Threshold)
	}
	if first {
		t.Log("first fragment matched on its own; buffer accumulation not exercised")
	}
}

func TestSession_RejectionBelowThreshold(t *testing.T) {
	s := newTestSession(0.55, "selamat pagi semua")

	ev := s.Step("zzz qqq www")
	if ev.Matched {
		t.Fatalf("noise matched with score %v", ev.Score)
	}
	if ev.Candidate.SegmentID == nil {
		t.Error("rejected cycle should still report its best candidate")
	}
	if s.LastMatchedOrder() != -1 {
		t.Errorf("cursor = %d, want -1", s.LastMatchedOrder())
	}
}

func TestSession_SummarizeAggregates(t *testing.T) {
	s := newTestSession(0.55,
		"selamat pagi semua",
		"hari ini kita berkongsi",
		"tentang kasih sayang",
	)

	s.Step("selamat pagi semua")
	s.Step("zzz qqq www")
	s.Step("tentang kasih sayang")

	sum := s.Summarize("completed", "")
	if sum.Status != "completed" {
		t.Errorf("Status = %q, want completed", sum.Status)
	}
	if sum.Cycles != 3 {
		t.Errorf("Cycles = %d, want 3", sum.Cycles)
	}
	if sum.Matched != 2 {
		t.Errorf("Matched = %d, want 2", sum.Matched)
	}
	if sum.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (order 1 jumped over)", sum.Skipped)
	}
	if sum.AvgScore <= 0 || sum.MinScore <= 0 || sum.MaxScore < sum.MinScore {
		t.Errorf("score aggregates inconsistent: avg=%v min=%v max=%v",
			sum.AvgScore, sum.MinScore, sum.MaxScore)
	}
}

func TestEvent_JSONShape(t *testing.T) {
	s := newTestSession(0.55, "selamat pagi semua", "hari ini kita berkongsi")

	data, err := json.Marshal(s.Step("selamat pagi semua"))
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}

	for _, key := range []string{"spoken", "buffer_text", "buffer_chunks", "score", "matched", "threshold", "candidate", "segment", "skipped_segments"} {
		if _, ok := m[key]; !ok {
			t.Errorf("event JSON missing key %q", key)
		}
	}
	if _, ok := m["skipped_from"]; ok {
		t.Error("skipped_from present on a non-skip event")
	}
	if m["segment"] == nil {
		t.Error("segment is null on a matched event")
	}
	if skipped, ok := m["skipped_segments"].([]any); !ok || len(skipped) != 0 {
		t.Errorf("skipped_segments = %v, want empty array, not null", m["skipped_segments"])
	}
}

func TestEvent_JSONNullSegmentOnRejection(t *testing.T) {
	s := newTestSession(0.55, "selamat pagi semua")

	data, err := json.Marshal(s.Step("zzz qqq www"))
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if m["segment"] != nil {
		t.Errorf("segment = %v, want null on rejection", m["segment"])
	}
	if m["matched"] != false {
		t.Errorf("matched = %v, want false", m["matched"])
	}
}
