package align

import (
	"testing"

	"github.com/MrWong99/versecast/internal/docstore"
)

func segs(texts ...string) []docstore.Segment {
	out := make([]docstore.Segment, len(texts))
	for i, t := range texts {
		out[i] = docstore.Segment{ID: int64(i + 1), Order: i, Text: t}
	}
	return out
}

func TestBestMatch_EmptyWindow(t *testing.T) {
	c := BestMatch("selamat pagi", nil)
	if c.Segment != nil || c.Score != 0 {
		t.Errorf("BestMatch on empty window = (%v, %v), want (nil, 0)", c.Segment, c.Score)
	}
}

func TestBestMatch_BlankSpoken(t *testing.T) {
	c := BestMatch("  ...  ", segs("selamat pagi semua"))
	if c.Segment != nil || c.Score != 0 {
		t.Errorf("BestMatch on blank spoken = (%v, %v), want (nil, 0)", c.Segment, c.Score)
	}
}

func TestBestMatch_ExactTextScoresFull(t *testing.T) {
	window := segs("hari ini kita berkongsi")
	c := BestMatch("hari ini kita berkongsi", window)
	if c.Segment == nil || c.Segment.Order != 0 {
		t.Fatalf("BestMatch returned %v, want segment 0", c.Segment)
	}
	if c.Score != 1 {
		t.Errorf("exact match score = %v, want 1", c.Score)
	}
}

func TestBestMatch_CaseAndPunctuationInsensitive(t *testing.T) {
	window := segs("Selamat pagi, semua!")
	c := BestMatch("selamat PAGI semua", window)
	if c.Score != 1 {
		t.Errorf("score = %v, want 1 after normalization", c.Score)
	}
}

func TestBestMatch_PicksClosestSegment(t *testing.T) {
	window := segs(
		"selamat pagi semua",
		"hari ini kita berkongsi",
		"tentang kasih sayang",
	)

	c := BestMatch("selamat pagi", window)
	if c.Segment == nil || c.Segment.Order != 0 {
		t.Fatalf("best segment = %v, want order 0", c.Segment)
	}
	if c.Score < 0.55 {
		t.Errorf("fragment score = %v, want >= 0.55", c.Score)
	}

	c = BestMatch("kasih sayang", window)
	if c.Segment == nil || c.Segment.Order != 2 {
		t.Fatalf("best segment = %v, want order 2", c.Segment)
	}
}

func TestBestMatch_FragmentBeatsUnrelated(t *testing.T) {
	window := segs(
		"hari ini kita berkongsi",
		"tentang kasih sayang",
	)

	// A fragment of segment 0 must not land on segment 1.
	c := BestMatch("kita berkongsi", window)
	if c.Segment == nil || c.Segment.Order != 0 {
		t.Fatalf("best segment = %v, want order 0", c.Segment)
	}
}

func TestBestMatch_NoiseScoresLow(t *testing.T) {
	window := segs("selamat pagi semua")
	c := BestMatch("zzz qqq www", window)
	if c.Score >= 0.45 {
		t.Errorf("unrelated text score = %v, want < 0.45", c.Score)
	}
}

func TestScoreTexts_ClampedToUnitInterval(t *testing.T) {
	// Exact long text with the substring boost would exceed 1 unclamped.
	spoken := normalize("tentang kasih sayang")
	got := scoreTexts(spoken, contentTokens(spoken), normalize("tentang kasih sayang"))
	if got != 1 {
		t.Errorf("scoreTexts = %v, want clamp at 1", got)
	}
}

func TestOrderedCoverage(t *testing.T) {
	tests := []struct {
		name   string
		spoken []string
		seg    []string
		want   float64
	}{
		{"all in order", []string{"a", "b"}, []string{"x", "a", "y", "b"}, 1},
		{"partial", []string{"a", "b"}, []string{"b", "a"}, 0.5},
		{"none", []string{"a"}, []string{"b"}, 0},
		{"empty spoken", nil, []string{"a"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := orderedCoverage(tt.spoken, tt.seg); got != tt.want {
				t.Errorf("orderedCoverage(%v, %v) = %v, want %v", tt.spoken, tt.seg, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Selamat Pagi!", "selamat pagi"},
		{"  banyak   ruang  ", "banyak ruang"},
		{"tanda-tanda, titik.", "tandatanda titik"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentTokens_DropsStopWords(t *testing.T) {
	got := contentTokens("yang hari ini dan esok")
	want := []string{"hari", "esok"}
	if len(got) != len(want) {
		t.Fatalf("contentTokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
