package align

import "testing"

func TestBuffer_JoinsInArrivalOrder(t *testing.T) {
	b := NewBuffer(5, 400)
	b.Push("selamat pagi")
	b.Push("semua")

	if got := b.Snapshot(); got != "selamat pagi semua" {
		t.Errorf("Snapshot() = %q, want %q", got, "selamat pagi semua")
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
}

func TestBuffer_IgnoresBlankChunks(t *testing.T) {
	b := NewBuffer(5, 400)
	b.Push("   ")
	b.Push("")
	b.Push("kata")

	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestBuffer_EvictsOldestBeyondChunkCap(t *testing.T) {
	b := NewBuffer(3, 400)
	for _, c := range []string{"satu", "dua", "tiga", "empat"} {
		b.Push(c)
	}

	if got := b.Snapshot(); got != "dua tiga empat" {
		t.Errorf("Snapshot() = %q, want %q", got, "dua tiga empat")
	}
}

func TestBuffer_EvictsWholeChunksBeyondCharCap(t *testing.T) {
	// Joined length of all three would be 20; cap 15 forces the oldest
	// chunk out entirely rather than cutting it mid-word.
	b := NewBuffer(5, 15)
	b.Push("aaaaaa")
	b.Push("bbbbbb")
	b.Push("cccccc")

	if got := b.Snapshot(); got != "bbbbbb cccccc" {
		t.Errorf("Snapshot() = %q, want %q", got, "bbbbbb cccccc")
	}
}

func TestBuffer_TruncatesSingleOversizeChunk(t *testing.T) {
	b := NewBuffer(5, 4)
	b.Push("abcdefgh")

	if got := b.Snapshot(); got != "efgh" {
		t.Errorf("Snapshot() = %q, want %q (most recent characters kept)", got, "efgh")
	}
}

func TestBuffer_TruncationCountsRunes(t *testing.T) {
	b := NewBuffer(5, 3)
	b.Push("héllö")

	if got := b.Snapshot(); got != "llö" {
		t.Errorf("Snapshot() = %q, want %q", got, "llö")
	}
}

func TestBuffer_FlushEmpties(t *testing.T) {
	b := NewBuffer(5, 400)
	b.Push("satu")
	b.Push("dua")
	b.Flush()

	if b.Len() != 0 || b.Snapshot() != "" {
		t.Errorf("after Flush: Len() = %d, Snapshot() = %q, want empty", b.Len(), b.Snapshot())
	}

	b.Push("tiga")
	if got := b.Snapshot(); got != "tiga" {
		t.Errorf("Snapshot() after reuse = %q, want %q", got, "tiga")
	}
}
