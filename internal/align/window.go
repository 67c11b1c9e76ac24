package align

import "github.com/MrWong99/versecast/internal/docstore"

// lookahead returns the forward slice of segments whose order is strictly
// greater than lastMatched, truncated to limit. segments must be sorted
// ascending by Order. The returned slice aliases segments; callers must
// not mutate it.
func lookahead(segments []docstore.Segment, lastMatched, limit int) []docstore.Segment {
	start := len(segments)
	for i, seg := range segments {
		if seg.Order > lastMatched {
			start = i
			break
		}
	}
	window := segments[start:]
	if limit > 0 && len(window) > limit {
		window = window[:limit]
	}
	return window
}

// skippedBetween returns, ascending, every segment whose order lies
// strictly between oldOrder and newOrder. It is a pure function of the
// cursor movement and the full segment list.
func skippedBetween(segments []docstore.Segment, oldOrder, newOrder int) []docstore.Segment {
	var skipped []docstore.Segment
	for _, seg := range segments {
		if seg.Order > oldOrder && seg.Order < newOrder {
			skipped = append(skipped, seg)
		}
	}
	return skipped
}
