// Package align implements the live alignment engine: a rolling transcript
// buffer, a forward-only fuzzy matcher over a bounded lookahead window, a
// match acceptance policy with an optional adaptive threshold, and catch-up
// detection for segments the speaker moved past without a confirmed match.
//
// All per-session state in this package is owned by a single session loop;
// nothing here requires locking.
package align

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/versecast/internal/docstore"
)

// Scoring weights. The weighted terms sum to 1.0; the boosts are added on
// top and the final score is clamped to [0, 1].
const (
	weightSequence   = 0.50
	weightJaccard    = 0.30
	weightLenRatio   = 0.20
	boostSubstring   = 0.25
	boostTokenOrder  = 0.12
	tokenOrderNeeded = 0.60
)

// Candidate is the best-scoring segment for one spoken string, produced by
// [BestMatch] and consumed immediately by the acceptance policy. Segment is
// nil when the lookahead window was empty.
type Candidate struct {
	Segment *docstore.Segment
	Score   float64
}

// BestMatch scores spoken against every segment in the lookahead window and
// returns the highest-scoring candidate, or a zero Candidate when the
// window is empty or spoken is blank.
func BestMatch(spoken string, window []docstore.Segment) Candidate {
	spokenNorm := normalize(spoken)
	if spokenNorm == "" || len(window) == 0 {
		return Candidate{}
	}
	spokenTokens := contentTokens(spokenNorm)

	var best Candidate
	for i := range window {
		score := scoreTexts(spokenNorm, spokenTokens, normalize(window[i].Text))
		if best.Segment == nil || score > best.Score {
			best = Candidate{Segment: &window[i], Score: score}
		}
	}
	return best
}

// scoreTexts computes the combined similarity of a normalized spoken string
// against a normalized segment text:
//
//   - character-sequence similarity (Levenshtein distance normalized by the
//     longer string) for overall closeness;
//   - token-set Jaccard overlap with stop words removed, robust to ASR
//     reordering and substitution noise;
//   - token-count ratio, penalising a short fragment against a long
//     segment and vice versa;
//   - a substring boost when the spoken text appears contiguously inside
//     the segment, or a smaller boost when most spoken tokens appear in
//     order within it. Both compensate for ASR emitting only a fragment
//     of a longer segment.
func scoreTexts(spokenNorm string, spokenTokens []string, segNorm string) float64 {
	if segNorm == "" {
		return 0
	}
	segTokens := contentTokens(segNorm)

	score := weightSequence*sequenceSimilarity(spokenNorm, segNorm) +
		weightJaccard*jaccard(spokenTokens, segTokens) +
		weightLenRatio*countRatio(len(spokenTokens), len(segTokens))

	if len(spokenNorm) >= 3 && strings.Contains(segNorm, spokenNorm) {
		score += boostSubstring
	} else if coverage := orderedCoverage(spokenTokens, segTokens); coverage >= tokenOrderNeeded {
		score += boostTokenOrder
	}

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// sequenceSimilarity is 1 - d/len where d is the Levenshtein edit distance
// and len the longer string's rune count.
func sequenceSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	d := matchr.Levenshtein(a, b)
	if d >= longest {
		return 0
	}
	return 1 - float64(d)/float64(longest)
}

// jaccard is |A∩B| / |A∪B| over token sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// countRatio is min/max over token counts, 0 when either side is empty.
func countRatio(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

// orderedCoverage returns the fraction of spoken tokens that appear, in
// order, within the segment tokens.
func orderedCoverage(spoken, seg []string) float64 {
	if len(spoken) == 0 || len(seg) == 0 {
		return 0
	}
	found := 0
	j := 0
	for _, t := range spoken {
		for j < len(seg) {
			if seg[j] == t {
				found++
				j++
				break
			}
			j++
		}
	}
	return float64(found) / float64(len(spoken))
}
