package align

import (
	"strings"
	"unicode"
)

// stopWords are high-frequency function words excluded from token-overlap
// scoring. The list covers the languages the system is deployed for
// (Malay and English) and intentionally stays small; over-aggressive
// stop-word removal hurts short segments more than it helps long ones.
var stopWords = map[string]struct{}{
	// Malay
	"yang": {}, "dan": {}, "di": {}, "ke": {}, "itu": {}, "ini": {},
	"pada": {}, "untuk": {}, "dengan": {}, "kepada": {}, "adalah": {},
	"akan": {}, "atau": {},
	// English
	"the": {}, "a": {}, "an": {}, "and": {}, "of": {}, "to": {},
	"in": {}, "is": {}, "it": {}, "that": {}, "this": {}, "for": {},
}

// normalize case-folds s, strips punctuation, and collapses whitespace so
// recognition output and segment text compare on letters alone.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// Punctuation and symbols are dropped entirely.
		}
	}
	return strings.TrimSpace(b.String())
}

// contentTokens splits normalized text into tokens with stop words removed.
func contentTokens(normalized string) []string {
	fields := strings.Fields(normalized)
	out := fields[:0]
	for _, f := range fields {
		if _, skip := stopWords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}
