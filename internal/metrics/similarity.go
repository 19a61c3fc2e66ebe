package metrics

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// normalizeText folds a string for comparison: NFKC, full-width to
// half-width, lower case, trimmed.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = width.Fold.String(s)
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits normalized text into comparison tokens. Whitespace
// separates tokens; a run without any whitespace that contains Han
// characters falls back to rune bigrams, since Chinese labels are not
// space-delimited.
func tokenize(s string) []string {
	s = normalizeText(s)
	if s == "" {
		return nil
	}

	fields := strings.Fields(s)
	if len(fields) > 1 || !containsHan(s) {
		return fields
	}

	runes := []rune(fields[0])
	if len(runes) < 2 {
		return []string{fields[0]}
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// similarity scores two labels by token overlap: |A∩B| / max(|A|,|B|)
// over token sets. Identical labels score 1, disjoint labels 0.
func similarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(ta))
	for _, tok := range ta {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, tok := range tb {
		setB[tok] = struct{}{}
	}

	overlap := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			overlap++
		}
	}

	max := len(setA)
	if len(setB) > max {
		max = len(setB)
	}
	return float64(overlap) / float64(max)
}
