// Package relevance implements the heuristic text scorer shared by the memory
// and resource stores. Scores approximate match strength in [0,1]; they are
// not an information-retrieval ranking and callers must only rely on relative
// ordering and thresholding, never on exact values.
package relevance

import (
	"strings"
	"unicode"
)

const (
	tokenWeight   = 0.6
	phraseWeight  = 0.3
	partialWeight = 0.1
)

// MinScore is the threshold below which store queries drop a candidate.
const MinScore = 0.1

// Score rates how well text matches query. An empty query or empty text
// scores zero. The heuristic combines three monotone signals: the fraction
// of query tokens present in the text, a whole-phrase substring bonus, and a
// prefix-match credit for partially typed tokens. Appending query-matching
// text to a candidate can therefore never lower its score.
func Score(query, text string) float64 {
	queryTokens := Tokens(query)
	if len(queryTokens) == 0 {
		return 0
	}
	normalized := normalize(text)
	if normalized == "" {
		return 0
	}
	textTokens := Tokens(text)
	seen := make(map[string]struct{}, len(textTokens))
	for _, tok := range textTokens {
		seen[tok] = struct{}{}
	}

	matched := 0
	partial := 0
	for _, tok := range queryTokens {
		if _, ok := seen[tok]; ok {
			matched++
			continue
		}
		for other := range seen {
			if strings.HasPrefix(other, tok) || strings.HasPrefix(tok, other) {
				partial++
				break
			}
		}
	}

	score := tokenWeight * float64(matched) / float64(len(queryTokens))
	score += partialWeight * float64(partial) / float64(len(queryTokens))
	if strings.Contains(normalized, normalize(query)) {
		score += phraseWeight
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Tokens splits s into normalized lookup tokens: lowercased, split on any
// non-letter non-digit rune, with a light suffix-stripping stem and
// duplicates removed in first-seen order.
func Tokens(s string) []string {
	normalized := normalize(s)
	if normalized == "" {
		return nil
	}
	parts := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = stem(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stem(token string) string {
	if len(token) <= 3 {
		return token
	}
	switch {
	case strings.HasSuffix(token, "ing") && len(token) > 5:
		return strings.TrimSuffix(token, "ing")
	case strings.HasSuffix(token, "ed") && len(token) > 4:
		return strings.TrimSuffix(token, "ed")
	case strings.HasSuffix(token, "es") && len(token) > 4:
		return strings.TrimSuffix(token, "es")
	case strings.HasSuffix(token, "s") && len(token) > 4:
		return strings.TrimSuffix(token, "s")
	}
	return token
}
