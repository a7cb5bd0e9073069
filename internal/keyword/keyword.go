// Package keyword normalizes free-text keyword input into the token
// sequence the ranking engine consumes. Splitting, trimming, and
// lower-casing happen here, once, at the boundary; the ranker assumes
// its input is already normalized and never re-derives it.
package keyword

import "strings"

// Delimiter separates keywords in user-supplied input and in the stored
// highlighted_keywords field.
const Delimiter = ","

// Normalize splits raw on the delimiter, trims whitespace, lower-cases
// each token, and drops blanks. Order is preserved and duplicates are
// kept; the scoring contract treats repeated tokens as extra emphasis.
func Normalize(raw string) []string {
	parts := strings.Split(raw, Delimiter)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// Join renders a normalized token slice back into stored form.
func Join(tokens []string) string {
	return strings.Join(tokens, Delimiter)
}
