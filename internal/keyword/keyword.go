// Package keyword implements the substring trigger heuristic shared by the
// moderation filter, the web search trigger and the image edit-intent check.
package keyword

import "strings"

// Matcher tests a text against a fixed term list by case-insensitive
// substring containment. No tokenization, no stemming.
type Matcher struct {
	terms []string
}

// New builds a Matcher from the given terms. Empty terms are dropped and the
// remainder lower-cased once up front.
func New(terms ...string) Matcher {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return Matcher{terms: cleaned}
}

// Match returns the first term contained in text. An empty term list never
// matches.
func (m Matcher) Match(text string) (string, bool) {
	if len(m.terms) == 0 || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, term := range m.terms {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

// Empty reports whether the matcher has no terms.
func (m Matcher) Empty() bool {
	return len(m.terms) == 0
}
