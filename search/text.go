package search

import (
	"strings"
	"unicode"
)

// Words too common to signal a verbatim match on their own.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {},
	"was": {}, "to": {}, "of": {}, "and": {}, "in": {}, "that": {},
	"have": {}, "it": {}, "for": {}, "not": {}, "on": {}, "with": {},
	"as": {}, "you": {}, "do": {}, "at": {}, "this": {}, "but": {},
	"by": {}, "from": {},
}

// significantWords lowercases text, splits it on non-alphanumeric runes,
// and drops stop words.
func significantWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	words := fields[:0]
	for _, w := range fields {
		if _, skip := stopWords[w]; !skip {
			words = append(words, w)
		}
	}
	return words
}

// containsAllQueryWords reports whether every significant query word
// occurs in the chunk text. Used only as a monitor signal; it never
// influences ranking.
func containsAllQueryWords(chunkText, query string) bool {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return false
	}

	present := make(map[string]struct{})
	for _, w := range significantWords(chunkText) {
		present[w] = struct{}{}
	}
	for _, w := range queryWords {
		if _, ok := present[w]; !ok {
			return false
		}
	}
	return true
}
