package search

import "strings"

// Words too common to carry signal for verbatim matching.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {},
	"was": {}, "to": {}, "of": {}, "and": {}, "in": {}, "that": {},
	"have": {}, "it": {}, "for": {}, "not": {}, "on": {}, "with": {},
	"as": {}, "you": {}, "do": {}, "at": {}, "this": {}, "but": {},
	"by": {}, "from": {},
}

const wordPunctuation = ".,!?;:'\"-()[]{}"

// keywords lowercases, strips surrounding punctuation, and drops stop words.
func keywords(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.ToLower(strings.Trim(field, wordPunctuation))
		if word == "" {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		out = append(out, word)
	}
	return out
}

// containsAllQueryWords reports whether every keyword of the query appears
// in the document. A query with no keywords never matches.
func containsAllQueryWords(document, query string) bool {
	queryWords := keywords(query)
	if len(queryWords) == 0 {
		return false
	}

	seen := make(map[string]struct{})
	for _, word := range keywords(document) {
		seen[word] = struct{}{}
	}

	for _, word := range queryWords {
		if _, ok := seen[word]; !ok {
			return false
		}
	}
	return true
}
