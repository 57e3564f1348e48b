// Package tokenizer normalizes note text into index terms and search groups.
// The same normalization feeds both the TF-IDF term index and the full-text
// query builder, so the two agree on what a "word" is.
package tokenizer

import (
	"strings"
	"unicode"
)

const (
	// minTermLen and maxTermLen bound the terms kept after normalization.
	minTermLen = 3
	maxTermLen = 30
)

// Terms returns the distinct normalized terms of text together with their
// occurrence counts. Fenced code blocks are stripped before tokenizing, all
// non-alphabetic runes become whitespace, and each surviving word is
// lowercased, length-filtered, and lightly stemmed.
func Terms(text string) map[string]int {
	counts := make(map[string]int)
	for _, word := range strings.Fields(Sanitize(StripCodeBlocks(text))) {
		term, ok := normalize(word)
		if !ok {
			continue
		}
		counts[term]++
	}
	return counts
}

// Sanitize lowercases text and replaces every non-alphabetic rune with a
// space, leaving only alphabetic word groups.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
}

// StripCodeBlocks removes ``` fenced blocks. Code tends to repeat identifiers
// heavily, which would crowd out prose terms in the term index.
func StripCodeBlocks(text string) string {
	parts := strings.Split(text, "```")
	if len(parts) == 1 {
		return text
	}
	var b strings.Builder
	for i, part := range parts {
		// Even segments are prose, odd segments are fenced code.
		if i%2 == 0 {
			b.WriteString(part)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// normalize applies the length filter and the naive stemmer to a sanitized
// word. The stemming is intentionally crude: strip a trailing "ing", then a
// trailing plural "s". It keeps "words" and "word" in the same bucket without
// dragging in a stemming library's worth of edge cases.
func normalize(word string) (string, bool) {
	if len(word) < minTermLen || len(word) > maxTermLen {
		return "", false
	}
	if rest, ok := strings.CutSuffix(word, "ing"); ok && len(rest) >= minTermLen {
		word = rest
	}
	if rest, ok := strings.CutSuffix(word, "s"); ok && len(rest) >= minTermLen {
		word = rest
	}
	return word, true
}

// SearchGroups splits raw query text into sanitized alphabetic groups
// suitable for a disjunctive full-text query. Empty groups are dropped.
func SearchGroups(texts []string) []string {
	var out []string
	for _, text := range texts {
		group := strings.Join(strings.Fields(Sanitize(text)), " ")
		if group == "" {
			continue
		}
		out = append(out, group)
	}
	return out
}
