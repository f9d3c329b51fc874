// Package tokens approximates LLM token counts locally.
//
// The count is not the provider's own tokenizer: words count as one token,
// long words as several, and every punctuation mark as one.
package tokens

import (
	"regexp"
	"unicode/utf8"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\s\p{L}\p{N}_]`)

// runesPerToken bounds how many characters of a long word share one token.
const runesPerToken = 8

// Count returns the approximate number of tokens in text.
func Count(text string) int {
	n := 0
	for _, piece := range tokenPattern.FindAllString(text, -1) {
		n += 1 + (utf8.RuneCountInString(piece)-1)/runesPerToken
	}
	return n
}

// CountAll returns the sum of Count over texts.
func CountAll(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += Count(t)
	}
	return n
}

// Truncate returns the longest prefix of text whose Count does not exceed limit.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		cost := 1 + (utf8.RuneCountInString(text[loc[0]:loc[1]])-1)/runesPerToken
		if n+cost > limit {
			return text[:loc[0]]
		}
		n += cost
	}
	return text
}
