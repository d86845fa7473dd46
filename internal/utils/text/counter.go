// Package text provides Unicode-aware text primitives shared by the feed
// parser, deduplication, embedding, and retrieval layers: normalization,
// tokenization, similarity scoring, and rune/byte safe truncation.
// Everything in this package is pure and deterministic.
package text

import "unicode/utf8"

// CountRunes counts the number of Unicode characters (runes) in the given text.
// This function correctly handles multi-byte characters including Korean,
// Chinese, emoji, and other Unicode characters by counting runes instead of bytes.
//
// All length limits in the pipeline (chunk sizes, embedding input caps,
// summary truncation) are expressed in runes so that Korean text is measured
// the same way as ASCII.
//
// Examples:
//
//	CountRunes("hello")     // returns 5 (ASCII text)
//	CountRunes("안녕하세요")   // returns 5 (Korean text)
//	CountRunes("hello세계")  // returns 7 (mixed text)
//	CountRunes("")          // returns 0 (empty string)
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// TruncateRunes returns text cut to at most limit runes. Multi-byte
// characters are never split. A non-positive limit yields the empty string.
func TruncateRunes(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

// TruncateBytes returns text cut to at most limit bytes without splitting a
// UTF-8 sequence. The result may be shorter than limit when the cut would
// land inside a multi-byte character.
func TruncateBytes(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
