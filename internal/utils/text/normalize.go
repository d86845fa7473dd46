package text

import (
	"regexp"
	"strings"
	"unicode"
)

// tagPattern matches HTML/XML tags lexically: everything between '<' and the
// next '>'. Feed bodies arrive as CDATA-wrapped markup fragments, so a full
// DOM parse is unnecessary for plain-text extraction.
var tagPattern = regexp.MustCompile(`<[^>]+>`)

// StripTags removes HTML and XML tags from s.
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	return tagPattern.ReplaceAllString(s, "")
}

// CollapseWhitespace replaces every run of Unicode whitespace in s with a
// single space and trims leading and trailing whitespace.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Normalize canonicalizes s for hashing, similarity comparison, and keyword
// matching: tags are stripped, the text is lowercased, every character
// outside Unicode letters, numbers, underscore, and whitespace becomes a
// space, and whitespace runs collapse to a single space.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s) for any s.
// The same function feeds content hashing and duplicate detection, so both
// always observe an identical canonical form.
func Normalize(s string) string {
	return CollapseWhitespace(filterWordRunes(strings.ToLower(StripTags(s))))
}

// Clean prepares s for embedding input. It applies the same tag stripping,
// character filtering, and whitespace collapsing as Normalize but preserves
// case, which the embedding models are sensitive to.
func Clean(s string) string {
	return CollapseWhitespace(filterWordRunes(StripTags(s)))
}

// filterWordRunes replaces every rune outside the word classes with a space.
// Whitespace is kept as-is so a later collapse pass sees all boundaries.
func filterWordRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isWordRune(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// isWordRune reports whether r belongs to the word character class: Unicode
// letters and numbers plus underscore. Hangul syllables count as letters.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
