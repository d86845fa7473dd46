// Package search holds shared helpers for the keyword search path: query
// string parsing limits and LIKE/ILIKE escaping.
package search

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultMaxKeywordCount limits how many whitespace-separated tokens a
	// single query may carry.
	DefaultMaxKeywordCount = 5

	// DefaultMaxKeywordLength limits one token's length in runes. Korean
	// compound nouns stay well under this.
	DefaultMaxKeywordLength = 100

	// DefaultSearchTimeout bounds one keyword search query.
	DefaultSearchTimeout = 5 * time.Second
)

var (
	// ErrTooManyKeywords is returned when a query exceeds the token limit.
	ErrTooManyKeywords = errors.New("too many keywords")

	// ErrKeywordTooLong is returned when a single token exceeds the length limit.
	ErrKeywordTooLong = errors.New("keyword too long")
)

// ParseKeywords splits a raw query string into search tokens. Tokens are
// separated by any run of Unicode whitespace; empty input yields an empty
// slice, not an error.
func ParseKeywords(raw string, maxCount, maxLength int) ([]string, error) {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return []string{}, nil
	}
	if maxCount > 0 && len(tokens) > maxCount {
		return nil, fmt.Errorf("%w: %d tokens (max %d)", ErrTooManyKeywords, len(tokens), maxCount)
	}
	if maxLength > 0 {
		for _, token := range tokens {
			if utf8.RuneCountInString(token) > maxLength {
				return nil, fmt.Errorf("%w: %q (max %d)", ErrKeywordTooLong, token, maxLength)
			}
		}
	}
	return tokens, nil
}

// EscapeILIKE escapes LIKE metacharacters in keyword and wraps it in
// wildcards for a contains match. PostgreSQL treats backslash as the escape
// character by default, so no ESCAPE clause is needed.
func EscapeILIKE(keyword string) string {
	escaped := strings.ReplaceAll(keyword, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `%`, `\%`)
	escaped = strings.ReplaceAll(escaped, `_`, `\_`)
	return "%" + escaped + "%"
}
