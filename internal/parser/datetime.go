package parser

import (
	"strconv"
	"strings"
	"time"
)

// dateTimeLayouts are the timestamp shapes the wire actually emits, tried
// in order. Values carry no zone; they are wall-clock times in the feed's
// local zone.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102150405",
}

// parseDateTime parses s against the known layouts in the parser's
// location. Unparseable or empty values yield nil, never an error; callers
// decide whether the field was required.
func (p *Parser) parseDateTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return &t
		}
	}
	return nil
}

// parseIntLenient parses s as a decimal integer. Empty or non-numeric
// values yield nil.
func parseIntLenient(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
