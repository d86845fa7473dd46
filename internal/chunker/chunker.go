// Package chunker splits article text into overlapping pieces sized for
// embedding models. Sizes are measured in runes so Korean text is not
// penalized, while chunk offsets are byte positions into the original
// input so callers can slice it directly.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultSize is the chunk size in runes.
	DefaultSize = 500

	// DefaultOverlap is how many runes consecutive chunks share.
	DefaultOverlap = 50
)

// Strategy selects the boundary rule used when text exceeds the chunk size.
type Strategy string

const (
	// StrategyFixed cuts at the size limit, backing up to the nearest
	// whitespace or sentence terminator.
	StrategyFixed Strategy = "fixed"

	// StrategySentence accumulates whole sentences per chunk.
	StrategySentence Strategy = "sentence"

	// StrategyParagraph accumulates blank-line separated paragraphs.
	StrategyParagraph Strategy = "paragraph"

	// StrategySemantic currently behaves like sentence chunking. The name
	// is reserved for topic-boundary splitting.
	StrategySemantic Strategy = "semantic"
)

// IsValid reports whether the strategy is a known value.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyFixed, StrategySentence, StrategyParagraph, StrategySemantic:
		return true
	default:
		return false
	}
}

// ParseStrategy maps a config string to a Strategy, falling back to fixed
// for unknown values.
func ParseStrategy(raw string) Strategy {
	s := Strategy(strings.ToLower(strings.TrimSpace(raw)))
	if s.IsValid() {
		return s
	}
	return StrategyFixed
}

// Chunk is one piece of the input. Text is trimmed; Start and End are byte
// offsets bounding the untrimmed span in the original input.
type Chunk struct {
	Text  string
	Index int
	Start int
	End   int
}

// Chunker splits text according to a strategy. It is safe for concurrent
// use.
type Chunker struct {
	strategy Strategy
	size     int
	overlap  int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithStrategy sets the boundary rule. Invalid strategies are ignored.
func WithStrategy(s Strategy) Option {
	return func(c *Chunker) {
		if s.IsValid() {
			c.strategy = s
		}
	}
}

// WithSize sets the chunk size in runes.
func WithSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithOverlap sets the overlap budget in runes.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// New creates a Chunker with the default fixed strategy and 500/50 sizing.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		strategy: StrategyFixed,
		size:     DefaultSize,
		overlap:  DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Split divides the input into chunks. Whitespace-only input yields nil.
// Input at or under the chunk size yields exactly one chunk holding the
// trimmed text.
func (c *Chunker) Split(input string) []Chunk {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) <= c.size {
		start := len(input) - len(strings.TrimLeftFunc(input, unicode.IsSpace))
		return []Chunk{{Text: trimmed, Index: 0, Start: start, End: start + len(trimmed)}}
	}

	switch c.strategy {
	case StrategySentence, StrategySemantic:
		return c.splitSentences(input)
	case StrategyParagraph:
		return c.splitParagraphs(input)
	default:
		return c.splitFixed(input)
	}
}

/* ───────── fixed ───────── */

func (c *Chunker) splitFixed(input string) []Chunk {
	lead := len(input) - len(strings.TrimLeftFunc(input, unicode.IsSpace))
	trimmed := strings.TrimSpace(input)
	runes := []rune(trimmed)

	// Byte offset of each rune boundary within the trimmed text.
	offs := make([]int, len(runes)+1)
	pos := 0
	for i, r := range runes {
		offs[i] = pos
		pos += utf8.RuneLen(r)
	}
	offs[len(runes)] = pos

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Text:  strings.TrimSpace(string(runes[start:end])),
			Index: len(chunks),
			Start: lead + offs[start],
			End:   lead + offs[end],
		})
		if end == len(runes) {
			break
		}

		overlapStart := end - c.overlap
		if overlapStart < start {
			overlapStart = start
		}
		next := splitPoint(runes, overlapStart, end)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// splitPoint scans backwards through [start, end) for the nearest
// whitespace or sentence terminator and returns the position just after
// it, so the next chunk starts on a natural boundary. Returns end when the
// window has no boundary.
func splitPoint(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if !isBoundaryRune(runes[i]) {
			continue
		}
		if i+1 < len(runes) && isGapRune(runes[i+1]) {
			return i + 2
		}
		return i + 1
	}
	return end
}

func isBoundaryRune(r rune) bool {
	switch r {
	case '\n', '\r', '.', '!', '?', ' ':
		return true
	default:
		return false
	}
}

func isGapRune(r rune) bool {
	return r == '\n' || r == '\r' || r == ' '
}

/* ───────── sentence ───────── */

// span is a byte range into the original input.
type span struct {
	start int
	end   int
}

func (s span) runes(input string) int {
	return utf8.RuneCountInString(input[s.start:s.end])
}

// sentenceSpans cuts the input after every terminator run. Every byte of
// the input belongs to exactly one span, so nothing is lost even when the
// text ends without a terminator.
func sentenceSpans(input string) []span {
	var spans []span
	start := 0
	inTerm := false
	for i, r := range input {
		isTerm := r == '.' || r == '!' || r == '?' || r == '\n'
		if inTerm && !isTerm {
			spans = append(spans, span{start, i})
			start = i
		}
		inTerm = isTerm
	}
	if start < len(input) {
		spans = append(spans, span{start, len(input)})
	}
	return spans
}

func (c *Chunker) splitSentences(input string) []Chunk {
	spans := sentenceSpans(input)

	var chunks []Chunk
	var cur []span
	curRunes := 0
	for _, sp := range spans {
		n := sp.runes(input)
		if curRunes > 0 && curRunes+n > c.size {
			chunks = appendSpanChunk(chunks, input, cur[0].start, cur[len(cur)-1].end)
			cur = overlapTail(input, cur, c.overlap)
			curRunes = 0
			for _, o := range cur {
				curRunes += o.runes(input)
			}
		}
		cur = append(cur, sp)
		curRunes += n
	}
	if len(cur) > 0 {
		chunks = appendSpanChunk(chunks, input, cur[0].start, cur[len(cur)-1].end)
	}
	return chunks
}

// overlapTail returns the trailing whole sentences that fit the overlap
// budget. A tail sentence longer than the budget means no overlap. The
// first span is never part of the tail, so the next chunk always starts
// past the previous one.
func overlapTail(input string, spans []span, budget int) []span {
	if budget <= 0 {
		return nil
	}
	total := 0
	i := len(spans)
	for i > 1 {
		n := spans[i-1].runes(input)
		if total+n > budget {
			break
		}
		total += n
		i--
	}
	if i == len(spans) {
		return nil
	}
	return append([]span(nil), spans[i:]...)
}

func appendSpanChunk(chunks []Chunk, input string, start, end int) []Chunk {
	text := strings.TrimSpace(input[start:end])
	if text == "" {
		return chunks
	}
	return append(chunks, Chunk{Text: text, Index: len(chunks), Start: start, End: end})
}

/* ───────── paragraph ───────── */

var blankLinePattern = regexp.MustCompile(`\n\s*\n+`)

// paragraphSpans splits on blank-line runs and trims each paragraph to its
// non-whitespace extent.
func paragraphSpans(input string) []span {
	var raw []span
	prev := 0
	for _, sep := range blankLinePattern.FindAllStringIndex(input, -1) {
		if sep[0] > prev {
			raw = append(raw, span{prev, sep[0]})
		}
		prev = sep[1]
	}
	if prev < len(input) {
		raw = append(raw, span{prev, len(input)})
	}

	spans := raw[:0]
	for _, sp := range raw {
		seg := input[sp.start:sp.end]
		lead := len(seg) - len(strings.TrimLeftFunc(seg, unicode.IsSpace))
		trail := len(seg) - len(strings.TrimRightFunc(seg, unicode.IsSpace))
		if s, e := sp.start+lead, sp.end-trail; s < e {
			spans = append(spans, span{s, e})
		}
	}
	return spans
}

func (c *Chunker) splitParagraphs(input string) []Chunk {
	spans := paragraphSpans(input)

	var chunks []Chunk
	var cur []span
	curRunes := 0
	for _, sp := range spans {
		n := sp.runes(input)
		if curRunes > 0 && curRunes+n+2 > c.size {
			chunks = appendParagraphChunk(chunks, input, cur)
			cur = overlapTail(input, cur, c.overlap)
			curRunes = 0
			for _, o := range cur {
				curRunes += o.runes(input) + 2
			}
		}
		cur = append(cur, sp)
		curRunes += n
		if len(cur) > 1 {
			curRunes += 2
		}
	}
	if len(cur) > 0 {
		chunks = appendParagraphChunk(chunks, input, cur)
	}
	return chunks
}

// appendParagraphChunk joins the paragraphs with a blank line. Offsets
// still bound the original span, separator bytes included.
func appendParagraphChunk(chunks []Chunk, input string, spans []span) []Chunk {
	if len(spans) == 0 {
		return chunks
	}
	parts := make([]string, len(spans))
	for i, sp := range spans {
		parts[i] = input[sp.start:sp.end]
	}
	return append(chunks, Chunk{
		Text:  strings.Join(parts, "\n\n"),
		Index: len(chunks),
		Start: spans[0].start,
		End:   spans[len(spans)-1].end,
	})
}
