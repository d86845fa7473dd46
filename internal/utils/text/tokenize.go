package text

import (
	"sort"
	"strings"
)

// stopwords are Korean particles, conjunctions, demonstratives, and filler
// verbs that carry no topical signal, plus their common spoken variants.
var stopwords = map[string]struct{}{
	"이": {}, "가": {}, "을": {}, "를": {}, "에": {}, "의": {}, "로": {}, "으로": {},
	"와": {}, "과": {}, "는": {}, "은": {}, "도": {}, "만": {}, "부터": {}, "까지": {},
	"에서": {}, "에게": {}, "한테": {}, "께": {}, "보다": {}, "처럼": {}, "같이": {},
	"만큼": {}, "쯤": {}, "정도": {}, "뿐": {}, "뿐만": {}, "아니라": {},
	"그리고": {}, "또한": {}, "또": {}, "그런데": {}, "하지만": {}, "그러나": {},
	"따라서": {}, "그러므로": {}, "그래서": {}, "왜냐하면": {},
	"때문에": {}, "위해": {}, "대해": {}, "관해": {}, "대한": {}, "관한": {}, "위한": {},
	"것": {}, "거": {}, "게": {}, "걸": {}, "거야": {}, "거예요": {}, "거죠": {},
	"거지": {}, "거네": {}, "거다": {},
	"있다": {}, "없다": {}, "되다": {}, "하다": {}, "이다": {}, "아니다": {}, "그렇다": {},
	"이것": {}, "그것": {}, "저것": {}, "이런": {}, "그런": {}, "저런": {},
	"이렇게": {}, "그렇게": {}, "저렇게": {},
	"여기": {}, "거기": {}, "저기": {}, "어디": {}, "언제": {}, "왜": {},
	"어떻게": {}, "무엇": {}, "누구": {}, "어느": {},
}

// IsStopword reports whether tok is in the Korean stopword set.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Tokens normalizes s and splits it into word tokens. The result is nil for
// text that normalizes to the empty string.
func Tokens(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// ContentTokens returns Tokens(s) with stopwords and single-rune tokens
// removed. Single-rune tokens are dropped because isolated josa and broken
// syllables dominate them in Korean copy.
func ContentTokens(s string) []string {
	raw := Tokens(s)
	if len(raw) == 0 {
		return nil
	}
	toks := make([]string, 0, len(raw))
	for _, tok := range raw {
		if IsStopword(tok) || CountRunes(tok) < 2 {
			continue
		}
		toks = append(toks, tok)
	}
	if len(toks) == 0 {
		return nil
	}
	return toks
}

// TopKeywords returns the n most frequent content tokens of s in descending
// frequency order. Ties keep first-appearance order, so the result is
// deterministic for a given input.
func TopKeywords(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	toks := ContentTokens(s)
	if len(toks) == 0 {
		return nil
	}

	counts := make(map[string]int, len(toks))
	order := make([]string, 0, len(toks))
	for _, tok := range toks {
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// OverlapRatio reports the fraction of distinct query tokens that also occur
// in field: |query ∩ field| / |query|. An empty query scores 0.
func OverlapRatio(query, field []string) float64 {
	if len(query) == 0 {
		return 0
	}
	fieldSet := make(map[string]struct{}, len(field))
	for _, tok := range field {
		fieldSet[tok] = struct{}{}
	}
	seen := make(map[string]struct{}, len(query))
	matched := 0
	for _, tok := range query {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := fieldSet[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}
