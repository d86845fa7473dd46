package chunker_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"newswire-search/internal/chunker"
)

func TestChunker_Split_Empty(t *testing.T) {
	c := chunker.New()
	for _, input := range []string{"", "   ", "\n\t\n"} {
		if got := c.Split(input); got != nil {
			t.Errorf("Split(%q) = %v, want nil", input, got)
		}
	}
}

func TestChunker_Split_ShortInputSingleChunk(t *testing.T) {
	c := chunker.New()

	input := "  안녕하세요  "
	got := c.Split(input)
	if len(got) != 1 {
		t.Fatalf("Split returned %d chunks, want 1", len(got))
	}
	if got[0].Text != "안녕하세요" {
		t.Errorf("Text = %q, want trimmed input", got[0].Text)
	}
	if got[0].Index != 0 {
		t.Errorf("Index = %d, want 0", got[0].Index)
	}
	// Offsets are byte positions in the original, pre-trim input.
	if got[0].Start != 2 || got[0].End != 2+len("안녕하세요") {
		t.Errorf("offsets = [%d, %d), want [2, %d)", got[0].Start, got[0].End, 2+len("안녕하세요"))
	}
}

func TestChunker_Split_FixedOffsets(t *testing.T) {
	c := chunker.New(chunker.WithSize(5), chunker.WithOverlap(2))

	got := c.Split("abcd efgh ijkl")
	want := []chunker.Chunk{
		{Text: "abcd", Index: 0, Start: 0, End: 5},
		{Text: "efgh", Index: 1, Start: 5, End: 10},
		{Text: "ijkl", Index: 2, Start: 10, End: 14},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestChunker_Split_FixedBound(t *testing.T) {
	// 100 sentences of 15 runes each.
	body := strings.TrimSpace(strings.Repeat("이것은 테스트 문장입니다. ", 100))
	c := chunker.New(chunker.WithStrategy(chunker.StrategyFixed),
		chunker.WithSize(500), chunker.WithOverlap(50))

	chunks := c.Split(body)
	if n := len(chunks); n < 3 || n > 4 {
		t.Fatalf("got %d chunks, want 3 or 4", n)
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if n := utf8.RuneCountInString(ch.Text); n > 500 {
			t.Errorf("chunk %d is %d runes, exceeds the size bound", i, n)
		}
		if ch.Start < 0 || ch.End > len(body) || ch.Start >= ch.End {
			t.Errorf("chunk %d has bad offsets [%d, %d)", i, ch.Start, ch.End)
		}
	}

	// Every non-whitespace byte of the input appears in some chunk span.
	covered := make([]bool, len(body))
	for _, ch := range chunks {
		for i := ch.Start; i < ch.End; i++ {
			covered[i] = true
		}
	}
	for i := 0; i < len(body); i++ {
		if body[i] != ' ' && !covered[i] {
			t.Fatalf("byte %d not covered by any chunk", i)
		}
	}
}

func TestChunker_Split_FixedNoBoundaries(t *testing.T) {
	// Solid text without any split points falls back to hard cuts.
	body := strings.Repeat("가", 1200)
	c := chunker.New(chunker.WithSize(500), chunker.WithOverlap(50))

	chunks := c.Split(body)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n > 500 {
			t.Errorf("chunk %d is %d runes", i, n)
		}
	}
}

func TestChunker_Split_SentencePacking(t *testing.T) {
	input := "첫 번째 문장입니다. 두 번째 문장입니다. 세 번째 문장입니다."
	c := chunker.New(chunker.WithStrategy(chunker.StrategySentence),
		chunker.WithSize(25), chunker.WithOverlap(0))

	chunks := c.Split(input)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "첫 번째 문장입니다. 두 번째 문장입니다." {
		t.Errorf("chunk 0 = %q", chunks[0].Text)
	}
	if chunks[1].Text != "세 번째 문장입니다." {
		t.Errorf("chunk 1 = %q", chunks[1].Text)
	}
}

func TestChunker_Split_SentenceOverlap(t *testing.T) {
	input := "첫 번째 문장입니다. 두 번째 문장입니다. 세 번째 문장입니다."
	c := chunker.New(chunker.WithStrategy(chunker.StrategySentence),
		chunker.WithSize(25), chunker.WithOverlap(15))

	chunks := c.Split(input)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	// The second chunk re-carries the tail sentence of the first.
	if !strings.HasPrefix(chunks[1].Text, "두 번째 문장입니다.") {
		t.Errorf("chunk 1 = %q, want it to start with the overlap sentence", chunks[1].Text)
	}
	if chunks[1].Start >= chunks[0].End {
		t.Errorf("chunks do not overlap: [%d, %d) then [%d, %d)",
			chunks[0].Start, chunks[0].End, chunks[1].Start, chunks[1].End)
	}
}

func TestChunker_Split_SentenceKeepsUnterminatedTail(t *testing.T) {
	input := "마침표 있는 문장입니다. 마침표 없는 꼬리"
	c := chunker.New(chunker.WithStrategy(chunker.StrategySentence),
		chunker.WithSize(15), chunker.WithOverlap(0))

	chunks := c.Split(input)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if chunks[1].Text != "마침표 없는 꼬리" {
		t.Errorf("tail chunk = %q, the unterminated tail must not be dropped", chunks[1].Text)
	}
}

func TestChunker_Split_OversizedSentenceStaysWhole(t *testing.T) {
	input := strings.Repeat("가", 600)
	c := chunker.New(chunker.WithStrategy(chunker.StrategySentence),
		chunker.WithSize(500), chunker.WithOverlap(50))

	chunks := c.Split(input)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 oversized chunk", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0].Text); n != 600 {
		t.Errorf("chunk is %d runes, want 600", n)
	}
}

func TestChunker_Split_SemanticMatchesSentence(t *testing.T) {
	input := strings.TrimSpace(strings.Repeat("의미 단위 분할을 시험합니다. ", 60))

	sentence := chunker.New(chunker.WithStrategy(chunker.StrategySentence)).Split(input)
	semantic := chunker.New(chunker.WithStrategy(chunker.StrategySemantic)).Split(input)

	if len(sentence) != len(semantic) {
		t.Fatalf("semantic produced %d chunks, sentence %d", len(semantic), len(sentence))
	}
	for i := range sentence {
		if sentence[i] != semantic[i] {
			t.Errorf("chunk %d differs: %+v vs %+v", i, sentence[i], semantic[i])
		}
	}
}

func TestChunker_Split_Paragraphs(t *testing.T) {
	input := "가나\n\n다라"
	c := chunker.New(chunker.WithStrategy(chunker.StrategyParagraph),
		chunker.WithSize(2), chunker.WithOverlap(0))

	chunks := c.Split(input)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "가나" || chunks[0].Start != 0 || chunks[0].End != len("가나") {
		t.Errorf("chunk 0 = %+v", chunks[0])
	}
	wantStart := len("가나\n\n")
	if chunks[1].Text != "다라" || chunks[1].Start != wantStart {
		t.Errorf("chunk 1 = %+v, want start %d", chunks[1], wantStart)
	}
}

func TestChunker_Split_ParagraphsJoinUntilBound(t *testing.T) {
	paras := []string{
		strings.Repeat("가", 40),
		strings.Repeat("나", 40),
		strings.Repeat("다", 40),
	}
	input := strings.Join(paras, "\n\n  \n")
	c := chunker.New(chunker.WithStrategy(chunker.StrategyParagraph),
		chunker.WithSize(90), chunker.WithOverlap(0))

	chunks := c.Split(input)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if want := paras[0] + "\n\n" + paras[1]; chunks[0].Text != want {
		t.Errorf("chunk 0 = %q, want joined first two paragraphs", chunks[0].Text)
	}
	if chunks[1].Text != paras[2] {
		t.Errorf("chunk 1 = %q", chunks[1].Text)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		raw  string
		want chunker.Strategy
	}{
		{"sentence", chunker.StrategySentence},
		{"SENTENCE", chunker.StrategySentence},
		{" paragraph ", chunker.StrategyParagraph},
		{"semantic", chunker.StrategySemantic},
		{"fixed", chunker.StrategyFixed},
		{"bogus", chunker.StrategyFixed},
		{"", chunker.StrategyFixed},
	}
	for _, tt := range tests {
		if got := chunker.ParseStrategy(tt.raw); got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
