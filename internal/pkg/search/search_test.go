package search

import (
	"errors"
	"testing"
)

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr error
	}{
		{
			name: "single keyword",
			raw:  "반도체",
			want: []string{"반도체"},
		},
		{
			name: "multiple keywords",
			raw:  "삼성전자 실적 발표",
			want: []string{"삼성전자", "실적", "발표"},
		},
		{
			name: "collapses whitespace runs",
			raw:  "  금리\t인상\n전망  ",
			want: []string{"금리", "인상", "전망"},
		},
		{
			name: "empty input",
			raw:  "",
			want: []string{},
		},
		{
			name: "whitespace only",
			raw:  "   \t\n  ",
			want: []string{},
		},
		{
			name:    "too many keywords",
			raw:     "a b c d e f",
			wantErr: ErrTooManyKeywords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeywords(tt.raw, DefaultMaxKeywordCount, DefaultMaxKeywordLength)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseKeywords() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKeywords() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKeywords() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseKeywords_KeywordTooLong(t *testing.T) {
	long := make([]rune, DefaultMaxKeywordLength+1)
	for i := range long {
		long[i] = '가'
	}

	_, err := ParseKeywords(string(long), DefaultMaxKeywordCount, DefaultMaxKeywordLength)
	if !errors.Is(err, ErrKeywordTooLong) {
		t.Fatalf("ParseKeywords() error = %v, want ErrKeywordTooLong", err)
	}
}

func TestParseKeywords_LimitsDisabled(t *testing.T) {
	// Zero limits mean no enforcement
	got, err := ParseKeywords("a b c d e f g h", 0, 0)
	if err != nil {
		t.Fatalf("ParseKeywords() error = %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
}

func TestEscapeILIKE(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		want    string
	}{
		{
			name:    "plain keyword",
			keyword: "금리",
			want:    "%금리%",
		},
		{
			name:    "percent escaped",
			keyword: "100%",
			want:    `%100\%%`,
		},
		{
			name:    "underscore escaped",
			keyword: "KOSPI_200",
			want:    `%KOSPI\_200%`,
		},
		{
			name:    "backslash escaped",
			keyword: `a\b`,
			want:    `%a\\b%`,
		},
		{
			name:    "empty keyword",
			keyword: "",
			want:    "%%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeILIKE(tt.keyword); got != tt.want {
				t.Errorf("EscapeILIKE(%q) = %q, want %q", tt.keyword, got, tt.want)
			}
		})
	}
}
