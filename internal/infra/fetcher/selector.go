package fetcher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors are tried in order when readability extraction fails.
// Korean publisher CMSes mostly fall into one of these shapes; the chain
// ends with <article> and a bare body paragraph sweep.
var contentSelectors = []string{
	"#articleBodyContents",
	"#article-view-content-div",
	"div.article_body",
	"div.news_body",
	"div#newsEndContents",
	"article",
}

// extractBySelectors pulls article text out of raw HTML with a CSS
// selector chain. It is the degraded path behind readability: cruder, but
// it salvages pages whose markup confuses the readability scorer.
func extractBySelectors(htmlBytes []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return "", fmt.Errorf("%w: parse HTML: %v", ErrExtractFailed, err)
	}

	// 스크립트와 광고 영역은 텍스트 추출 전에 제거한다.
	doc.Find("script, style, iframe, noscript").Remove()

	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := normalizeExtractedText(sel.Text())
		if text != "" {
			return text, nil
		}
	}

	// 마지막 수단으로 본문 단락을 직접 모은다.
	var parts []string
	doc.Find("body p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := normalizeExtractedText(strings.Join(parts, "\n"))
	if text == "" {
		return "", fmt.Errorf("%w: no readable content found", ErrExtractFailed)
	}
	return text, nil
}

// normalizeExtractedText collapses whitespace runs left behind by markup
// removal while keeping paragraph breaks.
func normalizeExtractedText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
