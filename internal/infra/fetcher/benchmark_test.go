package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newswire-search/internal/infra/fetcher"
)

// generateArticleHTML builds a page whose article body is roughly
// bodyBytes long, padded with sentence-shaped filler.
func generateArticleHTML(bodyBytes int) string {
	var sb strings.Builder
	sentence := "수출이 늘고 설비 투자가 이어지면서 관련 업계의 생산 지표가 개선되고 있다는 분석이 나온다. "
	for sb.Len() < bodyBytes {
		sb.WriteString(sentence)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>벤치마크 기사</title></head>
<body>
	<article>
		<h1>벤치마크용 기사 제목</h1>
		<p>%s</p>
	</article>
</body>
</html>`, sb.String())
}

func BenchmarkFetchContent(b *testing.B) {
	page := generateArticleHTML(3000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	f := fetcher.NewReadabilityFetcher(cfg)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.FetchContent(ctx, server.URL); err != nil {
			b.Fatalf("FetchContent() error = %v", err)
		}
	}
}

func BenchmarkFetchContent_LargePage(b *testing.B) {
	page := generateArticleHTML(200 * 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	f := fetcher.NewReadabilityFetcher(cfg)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.FetchContent(ctx, server.URL); err != nil {
			b.Fatalf("FetchContent() error = %v", err)
		}
	}
}

func BenchmarkFetchContent_Parallel(b *testing.B) {
	page := generateArticleHTML(3000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	f := fetcher.NewReadabilityFetcher(cfg)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := f.FetchContent(context.Background(), server.URL); err != nil {
				b.Fatalf("FetchContent() error = %v", err)
			}
		}
	})
}
