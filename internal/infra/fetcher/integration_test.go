//go:build integration

package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire-search/internal/infra/fetcher"
)

// realisticPage has the chrome of an actual publisher page: nav, sidebar,
// footer. Only the article body should survive extraction.
const realisticPage = `<!DOCTYPE html>
<html lang="ko">
<head>
	<meta charset="UTF-8">
	<title>통합 테스트 기사</title>
</head>
<body>
	<header>
		<nav>
			<a href="/">홈</a>
			<a href="/economy">경제</a>
			<a href="/markets">증권</a>
		</nav>
	</header>
	<main>
		<article>
			<h1>국내 배터리 3사가 북미 합작 공장 증설 계획을 내놨다</h1>
			<p class="byline">김기자 기자</p>
			<p>배터리 업계가 북미 현지 생산 능력을 확대한다. 완성차 업체와의
			합작 법인을 통해 내년까지 신규 라인을 증설하고, 원통형 규격
			양산 시점도 앞당긴다는 계획이다. 수주 잔고가 사상 최대 수준으로
			늘어난 데 따른 대응으로 풀이된다.</p>
			<p>원자재 조달처 다변화도 함께 추진된다. 업계 관계자는 주요 광물의
			장기 공급 계약을 늘려 가격 변동에 대한 노출을 줄이고 있다고
			설명했다. 현지 보조금 요건을 맞추기 위한 공급망 재편도 진행 중이다.</p>
		</article>
	</main>
	<aside>
		<h2>많이 본 뉴스</h2>
		<ul><li><a href="/popular/1">인기 기사 1</a></li></ul>
	</aside>
	<footer>회사 소개 · 구독 안내 · 저작권 정책</footer>
</body>
</html>`

func TestIntegration_ExtractStripsChrome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(realisticPage))
	}))
	defer server.Close()

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	f := fetcher.NewReadabilityFetcher(cfg)

	content, err := f.FetchContent(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, content, "수주 잔고가 사상 최대")
	assert.Contains(t, content, "장기 공급 계약")
	// 내비게이션과 푸터는 본문에서 제거된다.
	assert.NotContains(t, content, "많이 본 뉴스")
	assert.NotContains(t, content, "저작권 정책")
}

func TestIntegration_ConcurrentFetches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(realisticPage))
	}))
	defer server.Close()

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	f := fetcher.NewReadabilityFetcher(cfg)

	// 인제스트 워커 풀과 같은 방식으로 동시에 두드려 본다.
	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = f.FetchContent(context.Background(), server.URL)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}
}

func TestIntegration_RedirectChain(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(realisticPage))
	}))
	defer final.Close()

	middle := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer middle.Close()

	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, middle.URL, http.StatusFound)
	}))
	defer first.Close()

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	f := fetcher.NewReadabilityFetcher(cfg)

	content, err := f.FetchContent(context.Background(), first.URL)
	require.NoError(t, err)
	assert.Contains(t, content, "수주 잔고가 사상 최대")
}
