package query_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newswire-search/internal/domain/entity"
	queryHandler "newswire-search/internal/handler/http/query"
	"newswire-search/internal/infra/vectorindex"
	"newswire-search/internal/repository"
	queryUC "newswire-search/internal/usecase/query"
)

/* ───────── 스텁 구현 ───────── */

// fakeEmbedder는 항상 같은 단위 벡터를 돌려주는 Embedder 스텁.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                    { return len(f.vector) }
func (f *fakeEmbedder) ModelID() string                    { return "fake-model" }
func (f *fakeEmbedder) Provider() entity.EmbeddingProvider { return entity.EmbeddingProviderHash }

// fakeVectors는 VectorSearcher 스텁.
type fakeVectors struct {
	matches []vectorindex.Match
	err     error
}

func (f *fakeVectors) Query(_ context.Context, _ []float32, topK int, _ *vectorindex.Filter) ([]vectorindex.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

// stubStore는 검색 경로에 필요한 부분만 구현한 ArticleRepository.
type stubStore struct {
	byID      map[int64]*entity.Article
	keyword   []*entity.Article
	searchErr error
	bulkErr   error
}

func newStubStore(articles ...*entity.Article) *stubStore {
	s := &stubStore{byID: map[int64]*entity.Article{}}
	for _, a := range articles {
		s.byID[a.InternalID] = a
	}
	return s
}

func (s *stubStore) GetByIDs(_ context.Context, ids []int64) ([]*entity.Article, error) {
	if s.bulkErr != nil {
		return nil, s.bulkErr
	}
	var out []*entity.Article
	for _, id := range ids {
		if a, ok := s.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) SearchKeyword(_ context.Context, _ []string, _ repository.ArticleSearchFilters) ([]*entity.Article, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.keyword, nil
}

func (s *stubStore) Create(_ context.Context, _ *entity.Article) error { return nil }
func (s *stubStore) Update(_ context.Context, _ *entity.Article) error { return nil }
func (s *stubStore) Get(_ context.Context, _ int64) (*entity.Article, error) {
	return nil, entity.ErrNotFound
}
func (s *stubStore) GetByExternalID(_ context.Context, _ string) (*entity.Article, error) {
	return nil, entity.ErrNotFound
}
func (s *stubStore) FindByContentHash(_ context.Context, _ string) (*entity.Article, error) {
	return nil, entity.ErrNotFound
}
func (s *stubStore) ListRecent(_ context.Context, _ int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubStore) ListUnembedded(_ context.Context, _ int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubStore) ListEmbedded(_ context.Context, _ int64, _ int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubStore) ListDuplicateContentHashes(_ context.Context) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubStore) CountArticles(_ context.Context) (int64, error) { return 0, nil }
func (s *stubStore) MarkEmbedded(_ context.Context, _ []int64, _ string, _ time.Time) error {
	return nil
}
func (s *stubStore) SetProcessingError(_ context.Context, _ []int64, _ string) error { return nil }
func (s *stubStore) Tombstone(_ context.Context, _ []int64) error                    { return nil }

var fixedNow = time.Date(2024, 6, 19, 12, 0, 0, 0, time.UTC)

func fixtureArticle() *entity.Article {
	return &entity.Article{
		InternalID:  1,
		ExternalID:  "AKR20240619001",
		Title:       "금리인상 발표",
		Summary:     "한국은행이 기준금리를 인상했다.",
		Body:        "한국은행이 기준금리를 0.25%포인트 인상했다.",
		PublishTime: fixedNow.AddDate(0, 0, -3),
		ArticleType: entity.ArticleTypeFinancial,
	}
}

// newHandler는 기사 하나가 양쪽 백엔드에서 잡히는 최소 구성으로 핸들러를 만든다.
// generator가 없으므로 템플릿 폴백이 답변을 생성한다.
func newHandler(store *stubStore, vectors *fakeVectors) queryHandler.Handler {
	analyzer := queryUC.NewAnalyzer(queryUC.WithClock(func() time.Time { return fixedNow }))
	engine := queryUC.NewEngine(store, &fakeEmbedder{vector: []float32{1, 0, 0}}, vectors,
		queryUC.WithEngineClock(func() time.Time { return fixedNow }))
	svc := queryUC.NewService(analyzer, engine, nil)
	return queryHandler.Handler{Svc: svc, Logger: slog.New(slog.DiscardHandler)}
}

func postQuery(t *testing.T, h queryHandler.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

/* ───────── 테스트 본문 ───────── */

func TestHandler_Query(t *testing.T) {
	article := fixtureArticle()
	store := newStubStore(article)
	store.keyword = []*entity.Article{article}
	vectors := &fakeVectors{matches: []vectorindex.Match{{ArticleID: 1, Score: 0.9}}}
	h := newHandler(store, vectors)

	rec := postQuery(t, h, `{"query":"최근 금리 동향은?","top_k":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// 답변은 "response" 키로 내려간다
	if _, ok := got["response"]; !ok {
		t.Error("expected response field in body")
	}

	var docs []queryUC.RetrievedDoc
	if err := json.Unmarshal(got["retrieved_docs"], &docs); err != nil {
		t.Fatalf("decode retrieved_docs: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 retrieved doc, got %d", len(docs))
	}
	if docs[0].ArticleID != 1 || docs[0].ExternalID != "AKR20240619001" {
		t.Errorf("unexpected doc: %+v", docs[0])
	}
}

func TestHandler_Query_BadRequests(t *testing.T) {
	article := fixtureArticle()
	store := newStubStore(article)
	store.keyword = []*entity.Article{article}
	h := newHandler(store, &fakeVectors{})

	tests := []struct {
		name string
		body string
	}{
		{"빈 질의", `{"query":"   "}`},
		{"잘못된 JSON", `{"query":`},
		{"알 수 없는 필드", `{"query":"금리","topk":5}`},
		{"음수 가중치", `{"query":"금리","weights":{"vector":-0.5,"keyword":0.3,"rerank":0.1}}`},
		{"잘못된 날짜", `{"query":"금리","filters":{"from":"19-06-2024"}}`},
		{"역전된 날짜 범위", `{"query":"금리","filters":{"from":"2024-06-20","to":"2024-06-19"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postQuery(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_Query_AllBackendsFailed(t *testing.T) {
	store := newStubStore()
	store.searchErr = errors.New("store unavailable")
	vectors := &fakeVectors{err: errors.New("index unavailable")}
	h := newHandler(store, vectors)

	rec := postQuery(t, h, `{"query":"금리 동향"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Query_DegradedToKeywordOnly(t *testing.T) {
	article := fixtureArticle()
	store := newStubStore(article)
	store.keyword = []*entity.Article{article}
	// 벡터 백엔드만 실패하면 키워드 검색으로 응답한다
	vectors := &fakeVectors{err: errors.New("index unavailable")}
	h := newHandler(store, vectors)

	rec := postQuery(t, h, `{"query":"금리 동향"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Degraded bool   `json:"degraded"`
		Mode     string `json:"mode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Degraded {
		t.Error("expected degraded response")
	}
}
