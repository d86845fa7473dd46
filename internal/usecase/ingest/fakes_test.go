package ingest_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/infra/source"
	"newswire-search/internal/repository"
	"newswire-search/internal/usecase/indexing"
	"newswire-search/internal/usecase/ingest"
)

/* ───────── 스텁 구현 ───────── */

// fakeSources는 SourceRepository 스텁. 워터마크 전진 호출을 기록한다.
type fakeSources struct {
	mu         sync.Mutex
	list       []*entity.Source
	watermarks map[int64]time.Time
	listErr    error
}

func newFakeSources(srcs ...*entity.Source) *fakeSources {
	return &fakeSources{list: srcs, watermarks: map[int64]time.Time{}}
}

func (f *fakeSources) Get(_ context.Context, id int64) (*entity.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.list {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (f *fakeSources) List(_ context.Context) ([]*entity.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.Source(nil), f.list...), nil
}

func (f *fakeSources) ListActive(_ context.Context) ([]*entity.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*entity.Source
	for _, s := range f.list {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSources) Create(_ context.Context, s *entity.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, s)
	return nil
}

func (f *fakeSources) Update(_ context.Context, _ *entity.Source) error { return nil }
func (f *fakeSources) Delete(_ context.Context, _ int64) error          { return nil }

func (f *fakeSources) AdvanceWatermark(_ context.Context, id int64, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// 저장소와 동일하게 뒤로 가는 전진은 무시한다.
	if prev, ok := f.watermarks[id]; ok && !t.After(prev) {
		return nil
	}
	f.watermarks[id] = t
	// 실제 저장소처럼 last_crawled_at도 갱신해 다음 Run의 since에 반영한다.
	for _, s := range f.list {
		if s.ID == id {
			mark := t
			s.LastCrawledAt = &mark
		}
	}
	return nil
}

func (f *fakeSources) watermark(id int64) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.watermarks[id]
	return t, ok
}

// fakeArticles는 인메모리 ArticleRepository. 워커가 동시에 접근하므로
// 모든 메서드가 뮤텍스로 보호된다.
type fakeArticles struct {
	mu     sync.Mutex
	nextID int64
	byExt  map[string]*entity.Article
	order  []string // 삽입 순서의 external ID

	createErr error
	listErr   error
	findErr   error
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{byExt: map[string]*entity.Article{}}
}

func (f *fakeArticles) seed(articles ...*entity.Article) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range articles {
		f.nextID++
		c := *a
		if c.InternalID == 0 {
			c.InternalID = f.nextID
		} else if c.InternalID > f.nextID {
			f.nextID = c.InternalID
		}
		f.byExt[c.ExternalID] = &c
		f.order = append(f.order, c.ExternalID)
	}
}

func (f *fakeArticles) get(externalID string) *entity.Article {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byExt[externalID]; ok {
		c := *a
		return &c
	}
	return nil
}

func (f *fakeArticles) Create(_ context.Context, article *entity.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, dup := f.byExt[article.ExternalID]; dup {
		return entity.ErrDuplicate
	}
	f.nextID++
	article.InternalID = f.nextID
	c := *article
	f.byExt[c.ExternalID] = &c
	f.order = append(f.order, c.ExternalID)
	return nil
}

func (f *fakeArticles) Update(_ context.Context, article *entity.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *article
	f.byExt[c.ExternalID] = &c
	return nil
}

func (f *fakeArticles) Get(_ context.Context, id int64) (*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byExt {
		if a.InternalID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (f *fakeArticles) GetByExternalID(_ context.Context, externalID string) (*entity.Article, error) {
	if a := f.get(externalID); a != nil {
		return a, nil
	}
	return nil, entity.ErrNotFound
}

func (f *fakeArticles) GetByIDs(_ context.Context, ids []int64) ([]*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Article
	for _, id := range ids {
		for _, a := range f.byExt {
			if a.InternalID == id && !a.Tombstoned {
				c := *a
				out = append(out, &c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeArticles) FindByContentHash(_ context.Context, hash string) (*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, ext := range f.order {
		a := f.byExt[ext]
		if !a.Tombstoned && a.ContentHash == hash {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeArticles) ListRecent(_ context.Context, limit int) ([]*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []*entity.Article
	for _, ext := range f.order {
		a := f.byExt[ext]
		if a.Tombstoned {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngestedAt.After(out[j].IngestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeArticles) ListUnembedded(_ context.Context, limit int) ([]*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*entity.Article
	for _, ext := range f.order {
		a := f.byExt[ext]
		if a.IsEmbedded || a.Tombstoned || a.ProcessingError != "" {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngestedAt.Before(out[j].IngestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeArticles) ListEmbedded(_ context.Context, afterID int64, limit int) ([]*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Article
	for _, ext := range f.order {
		a := f.byExt[ext]
		if !a.IsEmbedded || a.Tombstoned || a.InternalID <= afterID {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalID < out[j].InternalID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeArticles) ListDuplicateContentHashes(_ context.Context) ([]*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, a := range f.byExt {
		if !a.Tombstoned {
			counts[a.ContentHash]++
		}
	}
	var out []*entity.Article
	for _, ext := range f.order {
		a := f.byExt[ext]
		if !a.Tombstoned && counts[a.ContentHash] > 1 {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeArticles) SearchKeyword(_ context.Context, _ []string, _ repository.ArticleSearchFilters) ([]*entity.Article, error) {
	return nil, nil
}

func (f *fakeArticles) CountArticles(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.byExt {
		if !a.Tombstoned {
			n++
		}
	}
	return n, nil
}

func (f *fakeArticles) MarkEmbedded(_ context.Context, ids []int64, model string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byExt {
		for _, id := range ids {
			if a.InternalID == id {
				a.IsEmbedded = true
				a.EmbeddingModel = model
				t := at
				a.EmbeddedAt = &t
				a.ProcessingError = ""
			}
		}
	}
	return nil
}

func (f *fakeArticles) SetProcessingError(_ context.Context, ids []int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byExt {
		for _, id := range ids {
			if a.InternalID == id {
				a.ProcessingError = message
			}
		}
	}
	return nil
}

func (f *fakeArticles) Tombstone(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byExt {
		for _, id := range ids {
			if a.InternalID == id {
				a.Tombstoned = true
			}
		}
	}
	return nil
}

// fakeMetadata는 MetadataRepository 스텁
type fakeMetadata struct {
	mu        sync.Mutex
	byArticle map[int64]*entity.MetadataRecord
	upsertErr error
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{byArticle: map[int64]*entity.MetadataRecord{}}
}

func (f *fakeMetadata) Upsert(_ context.Context, record *entity.MetadataRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.byArticle[record.ArticleID] = record
	return nil
}

func (f *fakeMetadata) GetByArticleID(_ context.Context, articleID int64) (*entity.MetadataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byArticle[articleID]; ok {
		return m, nil
	}
	return nil, entity.ErrNotFound
}

func (f *fakeMetadata) Search(_ context.Context, _ repository.MetadataFilters) ([]*entity.MetadataRecord, error) {
	return nil, nil
}

// fakeVectors는 EmbeddingRepository 스텁
type fakeVectors struct {
	mu        sync.Mutex
	byArticle map[int64][]*entity.EmbeddingRecord
	upsertErr error
	findErr   error
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{byArticle: map[int64][]*entity.EmbeddingRecord{}}
}

func (f *fakeVectors) UpsertBatch(_ context.Context, records []*entity.EmbeddingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, r := range records {
		replaced := false
		for i, prev := range f.byArticle[r.ArticleID] {
			if prev.ChunkIndex == r.ChunkIndex {
				f.byArticle[r.ArticleID][i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			f.byArticle[r.ArticleID] = append(f.byArticle[r.ArticleID], r)
		}
	}
	return nil
}

func (f *fakeVectors) FindByArticleID(_ context.Context, articleID int64) ([]*entity.EmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.EmbeddingRecord(nil), f.byArticle[articleID]...), nil
}

func (f *fakeVectors) FindByArticleIDs(_ context.Context, articleIDs []int64) ([]*entity.EmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []*entity.EmbeddingRecord
	for _, id := range articleIDs {
		out = append(out, f.byArticle[id]...)
	}
	return out, nil
}

func (f *fakeVectors) DeleteByArticleID(_ context.Context, articleID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.byArticle[articleID]))
	delete(f.byArticle, articleID)
	return n, nil
}

func (f *fakeVectors) CountVectors(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, records := range f.byArticle {
		n += int64(len(records))
	}
	return n, nil
}

// fakeLogs는 ProcessingLogRepository 스텁
type fakeLogs struct {
	mu      sync.Mutex
	entries []*entity.ProcessingLogEntry
}

func (f *fakeLogs) Append(_ context.Context, e *entity.ProcessingLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLogs) AppendBatch(_ context.Context, entries []*entity.ProcessingLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLogs) ListByArticle(_ context.Context, articleID string, _ int) ([]*entity.ProcessingLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.ProcessingLogEntry
	for _, e := range f.entries {
		if e.ArticleID == articleID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogs) ListRecent(_ context.Context, phase entity.Phase, limit int) ([]*entity.ProcessingLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.ProcessingLogEntry
	for _, e := range f.entries {
		if e.Phase == phase {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeLogs) CountSince(_ context.Context, phase entity.Phase, _ time.Time) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int64{}
	for _, e := range f.entries {
		if e.Phase == phase {
			counts[e.Status]++
		}
	}
	return counts, nil
}

func (f *fakeLogs) byPhase(phase entity.Phase, status string) []*entity.ProcessingLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.ProcessingLogEntry
	for _, e := range f.entries {
		if e.Phase == phase && e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// fakeLister는 준비된 문서를 내놓고 워터마크·아카이브 호출을 기록한다.
type fakeLister struct {
	mu          sync.Mutex
	docs        []source.Document
	discoverErr error
	archiveErr  error
	sinceSeen   []time.Time
	archived    []string
}

func (f *fakeLister) Discover(_ context.Context, _ *entity.Source, since time.Time) ([]source.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceSeen = append(f.sinceSeen, since)
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	var out []source.Document
	for _, doc := range f.docs {
		if doc.ModTime.After(since) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeLister) Archive(_ *entity.Source, doc source.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.archiveErr != nil {
		return f.archiveErr
	}
	f.archived = append(f.archived, doc.ID)
	return nil
}

func (f *fakeLister) archivedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.archived...)
}

// fakeFactory는 소스 ID별 리스터를 내놓는다.
type fakeFactory struct {
	listers map[int64]*fakeLister
	errFor  map[int64]error
}

func (f *fakeFactory) ForSource(src *entity.Source) (source.Lister, error) {
	if err, ok := f.errFor[src.ID]; ok {
		return nil, err
	}
	if l, ok := f.listers[src.ID]; ok {
		return l, nil
	}
	return &fakeLister{}, nil
}

// fakeIndexer는 색인 코디네이터처럼 업서트 성공 시 기사에 임베딩 완료를
// 표시하고, 실패 시 처리 오류를 기록한다.
type fakeIndexer struct {
	mu       sync.Mutex
	articles *fakeArticles
	vectors  *fakeVectors

	upserts    [][]*entity.EmbeddingRecord
	tombstoned [][]int64

	upsertErr    error
	tombstoneErr error
}

func (f *fakeIndexer) Upsert(ctx context.Context, articles []*entity.Article, records []*entity.EmbeddingRecord) (*indexing.UpsertResult, error) {
	ids := make([]int64, 0, len(articles))
	seen := map[int64]bool{}
	for _, r := range records {
		if !seen[r.ArticleID] {
			seen[r.ArticleID] = true
			ids = append(ids, r.ArticleID)
		}
	}

	f.mu.Lock()
	upsertErr := f.upsertErr
	if upsertErr == nil {
		batch := make([]*entity.EmbeddingRecord, len(records))
		copy(batch, records)
		f.upserts = append(f.upserts, batch)
	}
	f.mu.Unlock()

	if upsertErr != nil {
		_ = f.articles.SetProcessingError(ctx, ids, upsertErr.Error())
		return nil, upsertErr
	}
	if len(records) == 0 {
		return &indexing.UpsertResult{}, nil
	}
	if err := f.articles.MarkEmbedded(ctx, ids, records[0].ModelID, time.Now()); err != nil {
		return nil, err
	}
	return &indexing.UpsertResult{Articles: len(ids), Vectors: len(records), Batches: 1}, nil
}

func (f *fakeIndexer) Tombstone(ctx context.Context, articleIDs []int64) (*indexing.TombstoneResult, error) {
	f.mu.Lock()
	tombstoneErr := f.tombstoneErr
	if tombstoneErr == nil {
		f.tombstoned = append(f.tombstoned, append([]int64(nil), articleIDs...))
	}
	f.mu.Unlock()

	if tombstoneErr != nil {
		return nil, tombstoneErr
	}
	markers := 0
	for _, id := range articleIDs {
		records, _ := f.vectors.FindByArticleID(ctx, id)
		markers += len(records)
	}
	if err := f.articles.Tombstone(ctx, articleIDs); err != nil {
		return nil, err
	}
	return &indexing.TombstoneResult{Articles: len(articleIDs), Tombstones: markers}, nil
}

// fakeKeywords는 KeywordIndexer 스텁
type fakeKeywords struct {
	mu      sync.Mutex
	added   []string
	removed []string
	addErr  error
}

func (f *fakeKeywords) Add(_ context.Context, articles []*entity.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for _, a := range articles {
		f.added = append(f.added, a.ExternalID)
	}
	return nil
}

func (f *fakeKeywords) Remove(_ context.Context, externalIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, externalIDs...)
	return nil
}

func (f *fakeKeywords) addedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...)
}

// fakeEnricher는 ContentFetcher 스텁
type fakeEnricher struct {
	mu      sync.Mutex
	content string
	err     error
	urls    []string
}

func (f *fakeEnricher) FetchContent(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

// fakeNotifier는 RunNotifier 스텁
type fakeNotifier struct {
	mu      sync.Mutex
	reports []*ingest.RunReport
	err     error
}

func (f *fakeNotifier) NotifyRunCompleted(_ context.Context, report *ingest.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return f.err
}

// countingEmbedder는 결정적 해시 임베더를 감싸 배치 호출을 기록한다.
type countingEmbedder struct {
	embedder.Embedder
	mu      sync.Mutex
	batches [][]string
	err     error
}

func newCountingEmbedder(dimensions int) *countingEmbedder {
	return &countingEmbedder{Embedder: embedder.NewHashEmbedder(dimensions)}
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batches = append(c.batches, append([]string(nil), texts...))
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.Embedder.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) embeddedTexts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}
