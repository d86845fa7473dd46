// Package lexical is the local-mode keyword backend: an embedded bleve index
// over each article's indexing text, scored with BM25. Production keyword
// search stays on the record store; this index exists so local runs get
// ranked keyword results without PostgreSQL.
package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"

	"newswire-search/internal/domain/entity"
)

const defaultSearchLimit = 10

// Hit is one keyword match, ordered by descending BM25 score.
type Hit struct {
	ExternalID string
	ArticleID  int64
	Score      float64
}

// Index wraps a bleve index keyed by external article ID. Reindexing an ID
// replaces the document.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// indexedArticle is the document shape bleve sees. The indexing text already
// carries the title twice, so title terms outweigh body terms under BM25
// without field boosts.
type indexedArticle struct {
	ArticleID    int64  `json:"article_id"`
	IndexingText string `json:"indexing_text"`
}

// NewIndex opens or creates the index at path. An empty path keeps the index
// in memory, which the tests use. A corrupted on-disk index is cleared and
// recreated; the articles are still in the record store, so a reindex
// restores it.
func NewIndex(path string) (*Index, error) {
	indexMapping := buildMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("NewIndex: create directory: %w", err)
		}

		if verr := verifyIndexMeta(path); verr != nil {
			slog.Warn("keyword index corrupted, clearing",
				slog.String("path", path),
				slog.String("error", verr.Error()))
			if rerr := os.RemoveAll(path); rerr != nil {
				return nil, fmt.Errorf("NewIndex: clear corrupted index: %w", rerr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword index open failed, recreating",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rerr := os.RemoveAll(path); rerr != nil {
				return nil, fmt.Errorf("NewIndex: clear corrupted index: %w", rerr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("NewIndex: %w", err)
	}

	return &Index{index: idx, path: path}, nil
}

// buildMapping indexes the text with the CJK analyzer so Korean is matched
// by bigrams, and stores the numeric article ID for hit hydration.
func buildMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = cjk.AnalyzerName
	textField.Store = false
	textField.IncludeInAll = false

	idField := bleve.NewNumericFieldMapping()
	idField.Store = true
	idField.Index = false
	idField.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("indexing_text", textField)
	doc.AddFieldMappingsAt("article_id", idField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = cjk.AnalyzerName
	return m
}

// verifyIndexMeta detects the half-written index a crashed run leaves
// behind: the directory exists but index_meta.json is missing, empty, or
// unparseable.
func verifyIndexMeta(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if err == bleve.ErrorIndexMetaCorrupt {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// Add indexes the articles in one batch. Articles without indexing text fall
// back to title and summary.
func (x *Index) Add(ctx context.Context, articles []*entity.Article) error {
	if len(articles) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("Add: keyword index is closed")
	}

	batch := x.index.NewBatch()
	for _, article := range articles {
		if article == nil {
			return fmt.Errorf("Add: article is nil")
		}
		if article.ExternalID == "" {
			return fmt.Errorf("Add: article external ID is required")
		}

		text := article.IndexingText
		if text == "" {
			text = strings.TrimSpace(article.Title + " " + article.Summary)
		}
		doc := indexedArticle{
			ArticleID:    article.InternalID,
			IndexingText: text,
		}
		if err := batch.Index(article.ExternalID, doc); err != nil {
			return fmt.Errorf("Add: index article %s: %w", article.ExternalID, err)
		}
	}

	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("Add: %w", err)
	}
	return nil
}

// Search matches the query against the indexing text and returns hits in
// BM25 order. A blank query matches nothing.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fmt.Errorf("Search: keyword index is closed")
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("indexing_text")
	match.Analyzer = cjk.AnalyzerName

	request := bleve.NewSearchRequest(match)
	request.Size = limit
	request.Fields = []string{"article_id"}

	result, err := x.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, docMatch := range result.Hits {
		hit := Hit{ExternalID: docMatch.ID, Score: docMatch.Score}
		if id, ok := docMatch.Fields["article_id"].(float64); ok {
			hit.ArticleID = int64(id)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Remove deletes the documents for the given external IDs. Unknown IDs are
// ignored.
func (x *Index) Remove(ctx context.Context, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("Remove: keyword index is closed")
	}

	batch := x.index.NewBatch()
	for _, id := range externalIDs {
		batch.Delete(id)
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	return nil
}

// DocCount reports how many articles the index holds.
func (x *Index) DocCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0, fmt.Errorf("DocCount: keyword index is closed")
	}
	return x.index.DocCount()
}

// Close releases the index. Further calls on the index fail.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	if x.index != nil {
		return x.index.Close()
	}
	return nil
}
