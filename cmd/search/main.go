// Command search runs a hybrid article search against a local-mode data
// directory. It opens the SQLite record store and the on-disk vector index
// directly, so it works without the API server or a PostgreSQL instance.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"newswire-search/internal/infra/adapter/persistence/sqlite"
	"newswire-search/internal/infra/db"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/infra/llm"
	"newswire-search/internal/infra/vectorindex"
	"newswire-search/internal/usecase/indexing"
	queryUC "newswire-search/internal/usecase/query"
)

const (
	defaultTopK = 10
	maxTopK     = 50
)

// SearchOutput is the JSON output structure.
type SearchOutput struct {
	Query       string          `json:"query"`
	Mode        string          `json:"mode"`
	Degraded    bool            `json:"degraded"`
	Answer      string          `json:"answer,omitempty"`
	ResultCount int             `json:"result_count"`
	Articles    []ArticleOutput `json:"articles"`
}

// ArticleOutput is a single article hit in JSON output.
type ArticleOutput struct {
	ArticleID    int64   `json:"article_id"`
	ExternalID   string  `json:"external_id"`
	Title        string  `json:"title"`
	SourceURL    string  `json:"source_url,omitempty"`
	PublishedAt  string  `json:"published_at"`
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
	FinalScore   float64 `json:"final_score"`
}

func main() {
	var (
		dbPath       string
		indexPath    string
		topK         int
		outputFormat string
		withAnswer   bool
	)

	flag.StringVar(&dbPath, "db", "./data/newswire.db", "Path to the local SQLite store")
	flag.StringVar(&indexPath, "index", "./data/index", "Path to the local vector index directory")
	flag.IntVar(&topK, "top-k", defaultTopK, "Maximum number of results (max 50)")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.BoolVar(&withAnswer, "answer", false, "Synthesize a natural-language answer from the hits")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: search [options] <query>")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nExamples:")
		fmt.Fprintln(os.Stderr, `  search "최근 반도체 수출 동향"`)
		fmt.Fprintln(os.Stderr, `  search -top-k 5 -output json "금리 인상 전망"`)
		fmt.Fprintln(os.Stderr, `  search -answer "올해 상반기 조선업 수주 실적은?"`)
		os.Exit(1)
	}
	query := flag.Arg(0)

	logger := initLogger()

	if outputFormat != "text" && outputFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: invalid output format %q (must be text or json)\n", outputFormat)
		os.Exit(1)
	}
	if topK < 1 || topK > maxTopK {
		fmt.Fprintf(os.Stderr, "Warning: top-k %d out of range [1, %d], using default %d\n",
			topK, maxTopK, defaultTopK)
		topK = defaultTopK
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, cleanup, err := setupQueryService(logger, dbPath, indexPath, withAnswer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("searching articles",
		slog.String("query", query),
		slog.Int("top_k", topK))

	resp, err := svc.Query(ctx, queryUC.Request{Query: query, TopK: topK})
	if err != nil {
		logger.Error("query failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
		os.Exit(1)
	}

	if outputFormat == "json" {
		outputJSON(query, resp, withAnswer)
	} else {
		outputText(query, resp, withAnswer)
	}
}

// setupQueryService wires the local-mode retrieval stack. The returned
// cleanup closes the store.
func setupQueryService(logger *slog.Logger, dbPath, indexPath string, withAnswer bool) (*queryUC.Service, func(), error) {
	database, err := db.OpenSQLite(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", dbPath, err)
	}
	cleanup := func() {
		if cerr := database.Close(); cerr != nil {
			logger.Warn("failed to close store", slog.Any("error", cerr))
		}
	}

	if err := sqlite.Migrate(database); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}

	articles := sqlite.NewArticleRepo(database)
	embeddings := sqlite.NewEmbeddingRepo(database)
	states := sqlite.NewIndexStateRepo(database)
	logs := sqlite.NewProcessingLogRepo(database)

	provider := vectorindex.NewLocalProvider(indexPath)
	indexSvc := indexing.NewService(provider, states, articles, embeddings, logs)

	emb, err := embedder.New()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init embedder: %w", err)
	}

	// 回答合成は -answer 指定時のみ。未指定ならテンプレート回答で十分
	var generator llm.Generator
	if withAnswer {
		generator, err = llm.New()
		if err != nil {
			logger.Warn("LLM unavailable, falling back to template answers",
				slog.Any("error", err))
			generator = nil
		}
	}

	engine := queryUC.NewEngine(articles, emb, indexSvc)
	svc := queryUC.NewService(queryUC.NewAnalyzer(), engine, generator,
		queryUC.WithProcessingLog(logs))
	return svc, cleanup, nil
}

// outputText prints search results in human-readable format.
func outputText(query string, resp *queryUC.Response, withAnswer bool) {
	fmt.Printf("Search Results for: %q\n", query)
	fmt.Printf("Mode: %s  Results: %d  (%dms)\n\n",
		resp.Mode, len(resp.RetrievedDocs), resp.ProcessingMS)

	if withAnswer && resp.Answer != nil {
		fmt.Printf("Answer:\n%s\n\n", resp.Answer.Text)
	}

	if len(resp.RetrievedDocs) == 0 {
		fmt.Println("No articles found matching your query.")
		return
	}

	for i, doc := range resp.RetrievedDocs {
		fmt.Printf("%d. %s\n", i+1, doc.Title)
		fmt.Printf("   Score: %.3f (vector %.3f, keyword %.3f)\n",
			doc.FinalScore, doc.VectorScore, doc.KeywordScore)
		fmt.Printf("   Published: %s  ID: %s\n",
			doc.PublishedAt.Format("2006-01-02 15:04"), doc.ExternalID)
		if doc.SourceURL != "" {
			fmt.Printf("   URL: %s\n", doc.SourceURL)
		}
		fmt.Println()
	}
}

// outputJSON prints search results in JSON format.
func outputJSON(query string, resp *queryUC.Response, withAnswer bool) {
	articles := make([]ArticleOutput, len(resp.RetrievedDocs))
	for i, doc := range resp.RetrievedDocs {
		articles[i] = ArticleOutput{
			ArticleID:    doc.ArticleID,
			ExternalID:   doc.ExternalID,
			Title:        doc.Title,
			SourceURL:    doc.SourceURL,
			PublishedAt:  doc.PublishedAt.Format(time.RFC3339),
			VectorScore:  doc.VectorScore,
			KeywordScore: doc.KeywordScore,
			FinalScore:   doc.FinalScore,
		}
	}

	output := SearchOutput{
		Query:       query,
		Mode:        resp.Mode,
		Degraded:    resp.Degraded,
		ResultCount: len(resp.RetrievedDocs),
		Articles:    articles,
	}
	if withAnswer && resp.Answer != nil {
		output.Answer = resp.Answer.Text
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes and returns a structured logger.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
