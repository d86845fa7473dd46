package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"newswire-search/internal/chunker"
	appconfig "newswire-search/internal/config"
	"newswire-search/internal/dedup"
	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/adapter/persistence/postgres"
	"newswire-search/internal/infra/db"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/infra/fetcher"
	"newswire-search/internal/infra/lexical"
	"newswire-search/internal/infra/llm"
	"newswire-search/internal/infra/source"
	"newswire-search/internal/infra/vectorindex"
	"newswire-search/internal/observability/slo"
	"newswire-search/internal/observability/tracing"
	"newswire-search/internal/repository"
	"newswire-search/pkg/config"
	"newswire-search/pkg/ratelimit"
	"newswire-search/pkg/security/csp"

	artUC "newswire-search/internal/usecase/article"
	"newswire-search/internal/usecase/indexing"
	"newswire-search/internal/usecase/ingest"
	queryUC "newswire-search/internal/usecase/query"

	hhttp "newswire-search/internal/handler/http"
	hadmin "newswire-search/internal/handler/http/admin"
	harticle "newswire-search/internal/handler/http/article"
	hauth "newswire-search/internal/handler/http/auth"
	"newswire-search/internal/handler/http/middleware"
	hquery "newswire-search/internal/handler/http/query"
	"newswire-search/internal/handler/http/requestid"
	authservice "newswire-search/internal/service/auth"

	_ "newswire-search/docs" // swagger docs
)

// @title           Newswire Search API
// @version         1.0
// @description     통신사 기사 수집・임베딩・하이브리드 검색 플랫폼의 REST API
// @description     기사 조회와 검색, 자연어 질의 응답, 파이프라인 운영 기능을 제공합니다.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT 토큰 인증. 헤더에 "Bearer {token}" 형식으로 지정하세요.

func main() {
	logger := initLogger()
	validateAdminCredentials(logger)
	validateViewerCredentials(logger)
	validateJWTSecret(logger)

	pipeline := loadPipelineConfig(logger)

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := getVersion()
	components := setupServer(logger, database, pipeline, version)
	defer components.Close(logger)

	runServer(logger, components, version)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// validateAdminCredentials validates the admin credentials at startup.
// This prevents the server from starting with empty or weak admin credentials.
func validateAdminCredentials(logger *slog.Logger) {
	if err := hauth.ValidateAdminCredentials(); err != nil {
		logger.Error("admin credentials validation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// validateViewerCredentials validates the viewer credentials at startup.
// Unlike admin validation, this implements graceful degradation:
// if viewer credentials are misconfigured, the viewer role is disabled
// but the application continues to run in admin-only mode.
func validateViewerCredentials(logger *slog.Logger) {
	_ = hauth.ValidateViewerCredentials(logger)
}

// validateJWTSecret validates the JWT_SECRET environment variable for security requirements.
func validateJWTSecret(logger *slog.Logger) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}
	// セキュリティ: 最小32文字（256ビット）を強制
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	// セキュリティ: よくある弱い秘密鍵を拒否
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("JWT_SECRET must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

// loadPipelineConfig loads the pipeline tunables from the YAML file named by
// PIPELINE_CONFIG, or the defaults when the variable is unset.
func loadPipelineConfig(logger *slog.Logger) *appconfig.PipelineConfig {
	path := os.Getenv("PIPELINE_CONFIG")
	cfg, err := appconfig.LoadPipelineConfig(path)
	if err != nil {
		logger.Error("failed to load pipeline configuration",
			slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	if path != "" {
		logger.Info("pipeline configuration loaded", slog.String("path", path))
	}
	return cfg
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler     http.Handler
	IPStore     *ratelimit.InMemoryRateLimitStore
	IPWindow    time.Duration
	AuthLimiter *middleware.RateLimiter
	Keywords    *lexical.Index // nil when lexical indexing is disabled
	SLOTracker  *slo.Tracker
}

// Close releases resources owned by the server components.
func (c *ServerComponents) Close(logger *slog.Logger) {
	if c.Keywords != nil {
		if err := c.Keywords.Close(); err != nil {
			logger.Error("failed to close lexical index", slog.Any("error", err))
		}
	}
}

// stores bundles the repository set every service draws from.
type stores struct {
	articles   repository.ArticleRepository
	sources    repository.SourceRepository
	metadata   repository.MetadataRepository
	embeddings repository.EmbeddingRepository
	logs       repository.ProcessingLogRepository
	states     repository.IndexStateRepository
}

func newStores(database *sql.DB) stores {
	return stores{
		articles:   postgres.NewArticleRepo(database),
		sources:    postgres.NewSourceRepo(database),
		metadata:   postgres.NewMetadataRepo(database),
		embeddings: postgres.NewEmbeddingRepo(database),
		logs:       postgres.NewProcessingLogRepo(database),
		states:     postgres.NewIndexStateRepo(database),
	}
}

// setupServer wires the stores, pipeline services, and HTTP surface.
func setupServer(logger *slog.Logger, database *sql.DB, pipeline *appconfig.PipelineConfig, version string) *ServerComponents {
	repos := newStores(database)

	emb, err := embedder.New()
	if err != nil {
		logger.Error("failed to construct embedder", slog.Any("error", err))
		os.Exit(1)
	}

	provider := newIndexProvider(logger, database)
	indexSvc := indexing.NewService(provider, repos.states, repos.articles, repos.embeddings, repos.logs)

	keywords := openLexicalIndex(logger)
	ingestSvc := newIngestService(logger, pipeline, repos, emb, indexSvc, keywords)

	generator, err := llm.New()
	if err != nil {
		logger.Error("failed to construct answer generator", slog.Any("error", err))
		os.Exit(1)
	}
	engine := queryUC.NewEngine(repos.articles, emb, indexSvc,
		queryUC.WithWeights(queryUC.Weights{
			Vector:  pipeline.Retrieval.Vector,
			Keyword: pipeline.Retrieval.Keyword,
			Rerank:  pipeline.Retrieval.Rerank,
		}))
	querySvc := queryUC.NewService(queryUC.NewAnalyzer(), engine, generator,
		queryUC.WithProcessingLog(repos.logs),
		queryUC.WithContextBudget(pipeline.Retrieval.MaxContextLength))

	articleSvc := &artUC.Service{Repo: repos.articles, Index: indexSvc}

	// Load rate limiting configuration
	rateLimitConfig, err := config.LoadRateLimitConfig()
	if err != nil {
		logger.Error("failed to load rate limit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Load trusted proxy configuration for IP extraction
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("rate limiting: using RemoteAddr (secure mode, proxy headers ignored)")
	}

	var ipRateLimiter *middleware.IPRateLimiter
	var ipStore *ratelimit.InMemoryRateLimitStore

	if rateLimitConfig.Enabled {
		ipStore = ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
			MaxKeys: rateLimitConfig.MaxActiveKeys,
		})
		ipRateLimiter = middleware.NewIPRateLimiter(
			middleware.IPRateLimiterConfig{
				Limit:   rateLimitConfig.DefaultIPLimit,
				Window:  rateLimitConfig.DefaultIPWindow,
				Enabled: true,
			},
			ipExtractor,
			ipStore,
			ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{}),
			ratelimit.NewPrometheusMetrics(),
			ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
				FailureThreshold: rateLimitConfig.CircuitBreakerFailureThreshold,
				RecoveryTimeout:  rateLimitConfig.CircuitBreakerResetTimeout,
			}),
		)
		logger.Info("rate limiting initialized",
			slog.Int("ip_limit", rateLimitConfig.DefaultIPLimit),
			slog.Duration("ip_window", rateLimitConfig.DefaultIPWindow),
			slog.Int("max_keys", rateLimitConfig.MaxActiveKeys))
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	mux, authLimiter := setupRoutes(routeDeps{
		database:    database,
		version:     version,
		articleSvc:  articleSvc,
		querySvc:    querySvc,
		ingestSvc:   ingestSvc,
		indexSvc:    indexSvc,
		ipExtractor: ipExtractor,
		logger:      logger,
	})
	sloTracker := slo.NewTracker(5 * time.Minute)
	handler := applyMiddleware(logger, mux, ipRateLimiter, sloTracker)

	return &ServerComponents{
		Handler:     handler,
		IPStore:     ipStore,
		IPWindow:    rateLimitConfig.DefaultIPWindow,
		AuthLimiter: authLimiter,
		Keywords:    keywords,
		SLOTracker:  sloTracker,
	}
}

// newIndexProvider selects the ANN backend from VECTORINDEX_PROVIDER:
// "pgvector" (default) keeps vectors next to the articles, "local" runs the
// in-process HNSW graph with snapshot persistence.
func newIndexProvider(logger *slog.Logger, database *sql.DB) vectorindex.Provider {
	switch os.Getenv("VECTORINDEX_PROVIDER") {
	case "", "pgvector":
		return vectorindex.NewPGVectorProvider(database, entity.DefaultDimensions, entity.DistanceDotProduct)
	case "local":
		path := os.Getenv("VECTORINDEX_LOCAL_PATH")
		if path == "" {
			path = "./data/index"
		}
		logger.Info("using local vector index", slog.String("path", path))
		return vectorindex.NewLocalProvider(path)
	default:
		logger.Error("invalid VECTORINDEX_PROVIDER, expected pgvector or local",
			slog.String("value", os.Getenv("VECTORINDEX_PROVIDER")))
		os.Exit(1)
		return nil
	}
}

// openLexicalIndex opens the BM25 keyword index named by LEXICAL_INDEX_PATH.
// Unset disables lexical indexing; retrieval then relies on SQL keyword
// search alone.
func openLexicalIndex(logger *slog.Logger) *lexical.Index {
	path := os.Getenv("LEXICAL_INDEX_PATH")
	if path == "" {
		return nil
	}
	idx, err := lexical.NewIndex(path)
	if err != nil {
		logger.Error("failed to open lexical index",
			slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("lexical index opened", slog.String("path", path))
	return idx
}

// newIngestService builds the pipeline coordinator from the pipeline config.
func newIngestService(
	logger *slog.Logger,
	pipeline *appconfig.PipelineConfig,
	repos stores,
	emb embedder.Embedder,
	indexSvc *indexing.Service,
	keywords *lexical.Index,
) *ingest.Service {
	opts := []ingest.Option{
		ingest.WithConfig(ingest.Config{
			Workers:         pipeline.Ingest.Workers,
			EmbedBatchSize:  pipeline.Embedding.BatchSize,
			EmbedMaxPerRun:  pipeline.Embedding.MaxPerRun,
			EnrichThreshold: pipeline.Ingest.EnrichThreshold,
		}),
		ingest.WithChunker(chunker.New(
			chunker.WithStrategy(chunker.Strategy(pipeline.Chunking.Strategy)),
			chunker.WithSize(pipeline.Chunking.Size),
			chunker.WithOverlap(pipeline.Chunking.Overlap),
		)),
		ingest.WithHasher(dedup.NewHasher(dedup.Strength(pipeline.Dedup.Hash))),
		ingest.WithDetector(dedup.NewDetector(dedup.WithThreshold(pipeline.Dedup.Threshold))),
		ingest.WithPolicy(dedup.NewPolicy(dedup.Mode(pipeline.Dedup.Mode))),
	}

	enrichCfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load enrichment fetcher configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if enrichCfg.Enabled {
		enrichCfg.Threshold = pipeline.Ingest.EnrichThreshold
		opts = append(opts, ingest.WithEnricher(fetcher.NewReadabilityFetcher(enrichCfg)))
	}
	if keywords != nil {
		opts = append(opts, ingest.WithKeywordIndexer(keywords))
	}

	return ingest.NewService(
		repos.sources,
		repos.articles,
		repos.metadata,
		repos.embeddings,
		repos.logs,
		source.NewFactory(&http.Client{Timeout: 30 * time.Second}),
		emb,
		indexSvc,
		opts...,
	)
}

// routeDeps bundles everything route registration needs.
type routeDeps struct {
	database    *sql.DB
	version     string
	articleSvc  *artUC.Service
	querySvc    *queryUC.Service
	ingestSvc   *ingest.Service
	indexSvc    *indexing.Service
	ipExtractor middleware.IPExtractor
	logger      *slog.Logger
}

// indexHealth adapts the index coordinator to the health check.
type indexHealth struct {
	svc *indexing.Service
}

func (h indexHealth) IndexHealth(ctx context.Context) (*hhttp.IndexHealth, error) {
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		if errors.Is(err, entity.ErrNoActiveIndex) {
			return &hhttp.IndexHealth{Active: false}, nil
		}
		return nil, err
	}
	return &hhttp.IndexHealth{
		DisplayName:  stats.State.Name,
		Dimensions:   stats.State.Dimensions,
		TotalVectors: stats.State.TotalVectors,
		Active:       stats.State.Active,
	}, nil
}

// setupRoutes registers all HTTP routes (public and protected). The domain
// handlers apply the auth middleware per route, so a single mux serves both
// surfaces.
func setupRoutes(deps routeDeps) (*http.ServeMux, *middleware.RateLimiter) {
	// レート制限: 認証エンドポイントは1分間に5リクエストまで
	authRateLimiter := middleware.NewRateLimiter(5, 1*time.Minute, deps.ipExtractor)

	weakPasswords := []string{"password", "123456", "admin", "test", "secret"}
	authProvider := hauth.NewMultiUserAuthProvider(12, weakPasswords)
	publicEndpoints := []string{"/auth/token", "/health", "/ready", "/live", "/metrics", "/swagger/"}
	authService := authservice.NewAuthService(authProvider, publicEndpoints)

	mux := http.NewServeMux()
	mux.Handle("/auth/token", authRateLimiter.Middleware(hauth.TokenHandler(authService)))

	// ヘルスチェックエンドポイント（認証不要）
	mux.Handle("/health", &hhttp.HealthHandler{
		DB:      deps.database,
		Version: deps.version,
		Index:   indexHealth{svc: deps.indexSvc},
	})
	mux.Handle("/ready", &hhttp.ReadyHandler{DB: deps.database})
	mux.Handle("/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())

	// Swagger UI（認証不要）
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	harticle.Register(mux, deps.articleSvc, deps.logger)
	hquery.Register(mux, deps.querySvc, deps.logger)
	hadmin.Register(mux, deps.ingestSvc, deps.indexSvc, deps.logger)

	return mux, authRateLimiter
}

// applyMiddleware wraps the handler with the middleware chain.
// Order (outermost first): CORS → Request ID → IP Rate Limit → Recovery →
// Logging → Body Limit → CSP → Metrics → per-route auth.
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter, sloTracker *slo.Tracker) http.Handler {
	corsConfig, err := middleware.LoadCORSConfig()
	if err != nil {
		logger.Error("failed to load CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}
	corsConfig.Logger = &middleware.SlogAdapter{Logger: logger}

	logger.Info("CORS enabled",
		slog.Int("allowed_origins_count", len(corsConfig.Validator.GetAllowedOrigins())),
		slog.Any("allowed_methods", corsConfig.AllowedMethods),
		slog.Int("max_age", corsConfig.MaxAge))

	cspConfig, err := config.LoadCSPConfig()
	if err != nil {
		logger.Error("failed to load CSP configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var cspMiddleware func(http.Handler) http.Handler
	if cspConfig.Enabled {
		cspMW := middleware.NewCSPMiddleware(middleware.CSPMiddlewareConfig{
			Enabled:       true,
			DefaultPolicy: csp.StrictPolicy(),
			PathPolicies: map[string]*csp.CSPBuilder{
				"/swagger/": csp.SwaggerUIPolicy(),
			},
			ReportOnly: cspConfig.ReportOnly,
		})
		cspMiddleware = cspMW.Middleware()
		logger.Info("CSP enabled", slog.Bool("report_only", cspConfig.ReportOnly))
	} else {
		cspMiddleware = func(next http.Handler) http.Handler { return next }
		logger.Warn("CSP is disabled")
	}

	middlewareChain := handler

	// Apply in reverse order (innermost to outermost)
	middlewareChain = hhttp.MetricsMiddleware(middlewareChain)
	middlewareChain = sloTracker.Middleware(middlewareChain)
	middlewareChain = tracing.Middleware(middlewareChain)
	middlewareChain = cspMiddleware(middlewareChain)
	middlewareChain = hhttp.LimitRequestBody(1 << 20)(middlewareChain) // 1MB limit
	middlewareChain = hhttp.Logging(logger)(middlewareChain)
	middlewareChain = hhttp.Recover(logger)(middlewareChain)

	if ipRateLimiter != nil {
		middlewareChain = ipRateLimiter.Middleware()(middlewareChain)
	}

	middlewareChain = requestid.Middleware(middlewareChain)
	middlewareChain = middleware.CORS(*corsConfig)(middlewareChain)

	return middlewareChain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if components.SLOTracker != nil {
		go components.SLOTracker.Start(ctx, time.Minute)
	}

	if components.IPStore != nil {
		go middleware.StartRateLimitCleanup(ctx, components.IPStore, 5*time.Minute, components.IPWindow, "ip")
		logger.Info("IP rate limit cleanup started",
			slog.Duration("window", components.IPWindow))
	}

	if components.AuthLimiter != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					components.AuthLimiter.CleanupExpired()
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", ":8080"),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
