package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"newswire-search/internal/chunker"
	appconfig "newswire-search/internal/config"
	"newswire-search/internal/dedup"
	"newswire-search/internal/domain/entity"
	hhttp "newswire-search/internal/handler/http/respond"
	"newswire-search/internal/infra/adapter/persistence/postgres"
	"newswire-search/internal/infra/db"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/infra/fetcher"
	"newswire-search/internal/infra/lexical"
	"newswire-search/internal/infra/notifier"
	"newswire-search/internal/infra/source"
	"newswire-search/internal/infra/vectorindex"
	workerPkg "newswire-search/internal/infra/worker"
	"newswire-search/internal/usecase/indexing"
	"newswire-search/internal/usecase/ingest"
	"newswire-search/internal/usecase/notify"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM articles LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("notify_max_concurrent", workerConfig.NotifyMaxConcurrent),
		slog.Duration("ingest_timeout", workerConfig.IngestTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	pipeline := loadPipelineConfig(logger)

	// Initialize Discord notification channel
	discordConfig := loadDiscordConfig(logger)
	var discordChannel notify.Channel
	if discordConfig.Enabled {
		discordChannel = notify.NewDiscordChannel(discordConfig)
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	// Initialize Slack notification channel
	slackConfig := loadSlackConfig(logger)
	var slackChannel notify.Channel
	if slackConfig.Enabled {
		slackChannel = notify.NewSlackChannel(slackConfig)
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	var channels []notify.Channel
	if discordChannel != nil {
		channels = append(channels, discordChannel)
	}
	if slackChannel != nil {
		channels = append(channels, slackChannel)
	}

	notifyService := notify.NewService(channels, workerConfig.NotifyMaxConcurrent)
	logger.Info("Notification service initialized",
		slog.Int("channels", len(channels)),
		slog.Int("max_concurrent", workerConfig.NotifyMaxConcurrent))

	// Start metrics HTTP server
	startMetricsServer(ctx, logger, notifyService)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	svc, cleanup := setupIngestService(logger, database, pipeline, notifyService)
	defer cleanup()

	startCronWorker(logger, svc, workerConfig, workerMetrics, healthServer)
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

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
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

// setupIngestService creates and configures the pipeline coordinator with
// all dependencies. Returns the service and a cleanup function for graceful
// shutdown.
func setupIngestService(logger *slog.Logger, database *sql.DB, pipeline *appconfig.PipelineConfig, notifyService notify.Service) (*ingest.Service, func()) {
	sourceRepo := postgres.NewSourceRepo(database)
	articleRepo := postgres.NewArticleRepo(database)
	metadataRepo := postgres.NewMetadataRepo(database)
	embeddingRepo := postgres.NewEmbeddingRepo(database)
	logRepo := postgres.NewProcessingLogRepo(database)
	stateRepo := postgres.NewIndexStateRepo(database)

	emb, err := embedder.New()
	if err != nil {
		logger.Error("failed to construct embedder", slog.Any("error", err))
		os.Exit(1)
	}

	provider := newIndexProvider(logger, database)
	indexSvc := indexing.NewService(provider, stateRepo, articleRepo, embeddingRepo, logRepo)

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
		ingest.WithNotifier(notifyService),
	}

	// Load enrichment fetch configuration from environment
	enrichCfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load enrichment fetch configuration",
			slog.Any("error", err))
		logger.Warn("Content enrichment disabled due to configuration error")
		enrichCfg = fetcher.DefaultConfig()
		enrichCfg.Enabled = false
	}
	if enrichCfg.Enabled {
		enrichCfg.Threshold = pipeline.Ingest.EnrichThreshold
		opts = append(opts, ingest.WithEnricher(fetcher.NewReadabilityFetcher(enrichCfg)))
		logger.Info("Content enrichment enabled",
			slog.Int("threshold", enrichCfg.Threshold),
			slog.Duration("timeout", enrichCfg.Timeout))
	} else {
		logger.Info("Content enrichment disabled")
	}

	cleanup := func() {}
	if path := os.Getenv("LEXICAL_INDEX_PATH"); path != "" {
		keywords, err := lexical.NewIndex(path)
		if err != nil {
			logger.Error("failed to open lexical index",
				slog.String("path", path), slog.Any("error", err))
			os.Exit(1)
		}
		opts = append(opts, ingest.WithKeywordIndexer(keywords))
		logger.Info("lexical index opened", slog.String("path", path))
		cleanup = func() {
			if err := keywords.Close(); err != nil {
				logger.Error("failed to close lexical index", slog.Any("error", err))
			}
		}
	}

	service := ingest.NewService(
		sourceRepo,
		articleRepo,
		metadataRepo,
		embeddingRepo,
		logRepo,
		source.NewFactory(createHTTPClient()),
		emb,
		indexSvc,
		opts...,
	)

	return service, cleanup
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

// createHTTPClient creates an HTTP client with timeouts and connection pooling.
// TLS 1.2+ is enforced for security.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
			},
		},
	}
}

// loadDiscordConfig loads Discord configuration from environment variables.
//
// Environment variables:
//   - DISCORD_ENABLED: Boolean flag to enable Discord notifications (default: false)
//   - DISCORD_WEBHOOK_URL: Discord webhook URL (required if enabled)
//
// Returns:
//   - notifier.DiscordConfig: Configuration with validation applied
func loadDiscordConfig(logger *slog.Logger) notifier.DiscordConfig {
	enabled := os.Getenv("DISCORD_ENABLED") == "true"
	webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")

	if !enabled {
		return notifier.DiscordConfig{Enabled: false}
	}

	// Validate webhook URL format
	if webhookURL == "" {
		logger.Warn("Discord webhook URL is empty, disabling notifications")
		return notifier.DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Discord webhook URL format, disabling notifications", slog.Any("error", err))
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Discord webhook URL must use HTTPS, disabling notifications")
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Host != "discord.com" {
		logger.Warn("Invalid Discord webhook host, disabling notifications", slog.String("host", u.Host))
		return notifier.DiscordConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("Invalid Discord webhook path, disabling notifications", slog.String("path", u.Path))
		return notifier.DiscordConfig{Enabled: false}
	}

	return notifier.DiscordConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// loadSlackConfig loads Slack configuration from environment variables.
//
// Environment variables:
//   - SLACK_ENABLED: Boolean flag to enable Slack notifications (default: false)
//   - SLACK_WEBHOOK_URL: Slack webhook URL (required if enabled)
//
// Returns:
//   - notifier.SlackConfig: Configuration with validation applied
func loadSlackConfig(logger *slog.Logger) notifier.SlackConfig {
	enabled := os.Getenv("SLACK_ENABLED") == "true"
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")

	if !enabled {
		return notifier.SlackConfig{Enabled: false}
	}

	// Validate webhook URL format
	if webhookURL == "" {
		logger.Warn("Slack webhook URL is empty, disabling notifications")
		return notifier.SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Slack webhook URL format, disabling notifications", slog.Any("error", err))
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Slack webhook URL must use HTTPS, disabling notifications")
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Host != "hooks.slack.com" {
		logger.Warn("Invalid Slack webhook host, disabling notifications", slog.String("host", u.Host))
		return notifier.SlackConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("Invalid Slack webhook path, disabling notifications", slog.String("path", u.Path))
		return notifier.SlackConfig{Enabled: false}
	}

	return notifier.SlackConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// startCronWorker starts the cron scheduler and runs the ingest job periodically.
func startCronWorker(logger *slog.Logger, svc *ingest.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runIngestJob(logger, svc, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runIngestJob executes a single incremental ingestion run with timeout and
// error handling.
func runIngestJob(logger *slog.Logger, svc *ingest.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("ingest run started")

	// 取り込み処理のタイムアウト（設定から取得）
	ctx, cancel := context.WithTimeout(context.Background(), cfg.IngestTimeout)
	defer cancel()

	report, err := svc.Run(ctx)
	if err != nil {
		// 機密情報をマスクしてログ出力
		logger.Error("ingest run failed", slog.Any("error", hhttp.SanitizeError(err)))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		return
	}

	// Record metrics
	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordArticlesPersisted(report.Persisted)
	metrics.RecordLastSuccess()

	logger.Info("ingest run completed",
		slog.String("run_id", report.RunID),
		slog.Int("sources", report.Sources),
		slog.Int64("discovered", report.Discovered),
		slog.Int64("parsed", report.Parsed),
		slog.Int64("persisted", report.Persisted),
		slog.Int64("duplicates", report.Duplicates),
		slog.Int64("near_duplicates", report.NearDuplicates),
		slog.Int64("embedded", report.Embedded),
		slog.Int64("upserted", report.Upserted),
		slog.Duration("duration", report.Duration),
	)
}
