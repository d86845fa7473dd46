// Package admin provides HTTP handlers for the operator-facing endpoints:
// ingest runs, pipeline statistics, duplicate cleanup, and ANN index
// administration. Every route requires the admin role.
package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newswire-search/internal/handler/http/requestid"
	"newswire-search/internal/handler/http/respond"
	"newswire-search/internal/observability/logging"
	"newswire-search/internal/usecase/ingest"
)

// defaultStatsWindow is how far back pipeline statistics reach when the
// request does not carry an explicit since parameter.
const defaultStatsWindow = 24 * time.Hour

// RunReportDTO is the JSON shape of one ingest run report.
type RunReportDTO struct {
	RunID     string  `json:"run_id"`
	StartedAt string  `json:"started_at"`
	DurationS float64 `json:"duration_seconds"`

	Sources int `json:"sources"`

	Discovered     int64 `json:"discovered"`
	FileDuplicates int64 `json:"file_duplicates"`
	Parsed         int64 `json:"parsed"`
	ParseErrors    int64 `json:"parse_errors"`
	Enriched       int64 `json:"enriched"`
	Persisted      int64 `json:"persisted"`
	Duplicates     int64 `json:"duplicates"`
	NearDuplicates int64 `json:"near_duplicates"`

	Embedded int64 `json:"embedded"`
	Upserted int64 `json:"upserted"`
}

func toRunReportDTO(r *ingest.RunReport) RunReportDTO {
	return RunReportDTO{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt.UTC().Format(time.RFC3339),
		DurationS:      r.Duration.Seconds(),
		Sources:        r.Sources,
		Discovered:     r.Discovered,
		FileDuplicates: r.FileDuplicates,
		Parsed:         r.Parsed,
		ParseErrors:    r.ParseErrors,
		Enriched:       r.Enriched,
		Persisted:      r.Persisted,
		Duplicates:     r.Duplicates,
		NearDuplicates: r.NearDuplicates,
		Embedded:       r.Embedded,
		Upserted:       r.Upserted,
	}
}

type RunIngestHandler struct {
	Svc    *ingest.Service
	Logger *slog.Logger

	// Full re-reads every document regardless of source watermarks.
	Full bool
}

// ServeHTTP 수집 파이프라인 실행
// @Summary      수집 파이프라인 실행
// @Description  전체 또는 증분 수집을 동기 실행하고 실행 보고서를 반환합니다
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} RunReportDTO "실행 보고서"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/ingest [post]
func (h RunIngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := requestid.FromContext(ctx)
	logger := logging.WithRequestID(ctx, h.Logger)

	mode := "incremental"
	if h.Full {
		mode = "full"
	}
	logger.Info("Ingest run requested", "mode", mode, "request_id", reqID)

	var (
		report *ingest.RunReport
		err    error
	)
	if h.Full {
		report, err = h.Svc.RunFull(ctx)
	} else {
		report, err = h.Svc.Run(ctx)
	}
	if err != nil {
		logger.Error("Ingest run failed",
			"mode", mode,
			"error", err.Error(),
			"request_id", reqID)
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Info("Ingest run finished",
		"mode", mode,
		"run_id", report.RunID,
		"persisted", report.Persisted,
		"embedded", report.Embedded,
		"duration_ms", report.Duration.Milliseconds(),
		"request_id", reqID)

	respond.JSON(w, http.StatusOK, toRunReportDTO(report))
}

// PipelineStatsDTO is the JSON shape of the pipeline statistics snapshot.
type PipelineStatsDTO struct {
	Articles int64  `json:"articles"`
	Sources  int    `json:"sources"`
	Vectors  int64  `json:"vectors"`
	Since    string `json:"since"`

	ParseCounts map[string]int64 `json:"parse_counts"`
	DedupCounts map[string]int64 `json:"dedup_counts"`
	EmbedCounts map[string]int64 `json:"embed_counts"`
}

type IngestStatsHandler struct{ Svc *ingest.Service }

// ServeHTTP 파이프라인 통계 조회
// @Summary      파이프라인 통계 조회
// @Description  저장소 집계와 단계별 처리 결과를 조회합니다. since 파라미터 기본값은 24시간 전입니다.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        since query string false "집계 시작 시각 (ISO 8601 또는 YYYY-MM-DD)"
// @Success      200 {object} PipelineStatsDTO "파이프라인 통계"
// @Failure      400 {string} string "Bad request - invalid since parameter"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/ingest/stats [get]
func (h IngestStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-defaultStatsWindow)
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := parseTimeParam(sinceStr)
		if err != nil {
			respond.SafeError(w, http.StatusBadRequest,
				fmt.Errorf("invalid since: %w", err))
			return
		}
		since = parsed
	}

	stats, err := h.Svc.Stats(r.Context(), since)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, PipelineStatsDTO{
		Articles:    stats.Articles,
		Sources:     stats.Sources,
		Vectors:     stats.Vectors,
		Since:       stats.Since.UTC().Format(time.RFC3339),
		ParseCounts: stats.ParseCounts,
		DedupCounts: stats.DedupCounts,
		EmbedCounts: stats.EmbedCounts,
	})
}

// CleanupReportDTO is the JSON shape of one duplicate sweep report.
type CleanupReportDTO struct {
	Groups     int `json:"groups"`
	Tombstoned int `json:"tombstoned"`
	Vectors    int `json:"vectors"`
}

type CleanupHandler struct {
	Svc    *ingest.Service
	Logger *slog.Logger
}

// ServeHTTP 중복 기사 정리
// @Summary      중복 기사 정리
// @Description  동일 콘텐츠 해시 그룹에서 가장 오래된 기사만 남기고 나머지를 tombstone 처리합니다
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} CleanupReportDTO "정리 보고서"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/ingest/cleanup [post]
func (h CleanupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	report, err := h.Svc.CleanupDuplicates(ctx)
	if err != nil {
		logger.Error("Duplicate cleanup failed", "error", err.Error())
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Info("Duplicate cleanup finished",
		"groups", report.Groups,
		"tombstoned", report.Tombstoned,
		"vectors", report.Vectors)

	respond.JSON(w, http.StatusOK, CleanupReportDTO{
		Groups:     report.Groups,
		Tombstoned: report.Tombstoned,
		Vectors:    report.Vectors,
	})
}

// EmbedReportDTO is the JSON shape of one backlog drain report.
type EmbedReportDTO struct {
	Articles int `json:"articles"`
	Vectors  int `json:"vectors"`
	Reused   int `json:"reused"`
	Batches  int `json:"batches"`
	Failed   int `json:"failed"`
}

type EmbedPendingHandler struct {
	Svc    *ingest.Service
	Logger *slog.Logger
}

// ServeHTTP 임베딩 백로그 처리
// @Summary      임베딩 백로그 처리
// @Description  임베딩되지 않은 기사를 청크 분할, 임베딩하여 ANN 인덱스에 반영합니다
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} EmbedReportDTO "임베딩 보고서"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/ingest/embed [post]
func (h EmbedPendingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	report, err := h.Svc.EmbedPending(ctx)
	if err != nil {
		logger.Error("Embedding drain failed", "error", err.Error())
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Info("Embedding drain finished",
		"articles", report.Articles,
		"vectors", report.Vectors,
		"reused", report.Reused,
		"failed", report.Failed)

	respond.JSON(w, http.StatusOK, EmbedReportDTO{
		Articles: report.Articles,
		Vectors:  report.Vectors,
		Reused:   report.Reused,
		Batches:  report.Batches,
		Failed:   report.Failed,
	})
}

// parseTimeParam accepts ISO 8601 timestamps and bare dates.
func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
