package article

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"newswire-search/internal/handler/http/requestid"
	"newswire-search/internal/handler/http/respond"
	"newswire-search/internal/observability/logging"
	artUC "newswire-search/internal/usecase/article"
)

// ListResponse wraps a page of articles with its count.
type ListResponse struct {
	Articles []DTO `json:"articles"`
	Count    int   `json:"count"`
}

type ListHandler struct {
	Svc    *artUC.Service
	Logger *slog.Logger
}

// ServeHTTP 최신 기사 목록 조회
// @Summary      최신 기사 목록 조회
// @Description  수집 시각 기준 최신 기사를 조회합니다. limit 파라미터로 건수를 제한할 수 있습니다.
// @Tags         articles
// @Security     BearerAuth
// @Produce      json
// @Param        limit  query    int  false  "최대 건수" default(50) minimum(1) maximum(500)
// @Success      200 {object} ListResponse "기사 목록"
// @Failure      400 {string} string "Invalid query parameters"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/articles [get]
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	reqID := requestid.FromContext(ctx)
	logger := logging.WithRequestID(ctx, h.Logger)

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			respond.SafeError(w, http.StatusBadRequest,
				errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	articles, err := h.Svc.ListRecent(ctx, limit)
	if err != nil {
		logger.Error("Failed to list articles",
			"error", err.Error(),
			"limit", limit,
			"request_id", reqID)
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := toDTOs(articles)
	logger.Info("Article list served",
		"limit", limit,
		"returned_count", len(dtos),
		"duration_ms", time.Since(startTime).Milliseconds(),
		"request_id", reqID)

	respond.JSON(w, http.StatusOK, ListResponse{Articles: dtos, Count: len(dtos)})
}
