// Package query provides the HTTP handler for the natural-language query
// endpoint. It decodes the request, delegates to the query use case, and
// maps use case errors to HTTP status codes.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newswire-search/internal/handler/http/auth"
	"newswire-search/internal/handler/http/requestid"
	"newswire-search/internal/handler/http/respond"
	"newswire-search/internal/observability/logging"
	queryUC "newswire-search/internal/usecase/query"
)

// maxRequestBody bounds the query request body. A natural-language query
// with filters fits comfortably under 64KiB.
const maxRequestBody = 64 * 1024

// WeightsDTO carries optional score blend overrides.
type WeightsDTO struct {
	Vector  float64 `json:"vector" example:"0.6"`
	Keyword float64 `json:"keyword" example:"0.3"`
	Rerank  float64 `json:"rerank" example:"0.1"`
}

// FiltersDTO carries optional retrieval filters. Zero values mean "any".
type FiltersDTO struct {
	From             string   `json:"from,omitempty" example:"2024-06-01"`
	To               string   `json:"to,omitempty" example:"2024-06-30"`
	Categories       []string `json:"categories,omitempty"`
	Writers          []string `json:"writers,omitempty"`
	MinBodyLength    int      `json:"min_body_length,omitempty"`
	HasImages        bool     `json:"has_images,omitempty"`
	RequiredKeywords []string `json:"required_keywords,omitempty"`
	StockCodes       []string `json:"stock_codes,omitempty"`
}

// RequestDTO is the JSON body of a query request.
type RequestDTO struct {
	Query            string      `json:"query" example:"최근 반도체 수출 동향은?"`
	TopK             int         `json:"top_k,omitempty" example:"5"`
	Weights          *WeightsDTO `json:"weights,omitempty"`
	Filters          *FiltersDTO `json:"filters,omitempty"`
	MaxContextLength int         `json:"max_context_length,omitempty"`
}

type Handler struct {
	Svc    *queryUC.Service
	Logger *slog.Logger
}

// ServeHTTP 자연어 질의 응답
// @Summary      자연어 질의 응답
// @Description  자연어 질의를 분석하고 하이브리드 검색으로 관련 기사를 찾아 답변을 생성합니다
// @Tags         query
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body RequestDTO true "질의 요청"
// @Success      200 {object} queryUC.Response "답변과 검색 결과"
// @Failure      400 {string} string "Bad request - empty query or invalid parameters"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      503 {string} string "Service unavailable - all retrieval backends failed"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/query [post]
func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := requestid.FromContext(ctx)
	logger := logging.WithRequestID(ctx, h.Logger)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var dto RequestDTO
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dto); err != nil {
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("invalid request body: %w", err))
		return
	}

	req, err := dto.toRequest()
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	started := time.Now()
	resp, err := h.Svc.Query(ctx, req)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, queryUC.ErrEmptyQuery):
			code = http.StatusBadRequest
		case errors.Is(err, queryUC.ErrNoBackend):
			code = http.StatusServiceUnavailable
		}
		logger.Error("Query failed",
			"error", err.Error(),
			"status", code,
			"request_id", reqID)
		respond.SafeError(w, code, err)
		return
	}

	logger.Info("Query answered",
		"mode", resp.Mode,
		"intent", string(resp.Intent),
		"degraded", resp.Degraded,
		"retrieved_count", len(resp.RetrievedDocs),
		"duration_ms", time.Since(started).Milliseconds(),
		"request_id", reqID)

	respond.JSON(w, http.StatusOK, resp)
}

// toRequest converts the wire form to the use case request. Date parsing
// accepts ISO 8601 timestamps and bare dates.
func (dto RequestDTO) toRequest() (queryUC.Request, error) {
	req := queryUC.Request{
		Query:            dto.Query,
		TopK:             dto.TopK,
		MaxContextLength: dto.MaxContextLength,
	}

	if dto.Weights != nil {
		w := queryUC.Weights{
			Vector:  dto.Weights.Vector,
			Keyword: dto.Weights.Keyword,
			Rerank:  dto.Weights.Rerank,
		}
		if err := w.Validate(); err != nil {
			return queryUC.Request{}, fmt.Errorf("invalid weights: %w", err)
		}
		req.Weights = &w
	}

	if dto.Filters != nil {
		f := queryUC.Filters{
			Categories:       dto.Filters.Categories,
			Writers:          dto.Filters.Writers,
			MinBodyLength:    dto.Filters.MinBodyLength,
			HasImages:        dto.Filters.HasImages,
			RequiredKeywords: dto.Filters.RequiredKeywords,
			StockCodes:       dto.Filters.StockCodes,
		}
		if dto.Filters.From != "" {
			from, err := parseTimeParam(dto.Filters.From)
			if err != nil {
				return queryUC.Request{}, fmt.Errorf("invalid from date: %w", err)
			}
			f.From = &from
		}
		if dto.Filters.To != "" {
			to, err := parseTimeParam(dto.Filters.To)
			if err != nil {
				return queryUC.Request{}, fmt.Errorf("invalid to date: %w", err)
			}
			f.To = &to
		}
		if f.From != nil && f.To != nil && f.From.After(*f.To) {
			return queryUC.Request{}, errors.New("invalid date range: from must be before or equal to to")
		}
		req.Filters = &f
	}

	return req, nil
}

func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// Register registers the query endpoint with the given mux.
func Register(mux *http.ServeMux, svc *queryUC.Service, logger *slog.Logger) {
	mux.Handle("POST /api/query", auth.Authz(Handler{Svc: svc, Logger: logger}))
}
