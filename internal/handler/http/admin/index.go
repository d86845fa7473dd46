package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/handler/http/respond"
	"newswire-search/internal/observability/logging"
	"newswire-search/internal/usecase/indexing"
)

// IndexStateDTO is the JSON shape of a stored index state.
type IndexStateDTO struct {
	Name            string `json:"name"`
	ProviderIndexID string `json:"provider_index_id,omitempty"`
	EndpointID      string `json:"endpoint_id,omitempty"`
	DeployedID      string `json:"deployed_id,omitempty"`

	Dimensions   int    `json:"dimensions"`
	Distance     string `json:"distance"`
	TotalVectors int64  `json:"total_vectors"`

	Active      bool   `json:"active"`
	Deployed    bool   `json:"deployed"`
	LastUpdated string `json:"last_updated"`
}

func toIndexStateDTO(s *entity.IndexState) IndexStateDTO {
	return IndexStateDTO{
		Name:            s.Name,
		ProviderIndexID: s.ProviderIndexID,
		EndpointID:      s.EndpointID,
		DeployedID:      s.DeployedID,
		Dimensions:      s.Dimensions,
		Distance:        string(s.Distance),
		TotalVectors:    s.TotalVectors,
		Active:          s.Active,
		Deployed:        s.Deployed(),
		LastUpdated:     s.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// EnsureIndexRequest is the JSON body of an index ensure request. Omitted
// fields take the defaults: 768 dimensions, dot-product distance.
type EnsureIndexRequest struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions,omitempty"`
	Distance   string `json:"distance,omitempty"`
}

type EnsureIndexHandler struct {
	Svc    *indexing.Service
	Logger *slog.Logger
}

// ServeHTTP ANN 인덱스 보장
// @Summary      ANN 인덱스 보장
// @Description  활성 인덱스가 없으면 생성하고, 있으면 요청과 일치하는지 검증합니다 (멱등)
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body EnsureIndexRequest true "인덱스 사양"
// @Success      200 {object} IndexStateDTO "인덱스 상태"
// @Failure      400 {string} string "Bad request - invalid index spec"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      409 {string} string "Conflict - active index does not match the requested spec"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/index/ensure [post]
func (h EnsureIndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	var req EnsureIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Name == "" {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("name is required"))
		return
	}
	if req.Dimensions == 0 {
		req.Dimensions = entity.DefaultDimensions
	}
	distance := entity.Distance(req.Distance)
	if req.Distance == "" {
		distance = entity.DistanceDotProduct
	}
	if !distance.IsValid() {
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("invalid distance: %q", req.Distance))
		return
	}

	state, err := h.Svc.EnsureIndex(ctx, req.Name, req.Dimensions, distance)
	if err != nil {
		logger.Error("Index ensure failed",
			"name", req.Name,
			"error", err.Error())
		respond.SafeError(w, http.StatusConflict, err)
		return
	}

	logger.Info("Index ensured",
		"name", state.Name,
		"dimensions", state.Dimensions,
		"distance", string(state.Distance))
	respond.JSON(w, http.StatusOK, toIndexStateDTO(state))
}

// DeployRequest is the JSON body of an index deploy request.
type DeployRequest struct {
	EndpointName string `json:"endpoint_name"`
	DeployedID   string `json:"deployed_id"`
}

type DeployIndexHandler struct {
	Svc    *indexing.Service
	Logger *slog.Logger
}

// ServeHTTP ANN 인덱스 배포
// @Summary      ANN 인덱스 배포
// @Description  활성 인덱스를 질의 엔드포인트 뒤에 배포합니다. 배포 전에는 upsert만 가능합니다.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body DeployRequest true "배포 대상"
// @Success      200 {object} IndexStateDTO "인덱스 상태"
// @Failure      400 {string} string "Bad request - missing endpoint name"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/index/deploy [post]
func (h DeployIndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.EndpointName == "" {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("endpoint_name is required"))
		return
	}

	state, err := h.Svc.Deploy(ctx, req.EndpointName, req.DeployedID)
	if err != nil {
		logger.Error("Index deploy failed",
			"endpoint", req.EndpointName,
			"error", err.Error())
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Info("Index deployed",
		"name", state.Name,
		"endpoint_id", state.EndpointID)
	respond.JSON(w, http.StatusOK, toIndexStateDTO(state))
}

// ReconcileReportDTO is the JSON shape of one reconciliation report.
type ReconcileReportDTO struct {
	ArticlesScanned int   `json:"articles_scanned"`
	VectorsChecked  int   `json:"vectors_checked"`
	Missing         int   `json:"missing"`
	Reupserted      int   `json:"reupserted"`
	TotalVectors    int64 `json:"total_vectors"`
}

type ReconcileHandler struct {
	Svc    *indexing.Service
	Logger *slog.Logger
}

// ServeHTTP 인덱스 정합성 복구
// @Summary      인덱스 정합성 복구
// @Description  임베딩된 기사의 벡터가 인덱스에 살아있는지 검사하고 누락분을 재업서트합니다
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} ReconcileReportDTO "복구 보고서"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/index/reconcile [post]
func (h ReconcileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	report, err := h.Svc.Reconcile(ctx)
	if err != nil {
		logger.Error("Index reconcile failed", "error", err.Error())
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Info("Index reconciled",
		"articles_scanned", report.ArticlesScanned,
		"missing", report.Missing,
		"reupserted", report.Reupserted)

	respond.JSON(w, http.StatusOK, ReconcileReportDTO{
		ArticlesScanned: report.ArticlesScanned,
		VectorsChecked:  report.VectorsChecked,
		Missing:         report.Missing,
		Reupserted:      report.Reupserted,
		TotalVectors:    report.TotalVectors,
	})
}

// IndexStatsDTO combines the stored index state with the provider's live
// view of the same index.
type IndexStatsDTO struct {
	State    *IndexStateDTO `json:"state,omitempty"`
	Provider *ProviderDTO   `json:"provider,omitempty"`
}

// ProviderDTO is the provider-side view of the index.
type ProviderDTO struct {
	State        string `json:"state"`
	TotalVectors int64  `json:"total_vectors"`
	Tombstones   int64  `json:"tombstones"`
	LastUpdated  string `json:"last_updated"`
}

type IndexStatsHandler struct{ Svc *indexing.Service }

// ServeHTTP 인덱스 상태 조회
// @Summary      인덱스 상태 조회
// @Description  저장된 인덱스 상태와 프로바이더 측 상태를 함께 조회합니다
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} IndexStatsDTO "인덱스 상태"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/index/stats [get]
func (h IndexStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	out := IndexStatsDTO{}
	if stats.State != nil {
		dto := toIndexStateDTO(stats.State)
		out.State = &dto
	}
	if stats.ProviderView != nil {
		out.Provider = &ProviderDTO{
			State:        stats.ProviderView.State,
			TotalVectors: stats.ProviderView.TotalVectors,
			Tombstones:   stats.ProviderView.Tombstones,
			LastUpdated:  stats.ProviderView.LastUpdated.UTC().Format(time.RFC3339),
		}
	}
	respond.JSON(w, http.StatusOK, out)
}

type DeleteIndexHandler struct {
	Svc    *indexing.Service
	Logger *slog.Logger
}

// ServeHTTP ANN 인덱스 삭제
// @Summary      ANN 인덱스 삭제
// @Description  활성 인덱스를 프로바이더와 상태 저장소에서 제거합니다
// @Tags         admin
// @Security     BearerAuth
// @Success      204 "No Content"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/index [delete]
func (h DeleteIndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	if err := h.Svc.DeleteIndex(ctx); err != nil {
		logger.Error("Index delete failed", "error", err.Error())
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Info("Index deleted")
	w.WriteHeader(http.StatusNoContent)
}
