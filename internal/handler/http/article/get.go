package article

import (
	"errors"
	"net/http"
	"strings"

	"newswire-search/internal/handler/http/pathutil"
	"newswire-search/internal/handler/http/respond"
	artUC "newswire-search/internal/usecase/article"
)

type GetHandler struct{ Svc *artUC.Service }

// ServeHTTP 기사 상세 조회
// @Summary      기사 상세 조회
// @Description  내부 ID로 기사 본문을 포함한 상세 정보를 조회합니다
// @Tags         articles
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "기사 ID"
// @Success      200 {object} DTO "기사 상세"
// @Failure      400 {string} string "Bad request - invalid article ID"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      404 {string} string "Not found - article not found"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/articles/{id} [get]
func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/api/articles/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	art, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, artUC.ErrInvalidArticleID) {
			code = http.StatusBadRequest
		} else if errors.Is(err, artUC.ErrArticleNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}

	respond.JSON(w, http.StatusOK, toDTO(art, true))
}

type GetByExternalHandler struct{ Svc *artUC.Service }

// ServeHTTP 외부 ID로 기사 조회
// @Summary      외부 ID로 기사 조회
// @Description  통신사 기사 식별자(예: AKR20240619001)로 기사를 조회합니다
// @Tags         articles
// @Security     BearerAuth
// @Produce      json
// @Param        external_id path string true "통신사 기사 식별자"
// @Success      200 {object} DTO "기사 상세"
// @Failure      400 {string} string "Bad request - missing external ID"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      404 {string} string "Not found - article not found"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/articles/external/{external_id} [get]
func (h GetByExternalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	externalID := strings.TrimPrefix(r.URL.Path, "/api/articles/external/")
	if externalID == "" || strings.Contains(externalID, "/") {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("external ID is required"))
		return
	}

	art, err := h.Svc.GetByExternalID(r.Context(), externalID)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, artUC.ErrInvalidArticleID) {
			code = http.StatusBadRequest
		} else if errors.Is(err, artUC.ErrArticleNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}

	respond.JSON(w, http.StatusOK, toDTO(art, true))
}
