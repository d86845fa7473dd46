package article

import (
	"errors"
	"net/http"

	"newswire-search/internal/handler/http/pathutil"
	"newswire-search/internal/handler/http/respond"
	artUC "newswire-search/internal/usecase/article"
)

type DeleteHandler struct{ Svc *artUC.Service }

// ServeHTTP 기사 삭제
// @Summary      기사 삭제
// @Description  기사를 논리 삭제합니다. 저장소 행은 tombstone 처리되고 벡터는 인덱스에서 제거됩니다.
// @Tags         articles
// @Security     BearerAuth
// @Param        id path int true "기사 ID"
// @Success      204 "No Content"
// @Failure      400 {string} string "Bad request - invalid ID"
// @Failure      401 {string} string "Authentication required - missing or invalid JWT token"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      404 {string} string "Not found - article not found"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/articles/{id} [delete]
func (h DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/api/articles/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.Delete(r.Context(), id); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, artUC.ErrInvalidArticleID) {
			code = http.StatusBadRequest
		} else if errors.Is(err, artUC.ErrArticleNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
