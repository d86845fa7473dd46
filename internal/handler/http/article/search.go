package article

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/handler/http/respond"
	"newswire-search/internal/pkg/search"
	"newswire-search/internal/repository"
	artUC "newswire-search/internal/usecase/article"
)

type SearchHandler struct{ Svc *artUC.Service }

// ServeHTTP 기사 키워드 검색
// @Summary      기사 키워드 검색
// @Description  공백으로 구분된 복수 키워드로 기사를 검색합니다 (AND 조건)
// @Tags         articles
// @Security     BearerAuth
// @Produce      json
// @Param        keyword query string true "검색 키워드 (공백 구분)"
// @Param        category query string false "분류 코드명으로 필터"
// @Param        writer query string false "기자명으로 필터"
// @Param        media_code query string false "매체 코드로 필터"
// @Param        article_type query string false "기사 유형으로 필터 (financial, mna, people, policy, technology, general)"
// @Param        from query string false "발행 시각 시작 (ISO 8601 또는 YYYY-MM-DD)"
// @Param        to query string false "발행 시각 종료 (ISO 8601 또는 YYYY-MM-DD)"
// @Param        limit query int false "최대 건수" default(50) minimum(1) maximum(500)
// @Success      200 {object} ListResponse "검색 결과"
// @Failure      400 {string} string "Bad request"
// @Failure      401 {string} string "Authentication required"
// @Failure      500 {string} string "서버 오류"
// @Router       /api/articles/search [get]
func (h SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kw := q.Get("keyword")
	if kw == "" {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("keyword query param required"))
		return
	}

	// Validate token count and length before the query hits the store.
	if _, err := search.ParseKeywords(kw, search.DefaultMaxKeywordCount, search.DefaultMaxKeywordLength); err != nil {
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("invalid keyword: %w", err))
		return
	}

	filters := repository.ArticleSearchFilters{
		Category:  q.Get("category"),
		Writer:    q.Get("writer"),
		MediaCode: q.Get("media_code"),
	}

	if typeStr := q.Get("article_type"); typeStr != "" {
		articleType := entity.ArticleType(typeStr)
		if !articleType.IsValid() {
			respond.SafeError(w, http.StatusBadRequest,
				fmt.Errorf("invalid article_type: %q", typeStr))
			return
		}
		filters.ArticleType = articleType
	}

	if fromStr := q.Get("from"); fromStr != "" {
		from, err := parseTimeParam(fromStr)
		if err != nil {
			respond.SafeError(w, http.StatusBadRequest,
				fmt.Errorf("invalid from date: %w", err))
			return
		}
		filters.From = &from
	}

	if toStr := q.Get("to"); toStr != "" {
		to, err := parseTimeParam(toStr)
		if err != nil {
			respond.SafeError(w, http.StatusBadRequest,
				fmt.Errorf("invalid to date: %w", err))
			return
		}
		filters.To = &to
	}

	if filters.From != nil && filters.To != nil && filters.From.After(*filters.To) {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("invalid date range: from must be before or equal to to"))
		return
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			respond.SafeError(w, http.StatusBadRequest,
				errors.New("limit must be a positive integer"))
			return
		}
		filters.Limit = n
	}

	list, err := h.Svc.Search(r.Context(), kw, filters)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := toDTOs(list)
	respond.JSON(w, http.StatusOK, ListResponse{Articles: dtos, Count: len(dtos)})
}

// parseTimeParam accepts ISO 8601 timestamps and bare dates.
func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
