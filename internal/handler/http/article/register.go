package article

import (
	"log/slog"
	"net/http"

	"newswire-search/internal/handler/http/auth"
	artUC "newswire-search/internal/usecase/article"
)

// Register registers all article-related HTTP handlers with the given mux.
// It sets up routes for listing, searching, and retrieving articles.
// Deletion requires the admin role via the auth middleware.
func Register(mux *http.ServeMux, svc *artUC.Service, logger *slog.Logger) {
	mux.Handle("GET    /api/articles", auth.Authz(ListHandler{Svc: svc, Logger: logger}))
	mux.Handle("GET    /api/articles/search", auth.Authz(SearchHandler{Svc: svc}))
	mux.Handle("GET    /api/articles/external/", auth.Authz(GetByExternalHandler{Svc: svc}))
	mux.Handle("GET    /api/articles/", auth.Authz(GetHandler{Svc: svc}))

	mux.Handle("DELETE /api/articles/", auth.Authz(DeleteHandler{Svc: svc}))
}
