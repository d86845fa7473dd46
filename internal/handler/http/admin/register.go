package admin

import (
	"log/slog"
	"net/http"

	"newswire-search/internal/handler/http/auth"
	"newswire-search/internal/usecase/indexing"
	"newswire-search/internal/usecase/ingest"
)

// Register registers the operator endpoints with the given mux. Every route
// goes through the auth middleware, which requires the admin role for
// non-GET methods and for paths outside the viewer allowlist.
func Register(mux *http.ServeMux, ingestSvc *ingest.Service, indexSvc *indexing.Service, logger *slog.Logger) {
	mux.Handle("POST /api/ingest", auth.Authz(RunIngestHandler{Svc: ingestSvc, Logger: logger, Full: true}))
	mux.Handle("POST /api/ingest/incremental", auth.Authz(RunIngestHandler{Svc: ingestSvc, Logger: logger}))
	mux.Handle("GET  /api/ingest/stats", auth.Authz(IngestStatsHandler{Svc: ingestSvc}))
	mux.Handle("POST /api/ingest/cleanup", auth.Authz(CleanupHandler{Svc: ingestSvc, Logger: logger}))
	mux.Handle("POST /api/ingest/embed", auth.Authz(EmbedPendingHandler{Svc: ingestSvc, Logger: logger}))

	mux.Handle("POST   /api/index/ensure", auth.Authz(EnsureIndexHandler{Svc: indexSvc, Logger: logger}))
	mux.Handle("POST   /api/index/deploy", auth.Authz(DeployIndexHandler{Svc: indexSvc, Logger: logger}))
	mux.Handle("POST   /api/index/reconcile", auth.Authz(ReconcileHandler{Svc: indexSvc, Logger: logger}))
	mux.Handle("GET    /api/index/stats", auth.Authz(IndexStatsHandler{Svc: indexSvc}))
	mux.Handle("DELETE /api/index", auth.Authz(DeleteIndexHandler{Svc: indexSvc, Logger: logger}))
}
