package api

import (
	"net/http"
)

// SetupRoutes registers all API routes on mux.
func SetupRoutes(mux *http.ServeMux, handler *Handler, metricsHandler http.Handler) {
	mux.HandleFunc("/healthz", handler.HealthCheck)
	mux.HandleFunc("/api/health", handler.HealthCheck)

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	// Source catalog
	mux.HandleFunc("/api/sources", handler.ListCatalogSources)
	mux.HandleFunc("/api/sources/", handler.CatalogSubtree)

	// Unified connectors and everything below them: sources, discovered
	// leads, sync triggers.
	mux.HandleFunc("/api/connectors", handler.Connectors)
	mux.HandleFunc("/api/connectors/", handler.ConnectorSubtree)
}
