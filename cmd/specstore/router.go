package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

// buildRouter creates the operations router: health and metrics.
func buildRouter(cfg config.MetricsConfig, m *metrics.Metrics, store widecolumn.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth(store, m))
	r.Method(http.MethodGet, cfg.Path, m.Handler())

	return r
}

// handleHealth reports the store's health and records it on m.
func handleHealth(store widecolumn.Client, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := http.StatusOK
		body := map[string]string{"status": "ok", "version": version}

		if err := store.HealthCheck(r.Context()); err != nil {
			code = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body["error"] = err.Error()
		}
		m.SetStoreUp(code == http.StatusOK)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
