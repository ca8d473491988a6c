/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Honors proxy headers for logging
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the verification frontend

ROUTE GROUPS:
  /api/v1/upload       Document ingestion
  /api/v1/verify/*     Public traceability + integrity audit
  /api/v1/ledger/*     Recent records and aggregates
  /api/v1/shipments/*  Consistency graphs
  /health              Liveness
  /metrics             Prometheus scrape target

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.Settings.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", h.Upload)

		r.Route("/verify", func(r chi.Router) {
			r.Get("/integrity/check", h.CheckIntegrity)
			r.Get("/integrity/last", h.LastIntegrity)
			r.Get("/file/{fileID}", h.VerifyFile)
			r.Get("/{batchID}", h.VerifyBatch)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/records", h.ListRecords)
			r.Get("/stats", h.GetStats)
		})

		r.Route("/shipments", func(r chi.Router) {
			r.Get("/{shipmentID}/consistency-graph", h.GetConsistencyGraph)
		})
	})

	r.Get("/health", h.Health)
	r.Method("GET", "/metrics", promhttp.Handler())

	return r
}
