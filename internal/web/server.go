package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"stockanalyzer/internal/analysis"
	"stockanalyzer/internal/config"
	"stockanalyzer/internal/symbols"
)

// Server serves the analysis API over HTTP
type Server struct {
	config   *config.Config
	service  *analysis.Service
	resolver *symbols.Resolver
	srv      *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, service *analysis.Service) *Server {
	return &Server{
		config:   cfg,
		service:  service,
		resolver: symbols.NewResolver(cfg.Exchanges),
	}
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleWelcome)
	mux.HandleFunc("/stock", s.handleStock)
	mux.HandleFunc("/stocks", s.handleStocks)

	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/metrics.csv", s.handleMetricsCSV)
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/chart.png", s.handleChart)
	mux.HandleFunc("/api/strategies", s.handleStrategies)
	mux.HandleFunc("/api/universe", s.handleUniverse)
	mux.HandleFunc("/api/history", s.handleHistory)

	return corsMiddleware(mux)
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("[WEB] Stock Analyzer API listening on http://localhost:%d", port)

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
