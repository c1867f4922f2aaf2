// Package dashboard serves the latest scan results over a small
// read-only JSON API. It holds a snapshot in memory; whoever runs the
// scans pushes fresh results in and the server never touches market
// data itself.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/mlaurent/spreadwright/internal/config"
	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/scanner"
)

// RejectionView is the wire form of a declined (ticker, bias) pair.
type RejectionView struct {
	Ticker string      `json:"ticker"`
	Bias   models.Bias `json:"bias"`
	Gate   string      `json:"gate"`
	Reason string      `json:"reason"`
}

// Server is the read-only results API.
type Server struct {
	router    *chi.Mux
	logger    *logrus.Logger
	port      int
	authToken string
	server    *http.Server

	mu      sync.RWMutex
	results []scanner.Result
	updated time.Time
}

// NewServer returns a Server with no results yet; /api routes serve
// empty lists until the first SetResults.
func NewServer(cfg config.DashboardConfig, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/strategies", s.handleGetStrategies)
	s.router.Get("/api/strategy/{id}", s.handleGetStrategy)
	s.router.Get("/api/rejections", s.handleGetRejections)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetResults swaps in a fresh scan snapshot.
func (s *Server) SetResults(results []scanner.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = results
	s.updated = time.Now()
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Infof("Starting results server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	updated := s.updated
	s.mu.RUnlock()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	if !updated.IsZero() {
		health["last_scan"] = updated.Unix()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health response")
	}
}

// handleGetStrategies serves the built strategies ordered by expected
// P&L per dollar of risk.
func (s *Server) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	best := scanner.Best(s.results)
	s.mu.RUnlock()

	strategies := make([]*models.Strategy, 0, len(best))
	for _, res := range best {
		strategies = append(strategies, res.Strategy)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(strategies); err != nil {
		s.logger.WithError(err).Error("Failed to encode strategies")
	}
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, res := range s.results {
		if res.Strategy != nil && res.Strategy.ID == id {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(res.Strategy); err != nil {
				s.logger.WithError(err).Error("Failed to encode strategy")
			}
			return
		}
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

func (s *Server) handleGetRejections(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	views := make([]RejectionView, 0)
	for _, res := range s.results {
		if res.Rejection == nil {
			continue
		}
		views = append(views, RejectionView{
			Ticker: res.Ticker,
			Bias:   res.Bias,
			Gate:   string(res.Rejection.Category),
			Reason: res.Rejection.Reason,
		})
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		s.logger.WithError(err).Error("Failed to encode rejections")
	}
}
