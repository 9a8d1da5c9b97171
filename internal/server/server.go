// Package server exposes the analysis pipelines over HTTP, relaying
// newline-delimited JSON event streams and persisting finished
// transcripts.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"stock-scanner/internal/config"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
	"stock-scanner/internal/orchestrator"
	"stock-scanner/internal/ratelimit"
	"stock-scanner/internal/store"
)

// Server is the HTTP front of the scanner.
type Server struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	provider market.Provider
	scorer   market.Scorer
	orch     *orchestrator.Orchestrator
	limiter  *ratelimit.PerUser
	log      zerolog.Logger
}

// New wires the HTTP layer. The store backs both history persistence
// and, through its indicator tables, the default data provider.
func New(cfg *config.Config, st *store.SQLiteStore, log zerolog.Logger) *Server {
	provider := store.Provider(st)
	scorer := market.NewTechnicalScorer()
	defaults := llm.Overrides{
		URL:     cfg.API.URL,
		Key:     cfg.API.Key,
		Model:   cfg.API.Model,
		Timeout: cfg.API.Timeout,
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		provider: provider,
		scorer:   scorer,
		orch:     orchestrator.New(provider, scorer, defaults, log),
		limiter:  ratelimit.NewPerUser(float64(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst),
		log:      log,
	}
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)

	mux.HandleFunc("GET /api/history", s.handleListHistory)
	mux.HandleFunc("GET /api/history/{id}", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)

	mux.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.handlePostMessage)
	mux.HandleFunc("GET /api/conversations/prompts/random", s.handleRandomPrompt)

	mux.HandleFunc("GET /api/favorites", s.handleListFavorites)
	mux.HandleFunc("POST /api/favorites", s.handleAddFavorite)
	mux.HandleFunc("DELETE /api/favorites/{code}", s.handleRemoveFavorite)

	mux.HandleFunc("POST /api/indicator_rows", s.handleImportIndicatorRows)

	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("POST /api/test_api_connection", s.handleTestAPIConnection)

	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Server.Addr,
		Handler:     s.Routes(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: analysis streams are long-lived.
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// currentUser resolves the caller identity. Authentication is handled
// upstream; the identity arrives as a trusted header.
func currentUser(r *http.Request) string {
	if user := r.Header.Get("X-User"); user != "" {
		return user
	}
	return "anonymous"
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
