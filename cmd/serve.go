package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrichment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API router. Split out so tests can exercise the
// handlers without a listening socket.
func newRouter(env *enrichEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/company/match", handleCompanyMatch(env))
		r.Post("/leads/enrich", handleLeadEnrich(env))
	})

	return r
}

type matchRequest struct {
	Name       string  `json:"name"`
	City       string  `json:"city"`
	Country    string  `json:"country"`
	ScoreLimit float64 `json:"score_limit"`
}

type matchResponse struct {
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	TotalHits int           `json:"total_hits"`
	Matches   []orbis.Match `json:"matches"`
}

// handleCompanyMatch exposes the raw directory fuzzy match.
func handleCompanyMatch(env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, matchResponse{Error: "invalid request body"})
			return
		}
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, matchResponse{Error: "name is required"})
			return
		}

		matches, err := env.Orbis.MatchCompanies(r.Context(),
			orbis.MatchCriteria{Name: req.Name, City: req.City, Country: req.Country},
			orbis.MatchOptions{ScoreLimit: req.ScoreLimit},
		)
		if err != nil {
			zap.L().Error("company match failed", zap.String("name", req.Name), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, matchResponse{Error: "directory unavailable"})
			return
		}

		if matches == nil {
			matches = []orbis.Match{}
		}
		writeJSON(w, http.StatusOK, matchResponse{
			Success:   true,
			TotalHits: len(matches),
			Matches:   matches,
		})
	}
}

type enrichResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Lead    *model.EnrichedLead `json:"lead,omitempty"`
}

// handleLeadEnrich runs the full pipeline for one lead. Success is false
// only on input validation failure: a low-confidence or empty enrichment
// is still a success.
func handleLeadEnrich(env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lead model.Lead
		if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
			writeJSON(w, http.StatusBadRequest, enrichResponse{Error: "invalid request body"})
			return
		}

		enriched, err := env.Enricher.Enrich(r.Context(), lead)
		if err != nil {
			status := http.StatusInternalServerError
			if resilience.IsValidation(err) {
				status = http.StatusUnprocessableEntity
			}
			writeJSON(w, status, enrichResponse{Error: err.Error()})
			return
		}

		if err := env.Store.SaveEnrichedLead(r.Context(), enriched); err != nil {
			zap.L().Warn("persist enriched lead failed", zap.String("id", enriched.ID), zap.Error(err))
		}

		writeJSON(w, http.StatusOK, enrichResponse{Success: true, Lead: enriched})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
