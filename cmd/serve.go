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

	"github.com/sells-group/site-insight/internal/model"
	"github.com/sells-group/site-insight/internal/progress"
	"github.com/sells-group/site-insight/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAnalysis(ctx, "serve")
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
			Handler:           newRouter(env, ctx),
			ReadHeaderTimeout: 10 * time.Second,
		}

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

// newRouter builds the API routes. runCtx outlives individual requests so
// analyses keep running after a client disconnects; their results persist for
// later retrieval.
func newRouter(env *analysisEnv, runCtx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Owner-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/analyses", func(r chi.Router) {
		r.Post("/", handleCreateAnalysis(env, runCtx))
		r.Get("/", handleListAnalyses(env))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handleGetAnalysis(env))
			r.Delete("/", handleDeleteAnalysis(env))
			r.Get("/progress", handleGetProgress(env))
			r.Get("/graph", handleGetResultField(env, func(res *model.AnalysisResult) any { return res.Graph }))
			r.Get("/topical-map", handleGetResultField(env, func(res *model.AnalysisResult) any { return res.TopicalMaps }))
			r.Get("/comparison", handleGetResultField(env, func(res *model.AnalysisResult) any { return res.Comparison }))
		})
	})
	return r
}

func handleCreateAnalysis(env *analysisEnv, runCtx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Targets []string `json:"targets"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Targets) == 0 {
			writeError(w, http.StatusBadRequest, "targets is required")
			return
		}
		if len(req.Targets) > 10 {
			writeError(w, http.StatusBadRequest, "too many targets (max 10)")
			return
		}

		owner := r.Header.Get("X-Owner-ID")
		if owner == "" {
			owner = "anonymous"
		}

		analysis, err := env.Store.CreateAnalysis(r.Context(), owner, req.Targets)
		if err != nil {
			zap.L().Error("create analysis", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create analysis")
			return
		}

		// Run on the server's context, not the request's: disconnecting
		// clients must not cancel an analysis in flight.
		go func() {
			if _, err := env.Orchestrator.Run(runCtx, analysis.ID, req.Targets); err != nil {
				zap.L().Warn("analysis run finished with error",
					zap.String("analysis_id", analysis.ID),
					zap.Error(err),
				)
			}
		}()

		writeJSON(w, http.StatusAccepted, analysis)
	}
}

func handleListAnalyses(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.Filter{
			OwnerID: r.Header.Get("X-Owner-ID"),
			Status:  model.AnalysisStatus(r.URL.Query().Get("status")),
		}
		list, err := env.Store.ListAnalyses(r.Context(), filter)
		if err != nil {
			zap.L().Error("list analyses", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list analyses")
			return
		}
		if list == nil {
			list = []model.Analysis{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetAnalysis(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analysis := lookupAnalysis(env, w, r)
		if analysis == nil {
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	}
}

func handleDeleteAnalysis(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := env.Store.DeleteAnalysis(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		env.Tracker.Discard(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetProgress(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snapshot, ok := env.Tracker.Get(id)
		if !ok {
			// Fall back to the store for analyses whose tracker entry aged
			// out.
			analysis := lookupAnalysis(env, w, r)
			if analysis == nil {
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"analysis_id": analysis.ID,
				"status":      analysis.Status,
			})
			return
		}
		if snapshot.Status != progress.StatusProcessing {
			// Keep the terminal entry around briefly for stragglers, then
			// drop it.
			env.Tracker.DiscardAfter(id)
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

func handleGetResultField(env *analysisEnv, pick func(*model.AnalysisResult) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analysis := lookupAnalysis(env, w, r)
		if analysis == nil {
			return
		}
		if analysis.Result == nil {
			writeError(w, http.StatusConflict, "analysis has no result yet")
			return
		}
		writeJSON(w, http.StatusOK, pick(analysis.Result))
	}
}

// lookupAnalysis fetches the analysis or writes the error response and
// returns nil.
func lookupAnalysis(env *analysisEnv, w http.ResponseWriter, r *http.Request) *model.Analysis {
	id := chi.URLParam(r, "id")
	analysis, err := env.Store.GetAnalysis(r.Context(), id)
	if err != nil {
		zap.L().Error("get analysis", zap.String("analysis_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return nil
	}
	if analysis == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return nil
	}
	return analysis
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
