// Package api exposes the tracker over HTTP (chi router) and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/jobtrail/internal/parser"
	"github.com/kalambet/jobtrail/internal/profile"
	"github.com/kalambet/jobtrail/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// JobParser resolves a parse request into a validated extraction.
type JobParser interface {
	ParseJobPost(ctx context.Context, req parser.ParseRequest) (parser.ParseResult, error)
}

// Ticker runs one scheduler pass. Implemented by scheduler.Scheduler.
type Ticker interface {
	Tick(ctx context.Context) (bool, error)
}

type AppDeps struct {
	Store   *storage.Store
	Profile *profile.Manager
	Parser  JobParser
	Ticker  Ticker
	Token   string
	Logger  *slog.Logger
}

// NewAppHandler builds the HTTP surface: bearer-authed /api routes, the
// cron trigger, health and metrics.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/parse-job", handleParseJob(deps))

		r.Post("/jobs", handleCreateJob(deps))
		r.Get("/jobs", handleListJobs(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
		r.Patch("/jobs/{id}/status", handleUpdateStatus(deps))
		r.Patch("/jobs/{id}/submission", handleUpdateSubmission(deps))
		r.Post("/jobs/{id}/regenerate", handleRegenerate(deps))
		r.Get("/jobs/{id}/documents", handleListDocuments(deps))

		r.Get("/profile", handleGetProfile(deps))
		r.Patch("/profile", handlePatchProfile(deps))
	})

	// Fire-and-forget trigger for external cron setups. Errors are logged,
	// never returned; a failing tick must not break the cron job.
	r.Post("/internal/cron", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ticker != nil {
			if _, err := deps.Ticker.Tick(r.Context()); err != nil {
				deps.Logger.Error("cron tick failed", "error", err)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, code string, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": fmt.Sprintf(format, args...),
		"code":  code,
	})
}
