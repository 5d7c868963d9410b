// Package api serves the Profile API, session endpoints and stored media.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/gallery/internal/auth"
	"github.com/kalambet/gallery/internal/media"
	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/worker"
)

const (
	maxRequestBodySize   = 1 << 20 // 1MB
	maxMultipartBodySize = 6 << 20 // 6MB
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AppDeps struct {
	Profiles *profile.Manager
	Sessions *auth.Sessions
	Media    media.Store
	Jobs     worker.Enqueuer
	Store    Pinger

	// MediaHandler serves stored objects under MediaPrefix; optional.
	MediaHandler http.Handler
	MediaPrefix  string

	// DevLogin enables password-less sign-in by email.
	DevLogin bool
}

// NewRouter returns the HTTP handler for the whole service.
func NewRouter(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(deps.Sessions.Middleware)

	r.Get("/health", handleHealth(deps))

	r.Route("/api", func(r chi.Router) {
		r.Get("/profile/{username}", handleGetProfile(deps))
		r.Get("/username/check", handleCheckUsername(deps))

		r.Post("/auth/session", handleCreateSession(deps))
		r.Delete("/auth/session", handleDeleteSession(deps))

		r.Group(func(r chi.Router) {
			r.Use(requireViewer)

			r.Get("/me", handleMe(deps))
			r.Get("/me/username", handleGetUsername(deps))
			r.Post("/me/username", handleSetUsername(deps))

			r.Put("/profile/intro", handleUpdateIntro(deps))
			r.Put("/profile/skills", handleUpdateSkills(deps))
			r.Put("/profile/works", handleUpdateWork(deps))
			r.Put("/profile/links", handleUpdateLinks(deps))
		})
	})

	if deps.MediaHandler != nil {
		prefix := deps.MediaPrefix
		if prefix == "" {
			prefix = "/media"
		}
		r.Handle(prefix+"/*", http.StripPrefix(prefix, deps.MediaHandler))
	}

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Store.Ping(ctx); err != nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "storage unavailable: %v", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// requireViewer rejects anonymous requests with 401.
func requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.ViewerFrom(r.Context()) == nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
