package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"coach-agent/internal/observability"
)

const maxBodyBytes = 64 << 10

// Routes returns the same API as Handle for a long-running HTTP server.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(correlationID)
	r.Use(cors)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Post("/api/chat", h.serveHTTP(h.chat))
	r.Post("/api/progress", h.serveHTTP(h.progress))
	r.Post("/api/exercise", h.serveHTTP(h.exercise))

	notFound := func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorNotFound})
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
	return r
}

func (h *Handler) serveHTTP(ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			status, payload := invalidBody(r.Context(), err)
			writeJSON(w, status, payload)
			return
		}
		status, payload := ep(r.Context(), body)
		writeJSON(w, status, payload)
	}
}

func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(observability.WithCorrelationID(r.Context(), id)))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.Logger().Error("failed to encode response", "err", err)
	}
}
