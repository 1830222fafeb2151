package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	apperrors "medisync-rag/internal/errors"
	"medisync-rag/internal/rag"
)

type contextKey string

// SessionContextKey is the context key for storing the resolved session
const SessionContextKey contextKey = "session"

// sessionMiddleware resolves {id} to a live session and holds the session's
// lock for the whole request. A session already handling a request is busy.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		entry, ok := s.sessions.get(id)
		if !ok {
			s.errors.Handle(w, r, apperrors.ErrSessionNotFound)
			return
		}

		if !entry.mu.TryLock() {
			s.errors.Handle(w, r, apperrors.ErrSessionBusy)
			return
		}
		defer entry.mu.Unlock()

		ctx := context.WithValue(r.Context(), SessionContextKey, entry.session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionFromContext extracts the resolved session from the context
func GetSessionFromContext(ctx context.Context) *rag.Session {
	session, ok := ctx.Value(SessionContextKey).(*rag.Session)
	if !ok {
		panic("session not found in context")
	}
	return session
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}
