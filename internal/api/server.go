// Package api exposes assistant sessions over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ory/herodot"

	apperrors "medisync-rag/internal/errors"
	"medisync-rag/internal/loader"
	"medisync-rag/internal/logging"
	"medisync-rag/internal/models"
	"medisync-rag/internal/rag"
)

// DefaultMaxUploadBytes bounds a multipart document upload.
const DefaultMaxUploadBytes = 32 << 20

type Server struct {
	mux            *http.ServeMux
	assistant      *rag.Assistant
	sessions       *SessionRegistry
	writer         *herodot.JSONWriter
	errors         *apperrors.ErrorHandler
	logger         *slog.Logger
	maxUploadBytes int64
}

// Options tune a Server. Zero values select defaults.
type Options struct {
	Logger         *slog.Logger
	DetailedErrors bool
	MaxUploadBytes int64
}

func NewServer(assistant *rag.Assistant, opts Options) *Server {
	logger := logging.OrDiscard(opts.Logger)
	writer := herodot.NewJSONWriter(nil)
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		mux:            http.NewServeMux(),
		assistant:      assistant,
		sessions:       NewSessionRegistry(),
		writer:         writer,
		errors:         apperrors.NewErrorHandler(writer, logger, opts.DetailedErrors),
		logger:         logger,
		maxUploadBytes: opts.MaxUploadBytes,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.healthCheck)
	s.mux.HandleFunc("POST /sessions", s.createSession)

	session := func(h http.HandlerFunc) http.Handler { return s.sessionMiddleware(h) }
	s.mux.Handle("GET /sessions/{id}", session(s.getSession))
	s.mux.Handle("DELETE /sessions/{id}", session(s.deleteSession))
	s.mux.Handle("POST /sessions/{id}/documents", session(s.uploadDocuments))
	s.mux.Handle("PUT /sessions/{id}/role", session(s.setRole))
	s.mux.Handle("POST /sessions/{id}/questions", session(s.askQuestion))
	s.mux.Handle("GET /sessions/{id}/history", session(s.getHistory))
	s.mux.Handle("DELETE /sessions/{id}/history", session(s.resetHistory))
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.logger, s.mux)
}

// Sessions exposes the registry, e.g. to close all sessions on shutdown.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	response := &models.HealthResponse{
		Status:         "healthy",
		EmbeddingModel: s.assistant.EmbeddingModel(),
		GeneratorModel: s.assistant.GeneratorModel(),
		Sessions:       s.sessions.Len(),
	}
	s.writer.Write(w, r, response)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req models.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(fmt.Errorf("invalid request body: %w", err)))
		return
	}

	session := s.assistant.NewSession()
	if req.Role != "" {
		role, err := models.ParseRole(req.Role)
		if err != nil {
			s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(err))
			return
		}
		_ = session.SetRole(role)
	}

	s.sessions.Add(session)
	s.writer.WriteCreated(w, r, "/sessions/"+session.ID().String(), sessionResponse(session))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.writer.Write(w, r, sessionResponse(GetSessionFromContext(r.Context())))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	s.sessions.Remove(session.ID().String())
	if err := session.Close(); err != nil {
		s.logger.Warn("closing session failed", "session_id", session.ID().String(), "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(fmt.Errorf("invalid multipart upload: %w", err)))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.errors.Handle(w, r, apperrors.ErrValidation.WithMessage("At least one file is required in the \"files\" field"))
		return
	}

	files := make([]loader.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(fmt.Errorf("open %s: %w", fh.Filename, err)))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(fmt.Errorf("read %s: %w", fh.Filename, err)))
			return
		}
		files = append(files, loader.File{Name: fh.Filename, Data: data})
	}

	event, err := session.LoadAndIndex(r.Context(), files)
	if err != nil {
		s.errors.Handle(w, r, err)
		return
	}
	s.writer.Write(w, r, &event)
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	var req models.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(fmt.Errorf("invalid request body: %w", err)))
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(err))
		return
	}
	if err := session.SetRole(role); err != nil {
		s.errors.Handle(w, r, err)
		return
	}
	s.writer.Write(w, r, sessionResponse(session))
}

func (s *Server) askQuestion(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	var req models.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.Handle(w, r, apperrors.ErrValidation.WithCause(fmt.Errorf("invalid request body: %w", err)))
		return
	}

	answer, err := session.Ask(r.Context(), req.Question)
	if err != nil {
		s.errors.Handle(w, r, err)
		return
	}
	s.writer.Write(w, r, &answer)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	turns := session.History()
	s.writer.Write(w, r, &models.HistoryResponse{
		SessionID: session.ID().String(),
		Turns:     turns,
		Count:     len(turns),
	})
}

func (s *Server) resetHistory(w http.ResponseWriter, r *http.Request) {
	GetSessionFromContext(r.Context()).ResetConversation()
	w.WriteHeader(http.StatusNoContent)
}

func sessionResponse(s *rag.Session) *models.SessionResponse {
	return &models.SessionResponse{
		ID:        s.ID().String(),
		Role:      s.Role(),
		State:     string(s.State()),
		Segments:  s.Segments(),
		Questions: len(s.Records()),
	}
}
