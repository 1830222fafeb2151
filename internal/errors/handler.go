package errors

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/ory/herodot"
)

// ErrorHandler turns application errors into herodot JSON error responses.
// In detailed mode the underlying cause is exposed as the reason; in secure
// mode only the public message is written.
type ErrorHandler struct {
	writer   *herodot.JSONWriter
	logger   *slog.Logger
	detailed bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(writer *herodot.JSONWriter, logger *slog.Logger, detailed bool) *ErrorHandler {
	if writer == nil {
		writer = herodot.NewJSONWriter(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ErrorHandler{
		writer:   writer,
		logger:   logger,
		detailed: detailed,
	}
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch TypeOf(err) {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeNoIndex, TypeEmptyIndex, TypeBusy:
		return http.StatusConflict
	case TypeLoad:
		return http.StatusUnprocessableEntity
	case TypeEmbedding, TypeGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Handle logs err and writes it to w.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)

	message := "An internal error occurred"
	errType := TypeOf(err)
	var se *StandardError
	if stderrors.As(err, &se) {
		message = se.Message
	}

	resp := &herodot.DefaultError{
		CodeField:   code,
		StatusField: http.StatusText(code),
		ErrorField:  message,
	}
	if h.detailed {
		resp.ReasonField = err.Error()
	}

	h.logError(errType, err, r, code)
	h.writer.WriteError(w, r, resp)
}

// logError logs errors with context
func (h *ErrorHandler) logError(errType string, err error, r *http.Request, code int) {
	if errType == "" {
		errType = "INTERNAL_ERROR"
	}
	level := slog.LevelWarn
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"type", errType,
		"code", code,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_ip", getClientIP(r),
		"error", err.Error(),
	)
}

// getClientIP extracts the real client IP from request headers
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
