package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler error goes through respondError, which logs the technical
// error with the request ID and returns the mapped user message as JSON,
// an HTMX alert partial or plain text depending on the client.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/automationdb/internal/backend"
	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/fileio"
	"github.com/JonMunkholm/automationdb/internal/logging"
	"github.com/JonMunkholm/automationdb/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	// Detail carries the backend's own error body, verbatim.
	Detail string `json:"detail,omitempty"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionExecuted):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnacknowledgedErrors), errors.Is(err, core.ErrConfirmationRequired):
		return http.StatusPreconditionFailed
	case errors.Is(err, core.ErrInvalidField), errors.Is(err, core.ErrInvalidSort),
		errors.Is(err, core.ErrInvalidRecord), errors.Is(err, core.ErrInvalidMode),
		errors.Is(err, core.ErrDuplicateKeys),
		errors.Is(err, fileio.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing response. A zero status
// is derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	var detail string
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		detail = apiErr.Body
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, status)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, detail, status)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", status)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, detail string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Detail:  detail,
	})
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// htmx ignores non-2xx bodies unless told where to swap them.
	w.Header().Set("HX-Reswap", "innerHTML")
	w.WriteHeader(status)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
