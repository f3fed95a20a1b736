package web

// errors.go turns service errors into responses.
//
// The technical error is logged with the request id; the client gets the
// core.MapError message as a JSON body for API clients or as an HTML
// page for the browser UI. The status follows the error kind:
//
//	ValidationError    -> 422
//	ErrAccessDenied    -> 403
//	ErrNotFound        -> 404
//	ErrConflict        -> 409
//	ErrTooManyUploads  -> 503
//	ConfigurationError -> 500
//	anything else      -> 500

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/logging"
	"github.com/JonMunkholm/fileentity/internal/web/templates"
	"github.com/JonMunkholm/fileentity/internal/wizard"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}

	if wantsJSON(r) {
		resp := ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		}
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			resp.Message = verr.Message
			resp.Field = verr.Field
		}
		writeJSON(w, status, resp)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
}

// formErrors extracts a field-keyed message map from a ValidationError.
// Other errors yield nil.
func formErrors(err error) map[string]string {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	field := verr.Field
	if field == "" {
		field = "form"
	}
	return map[string]string{field: verr.Message}
}

// wantsJSON reports whether the client asked for JSON or hit the API.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
