package web

// errors.go renders classified errors as JSON responses.
//
// The client sees only the message carried by the *core.Error. The log line
// for the same request carries the support code from core.MapError, the
// request id and the underlying cause.

import (
	"net/http"

	"github.com/JonMunkholm/sheetgate/internal/core"
	"github.com/JonMunkholm/sheetgate/internal/logging"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindConflict:
		return http.StatusConflict
	case core.KindUnauthenticated, core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindTimeout:
		return http.StatusRequestTimeout
	case core.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes {"message": ...} with the mapped status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := s.logError(r, err)
	writeMessage(w, status, msg.Message)
}

// respondUploadError is respondError for the upload endpoint, whose
// responses always carry a success flag.
func (s *Server) respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := s.logError(r, err)
	writeJSON(w, status, uploadErrorResponse{Success: false, Message: msg.Message})
}

func (s *Server) logError(r *http.Request, err error) (int, core.UserMessage) {
	msg := core.MapError(err)
	status := statusFor(core.KindOf(err))

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request error")
	} else {
		logger.Info("request rejected")
	}
	return status, msg
}
