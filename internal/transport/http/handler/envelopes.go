package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/civic-alerts/internal/domain"
	"github.com/civic-alerts/internal/pkg/validate"
	"github.com/go-chi/render"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// OTPEnvelope is returned by the verification-code endpoints.
type OTPEnvelope struct {
	OK         bool   `json:"ok"`
	RetryAfter int64  `json:"retry_after,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CountEnvelope carries an unread counter.
type CountEnvelope struct {
	Count int `json:"count"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// decodeValid decodes the JSON body into dst and validates it, writing the
// error response itself when either step fails.
func decodeValid(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// httpError maps domain errors to HTTP responses.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	var rae *domain.RetryAfterError
	if errors.As(err, &rae) {
		status := http.StatusTooManyRequests
		if errors.Is(err, domain.ErrServerBusy) {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Retry-After", strconv.FormatInt(rae.RetryAfterSeconds, 10))
		writeJSON(w, r, status, OTPEnvelope{OK: false, RetryAfter: rae.RetryAfterSeconds, Error: rae.Reason.Error()})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrExpiredCode):
		writeJSON(w, r, http.StatusBadRequest, OTPEnvelope{OK: false, Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	default:
		slog.Error("unhandled error", "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
