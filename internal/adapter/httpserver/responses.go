// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the screening gate over REST: questionnaire lookup, session
// start/evaluate/submit, one-click apply and the admin sweep. Handlers only
// translate HTTP to use case calls; every decision lives in internal/usecase.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
// Unknown errors become a 500 without leaking the underlying message.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	msg := err.Error()

	var (
		se *domain.StateError
		ve *domain.ValidationError
		be *http.MaxBytesError
	)
	switch {
	case errors.As(err, &se):
		code = http.StatusConflict
		codeStr = "INVALID_STATE"
		if details == nil {
			details = map[string]string{"status": string(se.Status), "hint": se.Hint()}
		}
	case errors.As(err, &ve):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
		if details == nil {
			details = map[string]any{"fields": ve.Fields}
		}
	case errors.As(err, &be):
		code = http.StatusRequestEntityTooLarge
		codeStr = "PAYLOAD_TOO_LARGE"
		msg = "request body too large"
		if details == nil {
			details = map[string]int64{"max_bytes": be.Limit}
		}
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrJobExpired):
		code = http.StatusGone
		codeStr = "JOB_EXPIRED"
	case errors.Is(err, domain.ErrDuplicateApplication):
		code = http.StatusConflict
		codeStr = "DUPLICATE_APPLICATION"
	case errors.Is(err, domain.ErrInvalidState):
		code = http.StatusConflict
		codeStr = "INVALID_STATE"
	case errors.Is(err, domain.ErrRateLimited):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
	}
	if code == http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		msg = "internal error"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
