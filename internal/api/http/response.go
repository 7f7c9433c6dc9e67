package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/service"
)

// envelope is the body shape every JSON endpoint returns.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Success: false, Message: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRentalNotFound), errors.Is(err, service.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrGameUnavailable):
		return http.StatusConflict
	case errors.Is(err, service.ErrCancelWindowClosed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
		msg = "internal error"
	}
	writeMessage(w, code, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", service.ErrInvalidInput, err)
	}
	return nil
}
