// Package handler turns HTTP requests into service calls and service
// results into JSON responses.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query string, JSON body)
//  2. Call one service method
//  3. Write the response, mapping domain errors to status codes
//
// Business rules live in the service package, never here.
package handler

// ERROR FORMAT:
// Every error response has the same shape, so clients parse one thing:
//
//	{"detail": "Tweet not found"}
//
// Domain errors carry a client-safe message. Anything else is logged and
// answered with a generic 500; driver errors can contain SQL and must not
// leak.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/imitation/backend/internal/apperror"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is the body of simple acknowledgements such as logout.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sets the header, then the status, then encodes the body. Headers
// written after WriteHeader are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// WriteDetail writes a bare {"detail": ...} body. The router uses it for
// its own 404 and 405 answers.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeError maps a domain error to its status code. errors.Is walks the
// wrap chain, so a service's fmt.Errorf("...: %w", appErr) still matches.
// Errors that become a 500 are logged to logger with the request ID.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		}
		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Detail: appErr.Message})
			return
		}
	}

	logger.Error("request failed",
		slog.String("requestID", chimiddleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error"})
}

// decodeJSON reads the request body into dst. A malformed or oversized body
// is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// pathID parses a numeric path parameter. A non-numeric ID cannot name a
// row, so it is reported as the resource not being found.
func pathID(r *http.Request, param, resource string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		return 0, apperror.NotFound(resource)
	}
	return id, nil
}
