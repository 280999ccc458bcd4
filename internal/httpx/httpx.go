// Package httpx holds the JSON response helpers and request middleware shared
// by every HTTP handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"comanda/internal/apperror"
	"comanda/internal/logger"
	"comanda/internal/models"
)

const RequestIDHeader = "X-Request-ID"

// WriteJSON writes v with the given status code
func WriteJSON(w http.ResponseWriter, log *logger.Logger, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFrom(r.Context()), err, nil)
	}
}

// WriteErrorResponse writes an error response in JSON format
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": logger.RequestIDFrom(r.Context()),
	}

	json.NewEncoder(w).Encode(errorResponse)
}

// WriteError maps err to a status code. Internal errors are logged and their
// cause is hidden from the client.
func WriteError(w http.ResponseWriter, log *logger.Logger, r *http.Request, action string, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal("Internal server error", err)
	}

	if appErr.Kind == apperror.KindInternal {
		log.Error(action, appErr.Message, logger.RequestIDFrom(r.Context()), err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
	WriteErrorResponse(w, r, appErr.Code(), appErr.Message)
}

// DecodeJSON reads the request body into v. Malformed bodies and failed
// validation both become Invalid errors.
func DecodeJSON(r *http.Request, v interface{ Validate() error }) error {
	if err := DecodeBody(r, v); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return AsInvalid(err)
	}
	return nil
}

// DecodeBody reads the request body into v without validating it
func DecodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.Invalid("malformed request body: %v", err)
	}
	return nil
}

// AsInvalid turns a models.ValidationError into an Invalid error.
func AsInvalid(err error) error {
	var verr models.ValidationError
	if errors.As(err, &verr) {
		return apperror.Invalid("%s", verr.Error())
	}
	return err
}

// IntParam reads a positive integer URL parameter
func IntParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperror.Invalid("%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}

// WithLogging assigns a request id and logs the start and end of every request
func WithLogging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = logger.GenerateRequestID()
			}
			w.Header().Set(RequestIDHeader, requestID)
			r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

			log.Debug("request_started",
				fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				requestID,
				map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"remote_addr": r.RemoteAddr,
					"user_agent":  r.Header.Get("User-Agent"),
				})

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			log.Debug("request_completed",
				fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
				requestID,
				map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status_code": rw.statusCode,
					"duration_ms": duration.Milliseconds(),
				})
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
