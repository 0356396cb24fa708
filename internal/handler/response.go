package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so all error bodies
// share one shape:
//
//	{"error": "not_member", "message": "user abc is not a member of group xyz"}
//
// The "error" field is machine-readable and stable; "message" is for people.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/prediction-league/internal/apperror"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorMapping pairs a domain error kind with its HTTP status and code. The
// first match wins, so specific kinds come before generic ones.
var errorMapping = []struct {
	kind   error
	status int
	code   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},

	{apperror.ErrAlreadyMember, http.StatusConflict, "already_member"},
	{apperror.ErrDuplicatePrediction, http.StatusConflict, "duplicate_prediction"},
	{apperror.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{apperror.ErrNoChange, http.StatusConflict, "no_change"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},

	{apperror.ErrNotMember, http.StatusUnprocessableEntity, "not_member"},
	{apperror.ErrCreatorCannotLeave, http.StatusUnprocessableEntity, "creator_cannot_leave"},
	{apperror.ErrFixtureAlreadyStarted, http.StatusUnprocessableEntity, "fixture_already_started"},
	{apperror.ErrPredictionLocked, http.StatusUnprocessableEntity, "prediction_locked"},
	{apperror.ErrNotCompleted, http.StatusUnprocessableEntity, "not_completed"},

	{apperror.ErrCodeGenerationExhausted, http.StatusServiceUnavailable, "code_generation_exhausted"},
}

// statusFor returns the HTTP status and error code for err.
func statusFor(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.kind) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError translates a service error into an HTTP response. Unknown
// errors become a generic 500; their text may contain SQL or file paths and
// is only logged.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := statusFor(err)
		writeJSON(w, status, ErrorResponse{
			Error:   code,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	logger.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields and bodies
// larger than maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// pathInt64 parses a numeric URL parameter.
func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

// queryInt parses an optional integer query parameter; absent means def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}
