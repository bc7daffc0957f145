package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tempo/internal/core"
	"tempo/internal/track"
)

// errorBody is the uniform error envelope for every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondServiceError maps domain errors onto HTTP statuses: missing
// entities 404, the open-record conflict 409, stop-project mismatch 403,
// validation failures 422, anything else 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrOpenRecordExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, track.ErrProjectMismatch):
		respondError(w, http.StatusForbidden, err.Error())
	case isValidationError(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrEmptyName,
		core.ErrNameTooLong,
		core.ErrInvalidName,
		core.ErrDescriptionTooLong,
		core.ErrEmptyProject,
		core.ErrNegativeStart,
		core.ErrStopBeforeStart,
		core.ErrInvalidWeek,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// recordPayload is the wire shape of a record: instants as RFC3339 at
// the boundary, elapsed derived at response time.
type recordPayload struct {
	ID        int64      `json:"id"`
	Project   string     `json:"project"`
	StartTime time.Time  `json:"start_time"`
	StopTime  *time.Time `json:"stop_time,omitempty"`
	Elapsed   int64      `json:"elapsed"`
}

func recordToPayload(rec core.Record, now time.Time) recordPayload {
	p := recordPayload{
		ID:        rec.ID,
		Project:   rec.Project,
		StartTime: rec.StartTime(),
		Elapsed:   rec.Elapsed(now),
	}
	if !rec.Open() {
		stop := rec.StopTime()
		p.StopTime = &stop
	}
	return p
}
