package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tempo/internal/core"
)

type recordRequest struct {
	Project   string     `json:"project"`
	StartTime time.Time  `json:"start_time"`
	StopTime  *time.Time `json:"stop_time,omitempty"`
}

type stopRequest struct {
	Project  string     `json:"project"`
	StopTime *time.Time `json:"stop_time,omitempty"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	now := s.clock.Now()
	out := make([]recordPayload, 0, len(records))
	for _, rec := range records {
		out = append(out, recordToPayload(rec, now))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var in recordRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.StartTime.IsZero() {
		in.StartTime = s.clock.Now()
	}

	created, err := s.records.Create(r.Context(), in.Project, in.StartTime, in.StopTime)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, recordToPayload(created, s.clock.Now()))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recordToPayload(rec, s.clock.Now()))
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var in recordRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.records.Update(r.Context(), id, in.Project, in.StartTime, in.StopTime)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recordToPayload(updated, s.clock.Now()))
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	if err := s.records.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetActiveRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Active(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recordToPayload(rec, s.clock.Now()))
}

// handleStopActiveRecord closes the running record. A stop with no
// running record is a 403, same as a project mismatch: the caller is
// asking to stop work it does not hold.
func (s *Server) handleStopActiveRecord(w http.ResponseWriter, r *http.Request) {
	var in stopRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stop := s.clock.Now()
	if in.StopTime != nil {
		stop = *in.StopTime
	}

	rec, err := s.records.StopActive(r.Context(), in.Project, stop)
	if errors.Is(err, core.ErrNotFound) {
		respondError(w, http.StatusForbidden, "no active record")
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recordToPayload(rec, s.clock.Now()))
}

func recordID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
