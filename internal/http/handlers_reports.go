package http

import (
	"fmt"
	"net/http"
	"strconv"

	"tempo/internal/core"
)

// handleWeekReport serves the weekly aggregation, optionally narrowed
// to a single category.
func (s *Server) handleWeekReport(w http.ResponseWriter, r *http.Request) {
	year := r.PathValue("year")
	weekNum, err := strconv.Atoi(r.PathValue("week"))
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, core.ErrInvalidWeek.Error())
		return
	}

	week, err := core.ParseISOWeek(fmt.Sprintf("%s-W%02d", year, weekNum))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	report, err := s.reports.EntriesPerWeek(r.Context(), week, r.PathValue("category"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
