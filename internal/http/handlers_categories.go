package http

import (
	"encoding/json"
	"net/http"

	"tempo/internal/core"
)

type categoryPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Projects    []string `json:"projects"`
}

func (s *Server) categoryToPayload(r *http.Request, c core.Category) categoryPayload {
	p := categoryPayload{
		Name:        c.Name,
		Description: c.Description,
		Projects:    []string{},
	}
	projects, err := s.catalog.ListCategoryProjects(r.Context(), c.Name)
	if err == nil {
		for _, proj := range projects {
			p.Projects = append(p.Projects, proj.Name)
		}
	}
	return p
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		out = append(out, s.categoryToPayload(r, c))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := core.Category{Name: in.Name, Description: in.Description}
	if err := category.Validate(); err != nil {
		respondServiceError(w, r, err)
		return
	}

	created, err := s.catalog.CreateCategory(r.Context(), category)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.categoryToPayload(r, created))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := s.catalog.FindCategory(r.Context(), r.PathValue("name"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.categoryToPayload(r, category))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := core.Category{Name: in.Name, Description: in.Description}
	if err := category.Validate(); err != nil {
		respondServiceError(w, r, err)
		return
	}

	updated, err := s.catalog.UpdateCategory(r.Context(), r.PathValue("name"), category)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.categoryToPayload(r, updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteCategory(r.Context(), r.PathValue("name")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
