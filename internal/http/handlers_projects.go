package http

import (
	"encoding/json"
	"net/http"

	"tempo/internal/core"
)

type projectPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories"`
}

func (s *Server) projectToPayload(r *http.Request, p core.Project) projectPayload {
	out := projectPayload{
		Name:        p.Name,
		Description: p.Description,
		Categories:  []string{},
	}
	categories, err := s.catalog.ListProjectCategories(r.Context(), p.Name)
	if err == nil {
		for _, c := range categories {
			out.Categories = append(out.Categories, c.Name)
		}
	}
	return out
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.catalog.ListProjects(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]projectPayload, 0, len(projects))
	for _, p := range projects {
		out = append(out, s.projectToPayload(r, p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in projectPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project := core.Project{Name: in.Name, Description: in.Description}
	if err := project.Validate(); err != nil {
		respondServiceError(w, r, err)
		return
	}

	created, err := s.catalog.CreateProject(r.Context(), project, in.Categories)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.projectToPayload(r, created))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.catalog.FindProject(r.Context(), r.PathValue("name"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.projectToPayload(r, project))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in projectPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project := core.Project{Name: in.Name, Description: in.Description}
	if err := project.Validate(); err != nil {
		respondServiceError(w, r, err)
		return
	}

	updated, err := s.catalog.UpdateProject(r.Context(), r.PathValue("name"), project, in.Categories)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.projectToPayload(r, updated))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteProject(r.Context(), r.PathValue("name")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
