package api

import (
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Projects int    `json:"projects"`
	Issues   int    `json:"issues"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	resp := healthResponse{Status: "ok", Projects: len(projects)}
	for _, p := range projects {
		resp.Issues += p.Issues
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}
