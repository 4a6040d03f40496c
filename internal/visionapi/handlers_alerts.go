package visionapi

import (
	"net/http"
	"strconv"
)

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": s.cfg.Replay.Recent(limit),
	})
}
