package visionapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type cameraDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	entries := s.cfg.Registry.List()
	out := make([]cameraDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, cameraDTO{
			ID:     e.ID,
			Name:   e.Name,
			Type:   string(e.Kind),
			Status: string(s.cfg.Health.Get(e.ID).Status),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type addCameraRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleAddCamera adds a cloud camera dynamically. Only type=cloud is
// supported here — USB/RTSP/HTTP-MJPEG cameras are configured through
// config.yaml, not this API.
func (s *Server) handleAddCamera(w http.ResponseWriter, r *http.Request) {
	var req addCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.Type != "cloud" {
		badRequest(w, "unsupported_type", "only type=cloud cameras can be added via this endpoint")
		return
	}
	if req.ID == "" {
		badRequest(w, "missing_id", "id is required")
		return
	}

	entry, err := s.cfg.Registry.AddCloudCamera(req.ID, req.Name)
	if err != nil {
		badRequest(w, "add_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, cameraDTO{
		ID:     entry.ID,
		Name:   entry.Name,
		Type:   string(entry.Kind),
		Status: string(s.cfg.Health.Get(entry.ID).Status),
	})
}

type pendingCameraDTO struct {
	CameraID        string `json:"camera_id"`
	Name            string `json:"name"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	RegisteredAt    string `json:"registered_at"`
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending := s.cfg.Registry.ListPending()
	out := make([]pendingCameraDTO, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingCameraDTO{
			CameraID:        p.CameraID,
			Name:            p.Name,
			FirmwareVersion: p.FirmwareVersion,
			RegisteredAt:    p.RegisteredAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAcceptCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	entry, err := s.cfg.Registry.AcceptPending(id)
	if err != nil {
		notFound(w, "camera_not_found", "no pending camera '"+id+"'")
		return
	}
	writeJSON(w, http.StatusOK, cameraDTO{
		ID:     entry.ID,
		Name:   entry.Name,
		Type:   string(entry.Kind),
		Status: string(s.cfg.Health.Get(entry.ID).Status),
	})
}

func (s *Server) handleRejectCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	if !s.cfg.Registry.RejectPending(id) {
		notFound(w, "camera_not_found", "no pending camera '"+id+"'")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rejected": id})
}
