package visionapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/physical-mcp/internal/camera"
)

const pushFrameMaxBytes = 10 << 20 // 10 MiB, generous headroom over a single compressed JPEG

type pushRegisterRequest struct {
	ClaimCode string `json:"claim_code"`
}

type pushRegisterResponse struct {
	CameraID    string `json:"camera_id"`
	CameraToken string `json:"camera_token"`
	PushURL     string `json:"push_url"`
}

// handlePushRegister exchanges a relay board's claim code for a
// signed camera token and the push URL it should POST frames to.
func (s *Server) handlePushRegister(w http.ResponseWriter, r *http.Request) {
	var req pushRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.ClaimCode == "" {
		badRequest(w, "missing_code", "claim_code is required")
		return
	}

	cameraID, cameraName, ok := s.cfg.Registry.RedeemClaim(req.ClaimCode)
	if !ok {
		notFound(w, "invalid_code", "claim code not found or expired")
		return
	}

	if _, err := s.cfg.Registry.AddCloudCamera(cameraID, cameraName); err != nil && err != ErrAlreadyRegistered {
		writeError(w, http.StatusInternalServerError, "register_failed", err.Error())
		return
	}

	token, err := s.cfg.PushTokens.Issue(cameraID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_issue_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, pushRegisterResponse{
		CameraID:    cameraID,
		CameraToken: token,
		PushURL:     "/push/frame/" + cameraID,
	})
}

// handlePushFrame ingests a raw JPEG body pushed by a paired relay
// board or cloud camera.
func (s *Server) handlePushFrame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")

	entry, ok := s.cfg.Registry.Get(id)
	if !ok {
		notFound(w, "camera_not_found", "camera '"+id+"' not found")
		return
	}

	cloudCam, ok := entry.Source.(*camera.PushedCloudCamera)
	if !ok {
		badRequest(w, "not_cloud_camera", "camera '"+id+"' does not accept pushed frames")
		return
	}

	token := r.Header.Get("X-Camera-Token")
	if err := s.cfg.PushTokens.Verify(token, id); err != nil {
		forbidden(w, "forbidden", "invalid or missing camera token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, pushFrameMaxBytes))
	if err != nil {
		badRequest(w, "invalid_frame", "could not read request body")
		return
	}
	if len(body) == 0 {
		badRequest(w, "empty_body", "request body is empty")
		return
	}

	if err := cloudCam.Push(body); err != nil {
		badRequest(w, "invalid_frame", err.Error())
		return
	}

	f, _ := cloudCam.GrabFrame(r.Context())
	entry.Buffer.Push(f)
	s.cfg.Health.RecordFrame(entry.ID, entry.Name)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"camera_id":  entry.ID,
		"sequence":   f.Sequence,
		"resolution": []int{f.Resolution.Width, f.Resolution.Height},
	})
}
