package visionapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/physical-mcp/internal/camhealth"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cameras := s.cfg.Registry.List()
	ids := make([]string, 0, len(cameras))
	for _, c := range cameras {
		ids = append(ids, c.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "physical-mcp",
		"description": "24/7 camera vision API",
		"cameras":     ids,
		"endpoints": map[string]string{
			"GET /frame":               "Latest camera frame (JPEG)",
			"GET /frame/{camera_id}":   "Frame from specific camera",
			"GET /scene":               "Current scene summaries (JSON)",
			"GET /scene/{camera_id}":   "Scene for specific camera",
			"GET /changes":             "Recent scene changes",
			"GET /health":              "Camera health (all cameras)",
			"GET /cameras":             "List registered cameras",
			"GET /rules":               "List watch rules",
			"GET /alerts":              "Recent alert/replay events",
			"GET /events":              "SSE event stream",
			"GET /stream/{camera_id}":  "MJPEG live stream",
		},
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	if s.cfg.Registry.Len() == 0 {
		writeError(w, http.StatusServiceUnavailable, "no_cameras", "no cameras active")
		return
	}

	var entry *CameraEntry
	if id == "" {
		entry, _ = s.cfg.Registry.First()
	} else {
		e, ok := s.cfg.Registry.Get(id)
		if !ok {
			notFound(w, "camera_not_found", "camera '"+id+"' not found")
			return
		}
		entry = e
	}

	f, ok := entry.Buffer.Latest()
	if !ok {
		notReady(w, "no_frame", "no frame available yet")
		return
	}

	quality := 80
	if q := r.URL.Query().Get("quality"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			quality = n
		}
	}

	jpegBytes, err := f.EncodeJPEG(quality)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(jpegBytes)
}

func sceneDict(entry *CameraEntry) map[string]any {
	snap := entry.Scene.Current()
	return map[string]any{
		"summary":      snap.Summary,
		"objects":      snap.Objects,
		"people_count": snap.PeopleCount,
		"updated_at":   snap.UpdatedAt,
		"name":         entry.Name,
	}
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	cameras := s.cfg.Registry.List()
	result := make(map[string]any, len(cameras))
	for _, c := range cameras {
		result[c.ID] = sceneDict(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cameras":   result,
		"timestamp": time.Now(),
	})
}

func (s *Server) handleSceneCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	entry, ok := s.cfg.Registry.Get(id)
	if !ok {
		notFound(w, "camera_not_found", "camera '"+id+"' not found")
		return
	}
	writeJSON(w, http.StatusOK, sceneDict(entry))
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	minutes := 5
	if m := r.URL.Query().Get("minutes"); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			minutes = n
		}
	}
	filterID := r.URL.Query().Get("camera_id")

	result := map[string]any{}
	for _, c := range s.cfg.Registry.List() {
		if filterID != "" && c.ID != filterID {
			continue
		}
		result[c.ID] = c.Scene.GetChangeLog(minutes)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changes": result,
		"minutes": minutes,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	if id != "" {
		writeJSON(w, http.StatusOK, map[string]any{"health": s.cfg.Health.Get(id)})
		return
	}

	all := map[string]camhealth.Health{}
	for _, c := range s.cfg.Registry.List() {
		all[c.ID] = s.cfg.Health.Get(c.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"health": all})
}
