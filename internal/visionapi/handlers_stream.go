package visionapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	mjpegBoundary  = "frame"
	mjpegQuality   = 80
	mjpegFrameWait = 2 * time.Second
)

// handleStream serves an MJPEG multipart stream of camera_id's frames.
// Each connected client runs its own read loop against the camera's
// FrameBuffer, so any number of concurrent viewers (the spec requires
// at least 3) are independently served without a shared fan-out hub.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	entry, ok := s.cfg.Registry.Get(id)
	if !ok {
		notFound(w, "camera_not_found", "camera '"+id+"' not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support flushing")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f, ok := entry.Buffer.WaitForFrame(mjpegFrameWait)
		if !ok {
			continue
		}

		jpegBytes, err := f.EncodeJPEG(mjpegQuality)
		if err != nil {
			continue
		}

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(jpegBytes)); err != nil {
			return
		}
		if _, err := w.Write(jpegBytes); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
