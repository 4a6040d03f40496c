package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/physical-mcp/internal/obslog"
)

var httpLog = obslog.New("visionapi")

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestLogger assigns a request id to every inbound HTTP frame-grab
// or status call, surfaces it via X-Request-ID for client-side
// correlation, and logs start/completion through obslog's tagging
// convention like every other component in the daemon.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		start := time.Now()
		reqLog := httpLog.With("req=" + reqID)

		w.Header().Set("X-Request-ID", reqID)
		reqLog.Printf("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		reqLog.Printf("completed %d in %v", rw.status, time.Since(start))
	})
}
