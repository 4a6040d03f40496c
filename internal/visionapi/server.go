package visionapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/middleware"
	"github.com/technosupport/physical-mcp/internal/notify"
	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/pushtoken"
	"github.com/technosupport/physical-mcp/internal/replay"
	"github.com/technosupport/physical-mcp/internal/rules"
)

// Config wires the VisionAPI to the daemon's shared components. All
// fields except AuthToken are required.
type Config struct {
	Addr string // host:port, e.g. ":8090"

	Registry   *Registry
	Rules      *rules.Engine
	RulesStore *rules.Store
	Health     *camhealth.Tracker
	Alerts     *alertqueue.Queue
	Replay     *replay.Log
	Events     *eventbus.Bus
	Notifier   *notify.Dispatcher
	PushTokens *pushtoken.Manager

	// AuthToken, if non-empty, is required (as a bearer token or an
	// ?auth_token= query param) on every request.
	AuthToken string

	// DefaultNotification auto-fills a rule's notification target when
	// a caller posts type "local" and an OpenClaw channel is configured.
	DefaultNotification rules.NotificationTarget

	// MetricsHandler, if set, is mounted at /metrics for Prometheus
	// scraping. Optional — nil leaves /metrics unregistered.
	MetricsHandler http.Handler
}

// Server is the VisionAPI's HTTP surface: chi router plus the
// long-lived http.Server wrapping it.
type Server struct {
	cfg    Config
	router chi.Router
	http   *http.Server
	log    *obslog.Logger
}

// NewServer builds a Server and its route table; call Start to listen.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		log: obslog.New("visionapi"),
	}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router exposes the chi router directly, e.g. for tests via httptest.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS)
	r.Use(s.authMiddleware)

	r.Get("/", s.handleIndex)

	r.Get("/frame", s.handleFrame)
	r.Get("/frame/{camera_id}", s.handleFrame)

	r.Get("/scene", s.handleScene)
	r.Get("/scene/{camera_id}", s.handleSceneCamera)

	r.Get("/changes", s.handleChanges)

	r.Get("/health", s.handleHealth)
	r.Get("/health/{camera_id}", s.handleHealth)

	r.Get("/cameras", s.handleListCameras)
	r.Post("/cameras", s.handleAddCamera)
	r.Get("/cameras/pending", s.handleListPending)
	r.Post("/cameras/{camera_id}/accept", s.handleAcceptCamera)
	r.Post("/cameras/{camera_id}/reject", s.handleRejectCamera)

	r.Get("/rules", s.handleListRules)
	r.Post("/rules", s.handleCreateRule)
	r.Delete("/rules/{id}", s.handleDeleteRule)
	r.Put("/rules/{id}/toggle", s.handleToggleRule)

	r.Get("/alerts", s.handleAlerts)

	r.Get("/events", s.handleEventsSSE)
	r.Get("/ws/events", s.handleEventsWS)

	r.Get("/stream/{camera_id}", s.handleStream)

	r.Post("/push/register", s.handlePushRegister)
	r.Post("/push/frame/{camera_id}", s.handlePushFrame)

	if s.cfg.MetricsHandler != nil {
		r.Get("/metrics", s.cfg.MetricsHandler.ServeHTTP)
	}

	return r
}

// authMiddleware enforces the optional bearer/query auth_token gate.
// OPTIONS preflight requests are always allowed through so CORS works
// without a token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("auth_token")
		if token == "" {
			if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
				token = auth[7:]
			}
		}
		if token != s.cfg.AuthToken {
			unauthorized(w, "unauthorized", "missing or invalid auth_token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Printf("listening on %s", s.cfg.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
