// Package mcpserver exposes the daemon's perception state to an AI
// chat client over MCP: capture/scene/alert/rule/memory tools backed
// by the same Registry, RulesEngine and shared components the
// VisionAPI HTTP surface reads from.
package mcpserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/cache"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/changedetect"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/memory"
	"github.com/technosupport/physical-mcp/internal/notify"
	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/perception"
	"github.com/technosupport/physical-mcp/internal/replay"
	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/sampler"
	"github.com/technosupport/physical-mcp/internal/stats"
	"github.com/technosupport/physical-mcp/internal/vision"
	"github.com/technosupport/physical-mcp/internal/visionapi"
)

// Config wires the MCP tool server to the daemon's shared components.
// It intentionally overlaps with visionapi.Config — both surfaces read
// and mutate the same running state.
type Config struct {
	Registry   *visionapi.Registry
	Rules      *rules.Engine
	RulesStore *rules.Store
	Alerts     *alertqueue.Queue
	Replay     *replay.Log
	Events     *eventbus.Bus
	Notifier   *notify.Dispatcher
	Memory     *memory.Store
	Stats      *stats.Tracker
	Analyzer   *vision.Analyzer
	Health     *camhealth.Tracker

	// SceneCache publishes every scene update from loops this server
	// starts itself; nil skips publication entirely.
	SceneCache cache.SceneCache

	// DefaultNotification auto-fills add_watch_rule's notification
	// target when the caller leaves notification_type at "local" and a
	// non-local channel is configured globally.
	DefaultNotification rules.NotificationTarget

	// CameraCaptureFPS/CameraImageQuality size every perception.Loop
	// this server starts on demand.
	CameraCaptureFPS   int
	CameraImageQuality int

	// HardwareEnumerator reports connected-but-unconfigured camera
	// hardware for list_cameras' "available_hardware" field. Optional;
	// nil means no hardware scan is performed (USB/V4L2 enumeration
	// lives in the not-yet-built internal/discover package).
	HardwareEnumerator func() []string
}

// Server holds the running MCP tool state: the built mcp-go server
// plus the perception loops it lazily starts once a watch rule goes
// active.
type Server struct {
	cfg Config
	mcp *server.MCPServer
	log *obslog.Logger

	mu    sync.Mutex
	loops map[string]context.CancelFunc

	logs *pendingLogBuffer
}

// New builds the MCP tool server and registers every tool.
func New(cfg Config) *Server {
	if cfg.CameraCaptureFPS <= 0 {
		cfg.CameraCaptureFPS = 2
	}
	if cfg.CameraImageQuality <= 0 {
		cfg.CameraImageQuality = 75
	}

	s := &Server{
		cfg:   cfg,
		log:   obslog.New("mcpserver"),
		loops: map[string]context.CancelFunc{},
		logs:  newPendingLogBuffer(100),
	}

	s.mcp = server.NewMCPServer("physical-mcp", "0.1.0", server.WithToolCapabilities(true))
	s.registerCameraTools()
	s.registerSceneTools()
	s.registerAlertTools()
	s.registerRuleTools()
	s.registerTemplateTools()
	s.registerSystemTools()
	s.registerMemoryTools()

	return s
}

// ServeStdio runs the server over stdio — the transport a locally
// spawned desktop chat client uses. Blocks until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// ServeStreamableHTTP runs the server over streamable-HTTP at addr —
// the transport a remote or browser-based MCP client uses. Blocks
// until the listener is closed.
func (s *Server) ServeStreamableHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcp)
	return httpServer.Start(addr)
}

// camLabel matches perception's "Name (id)" / "id" label format.
func camLabel(name, id string) string {
	if name != "" {
		return fmt.Sprintf("%s (%s)", name, id)
	}
	if id != "" {
		return id
	}
	return "unknown"
}

// getCamera resolves camera_id, or the registry's first camera when
// cameraID is empty. Returns nil when no camera is registered at all.
func (s *Server) getCamera(cameraID string) *visionapi.CameraEntry {
	if cameraID != "" {
		if e, ok := s.cfg.Registry.Get(cameraID); ok {
			return e
		}
		return nil
	}
	e, ok := s.cfg.Registry.First()
	if !ok {
		return nil
	}
	return e
}

// ensurePerceptionLoops starts a Loop for every registered camera that
// doesn't already have one running. Called whenever a tool needs watch
// rules to actually be evaluated (add_watch_rule, capture_frame,
// check_camera_alerts) — mirrors the reference server's lazy
// "_ensure_perception_loops" used right after opening cameras.
//
// Unlike the reference implementation, cameras themselves are opened
// eagerly by the daemon's startup wiring rather than on first tool
// call: a long-running Go process serving both the VisionAPI and this
// MCP surface at once doesn't have the "MCP client reconnect floods a
// freshly spawned process with camera opens" problem that motivated
// the reference's lazy-open trick, so only loop supervision is lazy.
// Cameras configured at startup already have a loop from
// cmd/physical-mcpd's own wiring; this only covers cameras that show
// up afterward (pushed/claimed cloud cameras, or a rule's first
// target).
func (s *Server) ensurePerceptionLoops(ctx context.Context) {
	if !s.cfg.Rules.HasActiveRules() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.cfg.Registry.List() {
		if _, running := s.loops[entry.ID]; running {
			continue
		}

		loopCtx, cancel := context.WithCancel(ctx)
		s.loops[entry.ID] = cancel

		samp := sampler.New(changedetect.New(changedetect.DefaultThresholds()), sampler.DefaultConfig())
		deps := perception.Deps{
			CameraID:     entry.ID,
			CameraName:   entry.Name,
			Camera:       entry.Source,
			Buffer:       entry.Buffer,
			Sampler:      samp,
			Analyzer:     s.cfg.Analyzer,
			Scene:        entry.Scene,
			Rules:        s.cfg.Rules,
			Stats:        s.cfg.Stats,
			Alerts:       s.cfg.Alerts,
			Notifier:     s.cfg.Notifier,
			Memory:       s.cfg.Memory,
			Events:       s.cfg.Events,
			Replay:       s.cfg.Replay,
			Health:       s.cfg.Health,
			SceneCache:   s.cfg.SceneCache,
			Evaluator:    nil, // see DESIGN.md: client-side evaluation falls back to the PendingAlert/check_camera_alerts path rather than MCP sampling
			CaptureFPS:   s.cfg.CameraCaptureFPS,
			ImageQuality: s.cfg.CameraImageQuality,
		}
		loop := perception.New(deps)
		go loop.Run(loopCtx)
		s.log.Printf("perception loop started for %s", camLabel(entry.Name, entry.ID))
	}
}
