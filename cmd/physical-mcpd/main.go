// Command physical-mcpd is the ambient visual perception daemon: it
// watches configured cameras, evaluates watch rules against a vision
// provider, and exposes REST/SSE/MJPEG and MCP surfaces over HTTP.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/auditstore"
	"github.com/technosupport/physical-mcp/internal/cache"
	"github.com/technosupport/physical-mcp/internal/camera"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/changedetect"
	"github.com/technosupport/physical-mcp/internal/config"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/framebuffer"
	"github.com/technosupport/physical-mcp/internal/friendlyerr"
	"github.com/technosupport/physical-mcp/internal/mcpserver"
	"github.com/technosupport/physical-mcp/internal/mdns"
	"github.com/technosupport/physical-mcp/internal/memory"
	"github.com/technosupport/physical-mcp/internal/metrics"
	"github.com/technosupport/physical-mcp/internal/notify"
	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/perception"
	"github.com/technosupport/physical-mcp/internal/platform/paths"
	"github.com/technosupport/physical-mcp/internal/pushtoken"
	"github.com/technosupport/physical-mcp/internal/replay"
	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/sampler"
	"github.com/technosupport/physical-mcp/internal/scene"
	"github.com/technosupport/physical-mcp/internal/secrets"
	"github.com/technosupport/physical-mcp/internal/stats"
	"github.com/technosupport/physical-mcp/internal/vision"
	"github.com/technosupport/physical-mcp/internal/visionapi"
)

// Exit codes match spec: 1 generic, 2 config error, 3 camera failure.
const (
	exitOK            = 0
	exitGeneric       = 1
	exitConfigError   = 2
	exitCameraFailure = 3
)

var log = obslog.New("main")

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		os.Exit(runDaemon(""))
	}

	configPath := flagValue(args, "--config")

	switch args[0] {
	case "setup":
		os.Exit(runSetup(configPath))
	case "install":
		os.Exit(runInstall())
	case "uninstall":
		os.Exit(runUninstall())
	case "tunnel":
		os.Exit(runTunnel())
	case "status":
		os.Exit(runStatus(configPath))
	case "cameras":
		os.Exit(runCameras(configPath))
	case "discover":
		os.Exit(runDiscoverCmd())
	case "doctor":
		os.Exit(runDoctor(configPath))
	case "rules":
		os.Exit(runRules(configPath))
	case "migrate":
		os.Exit(runMigrate(configPath))
	case "help", "-h", "--help":
		printUsage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		printUsage()
		os.Exit(exitGeneric)
	}
}

func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func printUsage() {
	fmt.Println(`physical-mcpd [--config PATH]
  (no subcommand)  run the daemon
  setup            interactive configuration wizard
  install          register autostart (systemd/launchd)
  uninstall        remove autostart registration
  tunnel           expose the VisionAPI publicly (cloudflared, ngrok fallback)
  status           print daemon/camera/provider health
  cameras          list configured cameras
  discover         scan the LAN for ONVIF/RTSP cameras
  doctor           run diagnostics and print friendly-error guidance
  rules            list/validate configured watch rules
  migrate          apply audit.postgres_dsn's schema migrations`)
}

// daemon holds every long-lived component main wires together, so
// shutdown can address each by name instead of threading a dozen
// locals through closures.
type daemon struct {
	cfg config.Config

	registry    *visionapi.Registry
	rulesStore  *rules.Store
	rulesEng    *rules.Engine
	health      *camhealth.Tracker
	alerts      *alertqueue.Queue
	replayLog   *replay.Log
	events      *eventbus.Bus
	notifier    *notify.Dispatcher
	memoryStore *memory.Store
	statsTrk    *stats.Tracker
	analyzer    *vision.Analyzer
	pushTokens  *pushtoken.Manager
	metricsCol  *metrics.Collector
	sceneCache  cache.SceneCache
	auditDB     *sql.DB

	visionSrv *visionapi.Server
	mcpSrv    *mcpserver.Server
	mdnsAd    *mdns.Advertisement

	loopCancels []context.CancelFunc
	loopWG      sync.WaitGroup
}

// runDaemon wires every component from cfg and blocks until SIGINT/
// SIGTERM, then shuts down in the order the spec requires: perception
// loops, capture threads, HTTP server, mDNS, camera closers — each
// given its own bounded time so one slow close can't hang the rest.
func runDaemon(configPathOverride string) int {
	if err := paths.EnsureDirs(); err != nil {
		log.Printf("failed to prepare data directory: %v", err)
		return exitGeneric
	}

	configPath := paths.ResolveConfigPath(configPathOverride)
	cfg, err := config.Load(configPath)
	if err != nil {
		fe := friendlyerr.Config(err)
		fmt.Fprintln(os.Stderr, friendlyerr.Format(fe))
		return exitConfigError
	}

	d, err := buildDaemon(cfg)
	if err != nil {
		fe := friendlyerr.Camera(err)
		fmt.Fprintln(os.Stderr, friendlyerr.Format(fe))
		return exitCameraFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.Watch(ctx, paths.ResolveRulesPath(cfg.RulesFile), func() {
		d.rulesEng.LoadRules(d.rulesStore.Load())
		log.Printf("rules reloaded")
	})

	httpErrCh := make(chan error, 1)
	go func() {
		if err := d.visionSrv.Start(ctx); err != nil {
			httpErrCh <- err
		}
	}()

	if cfg.Server.Transport == "streamable-http" {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			if err := d.mcpSrv.ServeStreamableHTTP(addr); err != nil && !strings.Contains(err.Error(), "Server closed") {
				log.Printf("mcp streamable-http server error: %v", err)
			}
		}()
	} else {
		go func() {
			if err := d.mcpSrv.ServeStdio(); err != nil {
				log.Printf("mcp stdio server error: %v", err)
			}
		}()
	}

	log.Printf("physical-mcpd running: %d camera(s), vision api on %s:%d", d.registry.Len(), cfg.VisionAPI.Host, cfg.VisionAPI.Port)

	select {
	case <-ctx.Done():
		log.Printf("shutdown signal received")
	case err := <-httpErrCh:
		log.Printf("vision api server error: %v", err)
	}

	d.shutdown()
	return exitOK
}

// buildDaemon constructs every shared component and opens every
// configured camera eagerly. A camera that fails to open is logged and
// skipped rather than aborting the whole daemon — one bad RTSP URL in
// config.yaml shouldn't take every other camera down with it.
func buildDaemon(cfg config.Config) (*daemon, error) {
	d := &daemon{cfg: cfg}

	d.rulesStore = rules.NewStore(paths.ResolveRulesPath(cfg.RulesFile))
	d.rulesEng = rules.NewEngine()
	d.rulesEng.LoadRules(d.rulesStore.Load())

	d.health = camhealth.New()
	d.alerts = alertqueue.New(50, 300*time.Second)
	d.replayLog = replay.New(500)
	if cfg.Audit.PostgresDSN != "" {
		db, err := auditstore.Open(cfg.Audit.PostgresDSN)
		if err != nil {
			log.Printf("audit postgres unavailable, replay log stays in-memory only: %v", err)
		} else {
			d.auditDB = db
			store := auditstore.New(db, nil)
			d.replayLog.SetMirror(func(event replay.Event) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.WriteEvent(ctx, event); err != nil {
					log.Printf("audit mirror write failed: %v", err)
				}
			})
		}
	}
	d.events = eventbus.New(cfg.Events.NATSURL)
	d.memoryStore = memory.New(paths.ResolveMemoryPath(cfg.MemoryFile))
	d.statsTrk = stats.New(cfg.CostControl.DailyBudgetUSD, cfg.CostControl.MaxAnalysesPerHour)

	d.notifier = notify.New(notify.Config{
		DesktopEnabled:    cfg.Notifications.DesktopEnabled,
		WebhookURL:        cfg.Notifications.WebhookURL,
		NtfyTopic:         cfg.Notifications.NtfyTopic,
		NtfyServer:        cfg.Notifications.NtfyServerURL,
		TelegramBotToken:  cfg.Notifications.TelegramBotToken,
		TelegramChatID:    cfg.Notifications.TelegramChatID,
		DiscordWebhookURL: cfg.Notifications.DiscordWebhookURL,
		SlackWebhookURL:   cfg.Notifications.SlackWebhookURL,
		OpenClawBin:       cfg.Notifications.OpenClawBin,
		OpenClawChannel:   cfg.Notifications.OpenClawChannel,
		OpenClawTarget:    cfg.Notifications.OpenClawTarget,
	})

	providerAPIKey, err := resolveProviderAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	provider := vision.CreateProvider(vision.ReasoningConfig{
		Provider: cfg.Reasoning.Provider,
		APIKey:   providerAPIKey,
		Model:    cfg.Reasoning.Model,
		BaseURL:  cfg.Reasoning.BaseURL,
	})
	d.analyzer = vision.NewAnalyzer(provider, vision.ThumbnailConfig{
		MaxDim:  cfg.Reasoning.MaxThumbnailDim,
		Quality: cfg.Reasoning.ImageQuality,
	})

	signingKey, err := resolvePushTokenSigningKey()
	if err != nil {
		return nil, err
	}
	d.pushTokens = pushtoken.NewManager(signingKey)

	d.sceneCache = buildSceneCache(cfg)

	// onRegister lets the registry start a perception loop for cameras
	// that show up after startup too (accepted cloud cameras, claimed
	// pushed cameras) instead of only the ones opened below.
	d.registry = visionapi.NewRegistry(cfg.Perception.BufferSize, d.startLoop)

	for _, camCfg := range cfg.Cameras {
		if !camCfg.Enabled {
			continue
		}
		name := camCfg.Name
		if name == "" {
			name = camCfg.ID
		}
		if err := d.openAndRegisterCamera(name, toCameraConfig(camCfg)); err != nil {
			log.Printf("camera %s failed to open, skipping: %v", camCfg.ID, err)
			continue
		}
	}

	d.metricsCol = metrics.NewCollector(metrics.Sources{
		Health: d.health,
		Stats:  d.statsTrk,
		Alerts: d.alerts,
		Events: d.events,
	})
	d.metricsCol.Start(context.Background(), 15*time.Second)

	visionAddr := fmt.Sprintf("%s:%d", cfg.VisionAPI.Host, cfg.VisionAPI.Port)
	d.visionSrv = visionapi.NewServer(visionapi.Config{
		Addr:                visionAddr,
		Registry:            d.registry,
		Rules:               d.rulesEng,
		RulesStore:          d.rulesStore,
		Health:              d.health,
		Alerts:              d.alerts,
		Replay:              d.replayLog,
		Events:              d.events,
		Notifier:            d.notifier,
		PushTokens:          d.pushTokens,
		DefaultNotification: defaultNotificationTarget(cfg),
		MetricsHandler:      d.metricsCol.Handler(),
	})

	d.mcpSrv = mcpserver.New(mcpserver.Config{
		Registry:            d.registry,
		Rules:               d.rulesEng,
		RulesStore:          d.rulesStore,
		Alerts:              d.alerts,
		Replay:              d.replayLog,
		Events:              d.events,
		Notifier:            d.notifier,
		Memory:              d.memoryStore,
		Stats:               d.statsTrk,
		Analyzer:            d.analyzer,
		Health:              d.health,
		DefaultNotification: defaultNotificationTarget(cfg),
		CameraCaptureFPS:    cfg.Perception.CaptureFPS,
		CameraImageQuality:  cfg.Reasoning.ImageQuality,
		SceneCache:          d.sceneCache,
	})

	if ad, err := mdns.Advertise(cfg.VisionAPI.Port); err != nil {
		log.Printf("mdns advertisement unavailable: %v", err)
	} else {
		d.mdnsAd = ad
	}

	return d, nil
}

// buildSceneCache picks the Redis backend when a URL is configured,
// falling back to a JSON file under the data directory otherwise. A
// malformed Redis URL is logged and falls back to the file backend
// rather than failing the whole daemon over an optional replica feed.
func buildSceneCache(cfg config.Config) cache.SceneCache {
	if cfg.SceneCache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.SceneCache.RedisURL)
		if err != nil {
			log.Printf("scene_cache.redis_url invalid, falling back to file cache: %v", err)
		} else {
			return cache.NewRedisCache(redis.NewClient(opts))
		}
	}
	return cache.NewFileCache(filepath.Join(paths.ResolveDataRoot(), "scene_cache.json"))
}

func defaultNotificationTarget(cfg config.Config) rules.NotificationTarget {
	target := rules.DefaultNotificationTarget()
	target.Type = cfg.Notifications.DefaultType
	return target
}

func toCameraConfig(c config.CameraConfig) camera.Config {
	return camera.Config{
		ID:          c.ID,
		Kind:        camera.Kind(c.Type),
		DeviceIndex: c.DeviceIndex,
		URL:         c.URL,
		StreamURL:   c.URL,
		Width:       c.Width,
		Height:      c.Height,
	}
}

// openAndRegisterCamera opens src and wires its buffer/scene state/
// perception loop, then registers the entry so the VisionAPI and MCP
// surfaces can see it immediately.
func (d *daemon) openAndRegisterCamera(name string, camCfg camera.Config) error {
	src, err := camera.New(camCfg)
	if err != nil {
		return err
	}
	if err := src.Open(context.Background()); err != nil {
		return err
	}

	entry := &visionapi.CameraEntry{
		ID:     camCfg.ID,
		Name:   name,
		Kind:   camCfg.Kind,
		Source: src,
		Buffer: framebuffer.New(d.cfg.Perception.BufferSize),
		Scene:  scene.New(50),
	}
	if err := d.registry.Add(entry); err != nil {
		_ = src.Close(context.Background())
		return err
	}

	d.startLoop(entry)
	return nil
}

func (d *daemon) startLoop(entry *visionapi.CameraEntry) {
	detector := changedetect.New(changedetect.Thresholds{
		Minor:    d.cfg.Perception.ChangeDetection.MinorThreshold,
		Moderate: d.cfg.Perception.ChangeDetection.ModerateThreshold,
		Major:    d.cfg.Perception.ChangeDetection.MajorThreshold,
	})
	smp := sampler.New(detector, sampler.Config{
		HeartbeatInterval: time.Duration(d.cfg.Perception.Sampling.HeartbeatIntervalSeconds * float64(time.Second)),
		DebounceSeconds:   time.Duration(d.cfg.Perception.Sampling.DebounceSeconds * float64(time.Second)),
		CooldownSeconds:   time.Duration(d.cfg.Perception.Sampling.CooldownSeconds * float64(time.Second)),
	})

	loop := perception.New(perception.Deps{
		CameraID:     entry.ID,
		CameraName:   entry.Name,
		Camera:       entry.Source,
		Buffer:       entry.Buffer,
		Sampler:      smp,
		Analyzer:     d.analyzer,
		Scene:        entry.Scene,
		Rules:        d.rulesEng,
		Stats:        d.statsTrk,
		Alerts:       d.alerts,
		Notifier:     d.notifier,
		Memory:       d.memoryStore,
		Events:       d.events,
		Replay:       d.replayLog,
		Health:       d.health,
		SceneCache:   d.sceneCache,
		CaptureFPS:   d.cfg.Perception.CaptureFPS,
		ImageQuality: d.cfg.Reasoning.ImageQuality,
	})

	loopCtx, cancel := context.WithCancel(context.Background())
	d.loopCancels = append(d.loopCancels, cancel)
	d.loopWG.Add(1)
	go func() {
		defer d.loopWG.Done()
		loop.Run(loopCtx)
	}()
}

// shutdown tears components down in spec order: perception loops,
// capture threads (the per-camera goroutines the loops drive), HTTP
// server, mDNS, camera closers. Every step gets a bounded window; a
// slow one is abandoned rather than blocking the rest.
func (d *daemon) shutdown() {
	for _, cancel := range d.loopCancels {
		cancel()
	}
	waitWithTimeout(&d.loopWG, 5*time.Second, "perception loops")

	if d.mdnsAd != nil {
		d.mdnsAd.Shutdown()
	}

	var wg sync.WaitGroup
	for _, entry := range d.registry.List() {
		wg.Add(1)
		go func(e *visionapi.CameraEntry) {
			defer wg.Done()
			closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := e.Source.Close(closeCtx); err != nil {
				log.Printf("camera %s close error: %v", e.ID, err)
			}
		}(entry)
	}
	waitWithTimeout(&wg, 5*time.Second, "camera closers")

	if d.auditDB != nil {
		if err := d.auditDB.Close(); err != nil {
			log.Printf("audit db close error: %v", err)
		}
	}

	log.Printf("shutdown complete")
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration, label string) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("%s did not finish within %s, continuing shutdown", label, timeout)
	}
}

func secretsKeyPath() string {
	return filepath.Join(paths.ResolveDataRoot(), "secrets.key")
}

// resolveProviderAPIKey decrypts an "enc:"-prefixed api_key using the
// local secrets keyring, or returns cfg's value unchanged for a
// plaintext key (the common case for a first-run config.yaml).
func resolveProviderAPIKey(cfg config.Config) (string, error) {
	raw := cfg.Reasoning.APIKey
	if !strings.HasPrefix(raw, "enc:") {
		return raw, nil
	}
	kr, err := secrets.LoadOrCreate(secretsKeyPath())
	if err != nil {
		return "", fmt.Errorf("load secrets keyring: %w", err)
	}
	return kr.OpenString(secrets.PurposeProviderAPIKey, strings.TrimPrefix(raw, "enc:"))
}

// resolvePushTokenSigningKey loads (or creates on first run) the HMAC
// secret push tokens are signed with, itself encrypted at rest under
// the local secrets keyring.
func resolvePushTokenSigningKey() (string, error) {
	kr, err := secrets.LoadOrCreate(secretsKeyPath())
	if err != nil {
		return "", fmt.Errorf("load secrets keyring: %w", err)
	}

	blobPath := filepath.Join(paths.ResolveDataRoot(), "push_signing.key.enc")
	data, err := os.ReadFile(blobPath)
	if err == nil {
		return kr.OpenString(secrets.PurposePushTokenSigner, string(data))
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := base64.StdEncoding.EncodeToString(raw)
	blob, err := kr.SealString(secrets.PurposePushTokenSigner, secret)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(blobPath, []byte(blob), 0o600); err != nil {
		return "", err
	}
	return secret, nil
}
