// Package config loads and saves the daemon's YAML configuration,
// with ${VAR_NAME} environment-variable interpolation and fsnotify hot
// reload, grounded on the teacher's own config/license file-watch idiom.
package config

import (
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/physical-mcp/internal/platform/paths"
)

// CameraConfig describes one configured camera source.
type CameraConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name,omitempty"`
	Type        string `yaml:"type"`
	DeviceIndex int    `yaml:"device_index"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	URL         string `yaml:"url,omitempty"`
	Enabled     bool   `yaml:"enabled"`
}

// ChangeDetectionConfig holds pHash-distance thresholds per change level.
type ChangeDetectionConfig struct {
	MinorThreshold    int `yaml:"minor_threshold"`
	ModerateThreshold int `yaml:"moderate_threshold"`
	MajorThreshold    int `yaml:"major_threshold"`
}

// SamplingConfig tunes the cost-gated sampler's debounce/cooldown windows.
type SamplingConfig struct {
	HeartbeatIntervalSeconds float64 `yaml:"heartbeat_interval"`
	DebounceSeconds          float64 `yaml:"debounce_seconds"`
	CooldownSeconds          float64 `yaml:"cooldown_seconds"`
}

// PerceptionConfig tunes the per-camera perception loop.
type PerceptionConfig struct {
	BufferSize      int                   `yaml:"buffer_size"`
	CaptureFPS      int                   `yaml:"capture_fps"`
	ChangeDetection ChangeDetectionConfig `yaml:"change_detection"`
	Sampling        SamplingConfig        `yaml:"sampling"`
}

// ReasoningConfig selects and configures the vision-LLM provider.
type ReasoningConfig struct {
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url,omitempty"`
	ImageQuality   int    `yaml:"image_quality"`
	MaxThumbnailDim int   `yaml:"max_thumbnail_dim"`
}

// CostControlConfig bounds vision-provider spend.
type CostControlConfig struct {
	DailyBudgetUSD     float64 `yaml:"daily_budget_usd"`
	MaxAnalysesPerHour int     `yaml:"max_analyses_per_hour"`
}

// ServerConfig configures the MCP tool server transport.
type ServerConfig struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
}

// NotificationsConfig configures default notification routing.
type NotificationsConfig struct {
	DefaultType       string `yaml:"default_type"`
	WebhookURL        string `yaml:"webhook_url,omitempty"`
	DesktopEnabled    bool   `yaml:"desktop_enabled"`
	NtfyTopic         string `yaml:"ntfy_topic,omitempty"`
	NtfyServerURL     string `yaml:"ntfy_server_url"`
	TelegramBotToken  string `yaml:"telegram_bot_token,omitempty"`
	TelegramChatID    string `yaml:"telegram_chat_id,omitempty"`
	DiscordWebhookURL string `yaml:"discord_webhook_url,omitempty"`
	SlackWebhookURL   string `yaml:"slack_webhook_url,omitempty"`
	OpenClawBin       string `yaml:"openclaw_bin,omitempty"`
	OpenClawChannel   string `yaml:"openclaw_channel,omitempty"`
	OpenClawTarget    string `yaml:"openclaw_target,omitempty"`
}

// VisionAPIConfig configures the REST/SSE/MJPEG HTTP surface.
type VisionAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventsConfig configures the optional NATS multi-instance bridge.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
}

// AuditConfig optionally mirrors the in-memory replay log to Postgres
// so alert/system-event history survives a daemon restart. Empty
// PostgresDSN means no mirroring, matching the teacher's own audit
// sink being inert until configured.
type AuditConfig struct {
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// SceneCacheConfig selects the backend that publishes each camera's
// latest scene snapshot outside the daemon process. An empty RedisURL
// uses the file-based backend under the data directory.
type SceneCacheConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"`
}

// Config is the daemon's complete configuration tree.
type Config struct {
	Server        ServerConfig         `yaml:"server"`
	Cameras       []CameraConfig       `yaml:"cameras"`
	Perception    PerceptionConfig     `yaml:"perception"`
	Reasoning     ReasoningConfig      `yaml:"reasoning"`
	CostControl   CostControlConfig    `yaml:"cost_control"`
	Notifications NotificationsConfig  `yaml:"notifications"`
	VisionAPI     VisionAPIConfig      `yaml:"vision_api"`
	Events        EventsConfig         `yaml:"events"`
	SceneCache    SceneCacheConfig     `yaml:"scene_cache"`
	Audit         AuditConfig          `yaml:"audit"`
	RulesFile     string               `yaml:"rules_file"`
	MemoryFile    string               `yaml:"memory_file"`
}

// Default returns the daemon's built-in default configuration,
// matching the original's pydantic field defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{Transport: "streamable-http", Host: "0.0.0.0", Port: 8400},
		Cameras: []CameraConfig{
			{ID: "usb:0", Type: "usb", DeviceIndex: 0, Width: 1280, Height: 720, Enabled: true},
		},
		Perception: PerceptionConfig{
			BufferSize: 300,
			CaptureFPS: 2,
			ChangeDetection: ChangeDetectionConfig{
				MinorThreshold:    5,
				ModerateThreshold: 12,
				MajorThreshold:    25,
			},
			Sampling: SamplingConfig{
				HeartbeatIntervalSeconds: 300.0,
				DebounceSeconds:          3.0,
				CooldownSeconds:          10.0,
			},
		},
		Reasoning: ReasoningConfig{ImageQuality: 60, MaxThumbnailDim: 640},
		CostControl: CostControlConfig{
			DailyBudgetUSD:     0,
			MaxAnalysesPerHour: 120,
		},
		Notifications: NotificationsConfig{
			DefaultType:    "local",
			DesktopEnabled: true,
			NtfyServerURL:  "https://ntfy.sh",
		},
		VisionAPI:  VisionAPIConfig{Enabled: true, Host: "0.0.0.0", Port: 8090},
		RulesFile:  paths.ResolveRulesPath(""),
		MemoryFile: paths.ResolveMemoryPath(""),
	}
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

func interpolateEnvVars(text string) string {
	return envVarPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// Load reads config from path, interpolating ${VAR_NAME} environment
// references before parsing. A missing file yields Default().
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	interpolated := interpolateEnvVars(string(raw))
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}
