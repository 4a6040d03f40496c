package vision

import "github.com/technosupport/physical-mcp/internal/obslog"

// ReasoningConfig is the subset of the daemon's config needed to
// construct a Provider.
type ReasoningConfig struct {
	Provider string // "anthropic" | "openai" | "openai-compatible" | "google" | ""
	APIKey   string
	Model    string
	BaseURL  string
}

// CreateProvider builds the configured Provider, or nil if the
// daemon is running in client-side (no server vision provider)
// reasoning mode — an empty provider/api_key pair is that signal, not
// an error.
func CreateProvider(cfg ReasoningConfig) Provider {
	if cfg.Provider == "" || cfg.APIKey == "" {
		return nil
	}
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model)
	case "openai":
		return NewOpenAICompatProvider(cfg.APIKey, cfg.Model, "")
	case "openai-compatible":
		return NewOpenAICompatProvider(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "google":
		return NewGoogleProvider(cfg.APIKey, cfg.Model)
	default:
		obslog.New("vision-factory").Printf("unknown provider: %s", cfg.Provider)
		return nil
	}
}
