package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals from YAML duration strings like "120s" or "1m30s".
// yaml.v3 has no native time.Duration support and would otherwise demand raw
// nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level application configuration.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	LLM      LLMConfig      `yaml:"llm"`
	Store    StoreConfig    `yaml:"store"`
	Media    MediaConfig    `yaml:"media"`
	Channels ChannelsConfig `yaml:"channels"`
	Admin    AdminConfig    `yaml:"admin"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// AgentConfig holds conversation engine behavior settings.
type AgentConfig struct {
	MaxIterations int                `yaml:"max_iterations"` // tool loop bound
	WindowTurns   int                `yaml:"window_turns"`   // context window size in turns
	HistoryLimit  int                `yaml:"history_limit"`  // raw retrieval cap, distinct from the window
	ContextGuard  ContextGuardConfig `yaml:"context_guard"`
}

// ContextGuardConfig controls the advisory token-budget warning on built
// context windows.
type ContextGuardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	MaxTokens int    `yaml:"max_tokens"`
	Encoding  string `yaml:"encoding"`
}

// LLMConfig holds settings for the OpenAI-compatible chat completions API.
type LLMConfig struct {
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"`
	Model          string               `yaml:"model"`
	Timeout        Duration             `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures the LLM circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures uint32   `yaml:"max_failures"`
	Timeout     Duration `yaml:"timeout"`
	Interval    Duration `yaml:"interval"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// MediaConfig holds the backend media service endpoints.
type MediaConfig struct {
	Sonarr   ServiceConfig `yaml:"sonarr"`
	Radarr   ServiceConfig `yaml:"radarr"`
	TMDB     ServiceConfig `yaml:"tmdb"`
	Plex     ServiceConfig `yaml:"plex"`
	Tautulli ServiceConfig `yaml:"tautulli"`
	Brave    ServiceConfig `yaml:"brave"`
	Routing  RoutingConfig `yaml:"routing"`
}

// RoutingConfig holds case-insensitive substring hints for placing new
// media: which quality profile to prefer and which root folders receive
// anime series and Asian-language movies. Empty hints fall back to the
// first profile/folder the server reports.
type RoutingConfig struct {
	QualityHint string `yaml:"quality_hint"`
	AnimeHint   string `yaml:"anime_folder_hint"`
	CMoviesHint string `yaml:"cmovies_folder_hint"`
}

// ServiceConfig holds a single REST backend's address and credentials.
// A service with an empty URL is considered unconfigured and its tools
// report unavailability instead of failing.
type ServiceConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// Configured reports whether the service has an endpoint set.
// TMDB and Brave are key-only services hosted at fixed endpoints.
func (s ServiceConfig) Configured() bool { return s.URL != "" || s.APIKey != "" }

// ChannelsConfig holds settings for the user-facing transports.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Twilio   TwilioConfig   `yaml:"twilio"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// TwilioConfig holds Twilio SMS settings. ListenAddr is where the inbound
// SMS webhook server binds.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
	ListenAddr string `yaml:"listen_addr"`
	MMSPixel   string `yaml:"mms_pixel_url"` // attached to long replies to force MMS segmentation
}

// AdminConfig identifies the operator. The matching user record is created
// (or promoted) at startup, and onboarding notifications for new user
// requests are delivered to the Telegram chat id when set, otherwise to the
// phone number over SMS.
type AdminConfig struct {
	DisplayName    string `yaml:"display_name"`
	Phone          string `yaml:"phone"`
	TelegramChatID string `yaml:"telegram_chat_id"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	Output string `yaml:"output"` // stdout | stderr | file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout | noop
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations: 10,
			WindowTurns:   20,
			HistoryLimit:  50,
			ContextGuard: ContextGuardConfig{
				Enabled:   true,
				MaxTokens: 24000,
				Encoding:  "cl100k_base",
			},
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: Duration(120 * time.Second),
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Timeout:     Duration(30 * time.Second),
				Interval:    Duration(60 * time.Second),
			},
		},
		Store: StoreConfig{
			Path: "wads.db",
		},
		Channels: ChannelsConfig{
			Twilio: TwilioConfig{
				ListenAddr: ":8950",
			},
		},
		Admin: AdminConfig{
			DisplayName: "Admin",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads the YAML config at path, applies env overrides and validates.
// A missing file is not an error; defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps WADS_* env vars onto config fields. Secrets are
// expected to arrive this way in deployment.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WADS_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("WADS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("WADS_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("WADS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("WADS_TELEGRAM_TOKEN"); v != "" {
		cfg.Channels.Telegram.Token = v
	}
	if v := os.Getenv("WADS_TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Channels.Twilio.AccountSID = v
	}
	if v := os.Getenv("WADS_TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Channels.Twilio.AuthToken = v
	}
	if v := os.Getenv("WADS_TWILIO_FROM"); v != "" {
		cfg.Channels.Twilio.From = v
	}
	if v := os.Getenv("WADS_TWILIO_LISTEN_ADDR"); v != "" {
		cfg.Channels.Twilio.ListenAddr = v
	}
	if v := os.Getenv("WADS_ADMIN_PHONE"); v != "" {
		cfg.Admin.Phone = v
	}
	if v := os.Getenv("WADS_ADMIN_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Admin.TelegramChatID = v
	}
	if v := os.Getenv("WADS_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WADS_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	for name, dst := range map[string]*ServiceConfig{
		"SONARR":   &cfg.Media.Sonarr,
		"RADARR":   &cfg.Media.Radarr,
		"TMDB":     &cfg.Media.TMDB,
		"PLEX":     &cfg.Media.Plex,
		"TAUTULLI": &cfg.Media.Tautulli,
		"BRAVE":    &cfg.Media.Brave,
	} {
		if v := os.Getenv("WADS_" + name + "_URL"); v != "" {
			dst.URL = v
		}
		if v := os.Getenv("WADS_" + name + "_API_KEY"); v != "" {
			dst.APIKey = v
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func Validate(cfg *Config) error {
	if cfg.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	if cfg.Agent.WindowTurns <= 0 {
		return fmt.Errorf("agent.window_turns must be positive")
	}
	if cfg.Agent.HistoryLimit < cfg.Agent.WindowTurns {
		return fmt.Errorf("agent.history_limit (%d) must be >= agent.window_turns (%d)",
			cfg.Agent.HistoryLimit, cfg.Agent.WindowTurns)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	switch cfg.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger.format must be text or json, got %q", cfg.Logger.Format)
	}
	return nil
}
