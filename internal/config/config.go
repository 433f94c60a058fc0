// Package config loads the engine configuration from YAML with
// environment-variable fallbacks for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deskmate/deskmate/internal/engine"
	"github.com/deskmate/deskmate/internal/provider"
)

// Duration decodes "90s"-style YAML values into a time.Duration
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) std() time.Duration { return time.Duration(d) }

// ProviderSettings configures the LLM provider connection
type ProviderSettings struct {
	BaseURL           string   `yaml:"base_url"`
	APIKey            string   `yaml:"api_key"`
	Model             string   `yaml:"model"`
	MaxTokens         int      `yaml:"max_tokens"`
	Timeout           Duration `yaml:"timeout"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

// CacheSettings selects and configures the response cache backend
type CacheSettings struct {
	Backend         string   `yaml:"backend"` // "memory", "badger" or "redis"
	Path            string   `yaml:"path"`    // badger data directory
	RedisAddr       string   `yaml:"redis_addr"`
	RedisPassword   string   `yaml:"redis_password"`
	RedisDB         int      `yaml:"redis_db"`
	ConversationTTL Duration `yaml:"conversation_ttl"`
	GenerationTTL   Duration `yaml:"generation_ttl"`
}

// MeteringSettings configures usage tracking
type MeteringSettings struct {
	Capacity     int    `yaml:"capacity"`
	AuditEnabled bool   `yaml:"audit_enabled"`
	AuditPath    string `yaml:"audit_path"`
}

// CalendarSettings configures the scheduling backend
type CalendarSettings struct {
	Backend string   `yaml:"backend"` // "memory" or "rest"
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// SearchSettings configures the web search backend
type SearchSettings struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"`
}

// LoggerSettings configures structured logging
type LoggerSettings struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// Config is the full application configuration
type Config struct {
	Provider ProviderSettings `yaml:"provider"`
	Cache    CacheSettings    `yaml:"cache"`
	Metering MeteringSettings `yaml:"metering"`
	Calendar CalendarSettings `yaml:"calendar"`
	Search   SearchSettings   `yaml:"search"`
	Logger   LoggerSettings   `yaml:"logger"`
	Engine   struct {
		DefaultModel  string   `yaml:"default_model"`
		Temperature   float64  `yaml:"temperature"`
		RetryAttempts int      `yaml:"retry_attempts"`
		RetryBackoff  Duration `yaml:"retry_backoff"`
	} `yaml:"engine"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{
		Provider: ProviderSettings{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			MaxTokens:         2048,
			Timeout:           Duration(60 * time.Second),
			RequestsPerMinute: 120,
		},
		Cache: CacheSettings{
			Backend:         "memory",
			Path:            "~/.deskmate/cache",
			ConversationTTL: Duration(10 * time.Minute),
			GenerationTTL:   Duration(24 * time.Hour),
		},
		Metering: MeteringSettings{
			Capacity:     1024,
			AuditEnabled: false,
			AuditPath:    "~/.deskmate/audit.db",
		},
		Calendar: CalendarSettings{
			Backend: "memory",
			Timeout: Duration(15 * time.Second),
		},
		Logger: LoggerSettings{
			Level:  "info",
			Format: "text",
		},
	}
	cfg.Engine.DefaultModel = "gpt-4o-mini"
	cfg.Engine.Temperature = 0.7
	cfg.Engine.RetryAttempts = 3
	cfg.Engine.RetryBackoff = Duration(500 * time.Millisecond)
	return cfg
}

// Load reads the YAML config at path, layered over defaults. An empty
// path returns the defaults. The DESKMATE_API_KEY environment variable
// overrides the provider key either way.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if key := os.Getenv("DESKMATE_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "badger", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Calendar.Backend {
	case "memory", "rest":
	default:
		return fmt.Errorf("unknown calendar backend %q", c.Calendar.Backend)
	}
	if c.Calendar.Backend == "rest" && c.Calendar.BaseURL == "" {
		return fmt.Errorf("calendar backend %q requires base_url", c.Calendar.Backend)
	}
	return nil
}

// ProviderConfig maps settings onto the provider client configuration
func (c *Config) ProviderConfig() *provider.Config {
	return &provider.Config{
		BaseURL:   c.Provider.BaseURL,
		APIKey:    c.Provider.APIKey,
		Model:     c.Provider.Model,
		MaxTokens: c.Provider.MaxTokens,
		Timeout:   c.Provider.Timeout.std(),
	}
}

// EngineConfig maps settings onto the engine configuration
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		DefaultModel:    c.Engine.DefaultModel,
		Temperature:     c.Engine.Temperature,
		ConversationTTL: c.Cache.ConversationTTL.std(),
		GenerationTTL:   c.Cache.GenerationTTL.std(),
		RetryAttempts:   c.Engine.RetryAttempts,
		RetryBackoff:    c.Engine.RetryBackoff.std(),
	}
}
