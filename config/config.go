// Package config loads shopagent configuration.
//
// Precedence, highest first:
//
//  1. Environment variables with the SHOPAGENT_ prefix
//  2. The YAML config file
//  3. Built-in defaults
//
// Environment keys split on the first underscore after the prefix:
// SHOPAGENT_SERVER_ADDR maps to server.addr and SHOPAGENT_LLM_API_KEY maps to
// llm.api_key. Tool endpoint lists (SHOPAGENT_TOOLS_<AGENT>) are comma
// separated.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/dshills/shopagent/assistant"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHOPAGENT_"

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig        `koanf:"server"`
	Store     StoreConfig         `koanf:"store"`
	LLM       LLMConfig           `koanf:"llm"`
	Qdrant    QdrantConfig        `koanf:"qdrant"`
	Tools     map[string][]string `koanf:"tools"`
	HTTPTools []HTTPToolConfig    `koanf:"http_tools"`
	Log       LogConfig           `koanf:"log"`
	Telemetry TelemetryConfig     `koanf:"telemetry"`
	Engine    EngineConfig        `koanf:"engine"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, mysql or redis.
	Driver string `koanf:"driver"`
	// DSN is the SQLite path or the MySQL data source name.
	DSN           string        `koanf:"dsn"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	KeyPrefix     string        `koanf:"key_prefix"`
	TTL           time.Duration `koanf:"ttl"`
}

// LLMConfig selects the chat model provider.
type LLMConfig struct {
	// Provider is one of openai, anthropic, google or mock.
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	// Agents overrides Model per agent name.
	Agents map[string]string `koanf:"agents"`
}

// QdrantConfig points at the item catalog. Lookups are disabled when Host
// is empty.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	APIKey     string `koanf:"api_key"`
	UseTLS     bool   `koanf:"use_tls"`
	Collection string `koanf:"collection"`
}

// HTTPToolConfig declares a JSON-over-HTTP endpoint as a tool of one
// specialist agent.
type HTTPToolConfig struct {
	Agent       string                 `koanf:"agent"`
	Name        string                 `koanf:"name"`
	Description string                 `koanf:"description"`
	URL         string                 `koanf:"url"`
	Headers     map[string]string      `koanf:"headers"`
	Parameters  map[string]interface{} `koanf:"parameters"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	// Endpoint is the OTLP/HTTP collector URL. Empty defers to the
	// OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string `koanf:"otlp_endpoint"`
}

// EngineConfig tunes graph execution.
type EngineConfig struct {
	NodeTimeout time.Duration `koanf:"node_timeout"`
	// PromptDir overrides the bundled prompt templates.
	PromptDir string `koanf:"prompt_dir"`
}

// Load reads path (optional; "" skips the file), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps SHOPAGENT_SECTION_FIELD_NAME to section.field_name.
func envKey(name, value string) (string, interface{}) {
	lower := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok || field == "" {
		return "", nil
	}
	if section == "tools" {
		var endpoints []string
		for _, e := range strings.Split(value, ",") {
			if e = strings.TrimSpace(e); e != "" {
				endpoints = append(endpoints, e)
			}
		}
		return section + "." + field, endpoints
	}
	return section + "." + field, value
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "shopagent.db"
	}
	if cfg.Store.Driver == "redis" && cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = "localhost:6379"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}

	if cfg.Qdrant.Host != "" && cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "shopagent"
	}

	if cfg.Engine.NodeTimeout == 0 {
		cfg.Engine.NodeTimeout = 2 * time.Minute
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "google":
		return "gemini-2.5-flash"
	case "mock":
		return "mock"
	default:
		return "gpt-4.1"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory", "sqlite", "redis":
	case "mysql":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Store.TTL < 0 {
		errs = append(errs, errors.New("store.ttl must not be negative"))
	}

	switch c.LLM.Provider {
	case "mock":
	case "openai", "anthropic", "google":
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm.api_key is required for %s", c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, errors.New("llm.temperature must be between 0 and 2"))
	}
	for agent := range c.LLM.Agents {
		if agent != assistant.Coordinator && !assistant.IsSpecialist(agent) {
			errs = append(errs, fmt.Errorf("llm.agents: unknown agent %q", agent))
		}
	}

	for agent := range c.Tools {
		if !assistant.IsSpecialist(agent) {
			errs = append(errs, fmt.Errorf("tools: %q is not a specialist agent", agent))
		}
	}

	seen := make(map[string]bool)
	for i, h := range c.HTTPTools {
		if !assistant.IsSpecialist(h.Agent) {
			errs = append(errs, fmt.Errorf("http_tools[%d]: %q is not a specialist agent", i, h.Agent))
		}
		if h.Name == "" || h.URL == "" {
			errs = append(errs, fmt.Errorf("http_tools[%d]: name and url are required", i))
		}
		if key := h.Agent + "/" + h.Name; seen[key] {
			errs = append(errs, fmt.Errorf("http_tools[%d]: duplicate tool %q for %s", i, h.Name, h.Agent))
		} else {
			seen[key] = true
		}
	}

	if c.Qdrant.Port < 0 || c.Qdrant.Port > 65535 {
		errs = append(errs, fmt.Errorf("qdrant.port %d out of range", c.Qdrant.Port))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if c.Engine.NodeTimeout < 0 {
		errs = append(errs, errors.New("engine.node_timeout must not be negative"))
	}

	return errors.Join(errs...)
}
