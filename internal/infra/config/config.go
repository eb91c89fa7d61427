package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Ollama         OllamaConfig         `yaml:"ollama"`
	Chat           ChatConfig           `yaml:"chat"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	History        HistoryConfig        `yaml:"history"`
	Logger         LoggerConfig         `yaml:"logger"`
	Tracer         TracerConfig         `yaml:"tracer"`
}

// OllamaConfig holds the service connection settings.
type OllamaConfig struct {
	BaseURL        string        `yaml:"base_url"` // service root including /api
	Model          string        `yaml:"model"`
	ConnTimeout    time.Duration `yaml:"conn_timeout"`
	RespTimeout    time.Duration `yaml:"resp_timeout"` // time to first response header
	Pool           PoolConfig    `yaml:"pool"`
	ReadBufferSize int           `yaml:"read_buffer_size"`
	MaxLineBytes   int           `yaml:"max_line_bytes"`
}

// ChatConfig holds chat streaming settings.
type ChatConfig struct {
	Timeout   time.Duration `yaml:"timeout"` // wall-clock limit per chat call
	KeepAlive string        `yaml:"keep_alive,omitempty"`
}

// CircuitBreakerConfig holds circuit breaker settings for service calls.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// RateLimitConfig throttles outgoing requests. Zero RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// DefaultBaseURL is the service root used when none is configured.
const DefaultBaseURL = "http://localhost:11434/api"

// defaultDataDir returns the persistent data directory under $HOME/.cysinfo.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".cysinfo")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL:        DefaultBaseURL,
			Model:          "llama3",
			ConnTimeout:    5 * time.Second,
			RespTimeout:    300 * time.Second,
			ReadBufferSize: 32 * 1024,
			MaxLineBytes:   8 * 1024 * 1024,
		},
		Chat: ChatConfig{
			Timeout: 120 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			Interval:    60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:     "nomic-embed-text",
			CacheSize: 256,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(defaultDataDir(), "history.db"),
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

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error: defaults plus env overrides are returned.
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

	if err := validatePermissions(path); err != nil {
		return nil, err
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

// ApplyEnvOverrides maps CYSINFO_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CYSINFO_OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("CYSINFO_OLLAMA_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("CYSINFO_CHAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Chat.Timeout = d
		}
	}
	if v := os.Getenv("CYSINFO_CHAT_KEEP_ALIVE"); v != "" {
		cfg.Chat.KeepAlive = v
	}
	if v := os.Getenv("CYSINFO_CIRCUIT_BREAKER_ENABLED"); v == "true" {
		cfg.CircuitBreaker.Enabled = true
	} else if v == "false" {
		cfg.CircuitBreaker.Enabled = false
	}
	if v := os.Getenv("CYSINFO_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("CYSINFO_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("CYSINFO_EMBEDDING_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.CacheSize = n
		}
	}
	if v := os.Getenv("CYSINFO_HISTORY_ENABLED"); v == "true" {
		cfg.History.Enabled = true
	} else if v == "false" {
		cfg.History.Enabled = false
	}
	if v := os.Getenv("CYSINFO_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("CYSINFO_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CYSINFO_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CYSINFO_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("CYSINFO_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CYSINFO_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
