package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateOllama(cfg, ve)
	validateChat(cfg, ve)
	validateCircuitBreaker(cfg, ve)
	validateRateLimit(cfg, ve)
	validateEmbedding(cfg, ve)
	validateHistory(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateOllama(cfg *Config, ve *ValidationError) {
	o := cfg.Ollama
	if o.BaseURL == "" {
		ve.Add("ollama.base_url must not be empty")
	} else if u, err := url.Parse(o.BaseURL); err != nil || u.Host == "" {
		ve.Add("ollama.base_url %q is not an absolute URL", o.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		ve.Add("ollama.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if o.Model == "" {
		ve.Add("ollama.model must not be empty")
	}
	if o.ConnTimeout < 0 || o.RespTimeout < 0 {
		ve.Add("ollama timeouts must be >= 0")
	}
	if o.ReadBufferSize < 0 {
		ve.Add("ollama.read_buffer_size must be >= 0")
	}
	if o.MaxLineBytes < 0 {
		ve.Add("ollama.max_line_bytes must be >= 0")
	}
}

func validateChat(cfg *Config, ve *ValidationError) {
	if cfg.Chat.Timeout <= 0 {
		ve.Add("chat.timeout must be > 0")
	}
}

func validateCircuitBreaker(cfg *Config, ve *ValidationError) {
	cb := cfg.CircuitBreaker
	if !cb.Enabled {
		return
	}
	if cb.Timeout < 0 || cb.Interval < 0 {
		ve.Add("circuit_breaker durations must be >= 0")
	}
}

func validateRateLimit(cfg *Config, ve *ValidationError) {
	rl := cfg.RateLimit
	if rl.RequestsPerSecond < 0 {
		ve.Add("rate_limit.requests_per_second must be >= 0")
	}
	if rl.RequestsPerSecond > 0 && rl.Burst < 0 {
		ve.Add("rate_limit.burst must be >= 0")
	}
}

func validateEmbedding(cfg *Config, ve *ValidationError) {
	if cfg.Embedding.Model == "" {
		ve.Add("embedding.model must not be empty")
	}
	if cfg.Embedding.Dimensions < 0 {
		ve.Add("embedding.dimensions must be >= 0")
	}
}

func validateHistory(cfg *Config, ve *ValidationError) {
	if cfg.History.Enabled && cfg.History.Path == "" {
		ve.Add("history.path is required when history is enabled")
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want debug, info, warn or error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is unsupported (want stdout or noop)", cfg.Tracer.Exporter)
	}
}
