package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/config"
)

// Compile-time interface assertions.
var (
	_ domain.ChatStreamer       = (*Client)(nil)
	_ domain.ModelManager       = (*Client)(nil)
	_ domain.EmbeddingGenerator = (*Client)(nil)
)

// defaultChatTimeout is the wall-clock limit of one chat call.
const defaultChatTimeout = 120 * time.Second

// warmupKeepAlive keeps a warmed model resident.
const warmupKeepAlive = "5m"

// Client talks to the native Ollama HTTP API. It is safe for concurrent
// use; every chat call gets its own cancellation token.
type Client struct {
	baseURL        string
	model          string
	keepAlive      string
	chatTimeout    time.Duration
	readBufferSize int
	maxLineBytes   int

	client  *http.Client
	breaker *httpBreaker
	limiter *requestLimiter
	logger  *slog.Logger

	mu    sync.Mutex
	calls map[string]*ChatCall // in-flight chat calls by ID
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithChatTimeout sets the per-call chat deadline.
func WithChatTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.chatTimeout = d
		}
	}
}

// WithKeepAlive sets the default keep_alive sent with chat requests.
func WithKeepAlive(s string) Option {
	return func(c *Client) { c.keepAlive = s }
}

// WithCircuitBreaker guards round-trips with a circuit breaker.
func WithCircuitBreaker(cfg config.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breaker = newHTTPBreaker(cfg, c.logger) }
}

// WithRateLimit throttles outgoing requests.
func WithRateLimit(cfg config.RateLimitConfig) Option {
	return func(c *Client) { c.limiter = newRequestLimiter(cfg) }
}

// NewClient creates a Client for the service rooted at cfg.BaseURL
// (for example http://localhost:11434/api).
func NewClient(cfg config.OllamaConfig, logger *slog.Logger, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	c := &Client{
		baseURL:        baseURL,
		model:          cfg.Model,
		chatTimeout:    defaultChatTimeout,
		readBufferSize: cfg.ReadBufferSize,
		maxLineBytes:   cfg.MaxLineBytes,
		logger:         logger,
		calls:          make(map[string]*ChatCall),
	}
	if c.readBufferSize <= 0 {
		c.readBufferSize = defaultReadBufferSize
	}
	if c.maxLineBytes == 0 {
		c.maxLineBytes = defaultMaxLineBytes
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = NewHTTPClient(cfg)
	}
	return c
}

// NewFromConfig wires a Client from the application config.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClient(cfg.Ollama, logger,
		WithChatTimeout(cfg.Chat.Timeout),
		WithKeepAlive(cfg.Chat.KeepAlive),
		WithCircuitBreaker(cfg.CircuitBreaker),
		WithRateLimit(cfg.RateLimit),
	)
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Model returns the default model.
func (c *Client) Model() string { return c.model }

// BreakerState reports the circuit breaker state for health output.
func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (*domain.VersionResponse, error) {
	var resp domain.VersionResponse
	if err := c.doJSONRequest(ctx, http.MethodGet, "/version", nil, &resp); err != nil {
		return nil, domain.WrapOp("Client.Version", err)
	}
	return &resp, nil
}

// IsHealthy checks if the server is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// Warmup sends a lightweight generate request to pre-load the default model
// so the first real chat does not pay the load latency.
func (c *Client) Warmup(ctx context.Context) error {
	if !c.IsHealthy(ctx) {
		return fmt.Errorf("%w: ollama server not reachable at %s", domain.ErrTransport, c.baseURL)
	}

	c.logger.Info("warming up model", "model", c.model, "base_url", c.baseURL)

	body := map[string]string{"model": c.model, "keep_alive": warmupKeepAlive}
	httpResp, err := c.send(ctx, http.MethodPost, "/generate", body, "")
	if err != nil {
		return domain.WrapOp("Client.Warmup", err)
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	c.logger.Info("model warmed up", "model", c.model)
	return nil
}
