package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// httpBreaker guards request round-trips with a circuit breaker. When the
// service fails repeatedly the circuit opens and calls fail fast with
// ErrCircuitOpen instead of piling up on a dead server.
//
// Only the round-trip up to the response headers is guarded; errors while
// reading a stream body do not trip the breaker. A nil *httpBreaker passes
// calls straight through.
type httpBreaker struct {
	cb *gobreaker.CircuitBreaker[*http.Response]
}

func newHTTPBreaker(cfg config.CircuitBreakerConfig, logger *slog.Logger) *httpBreaker {
	if !cfg.Enabled {
		return nil
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "ollama",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: breakerSuccess,
	})
	return &httpBreaker{cb: cb}
}

// errCallEnded marks a round-trip abandoned because the caller's context
// was cancelled or hit its deadline.
var errCallEnded = errors.New("call ended before response")

// breakerSuccess decides which outcomes count against the service. Caller
// cancellation, an expired call deadline and client-side 4xx errors say
// nothing about server health; a slow model load can outlast a short chat
// timeout. Dial failures and the transport's ResponseHeaderTimeout still
// count as failures.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, errCallEnded) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func (b *httpBreaker) execute(fn func() (*http.Response, error)) (*http.Response, error) {
	if b == nil {
		return fn()
	}
	resp, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", domain.ErrCircuitOpen, err)
		}
		return nil, err
	}
	return resp, nil
}

// State returns the current breaker state; a disabled breaker is always closed.
func (b *httpBreaker) State() gobreaker.State {
	if b == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}

// Counts returns the current failure/success counts.
func (b *httpBreaker) Counts() gobreaker.Counts {
	if b == nil {
		return gobreaker.Counts{}
	}
	return b.cb.Counts()
}

// --- Connection Pooling ---

// Default connection pool settings: one local host, a handful of
// concurrent long-lived streams.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
)

// Default service timeouts: short connect (local), long time-to-first-byte
// (model loading).
const (
	defaultConnTimeout = 5 * time.Second
	defaultRespTimeout = 300 * time.Second
)

// NewPooledTransport creates an http.Transport with connection pooling.
// respTimeout bounds the wait for response headers only.
func NewPooledTransport(connTimeout, respTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}
	if respTimeout == 0 {
		respTimeout = defaultRespTimeout
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       idleTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// NewHTTPClient creates an *http.Client with a pooled transport. It sets no
// overall Client.Timeout: that would cut long chat streams mid-body. Chat
// calls carry their own deadline and everything else is bounded by the
// caller's context.
func NewHTTPClient(cfg config.OllamaConfig) *http.Client {
	return &http.Client{
		Transport: NewPooledTransport(cfg.ConnTimeout, cfg.RespTimeout, cfg.Pool),
	}
}
