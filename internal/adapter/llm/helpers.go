package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/tracer"
)

// maxResponseBody is the maximum non-streaming response body we read.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 4096

// StatusError reports a non-2xx response from the service. The body of the
// response is kept (truncated) for diagnostics; no stream decoding happens.
type StatusError struct {
	StatusCode int
	Status     string // status text, e.g. "Not Found"
	Body       string
	Message    string // "error" field of a JSON error body, if any

	kind error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("network response error: %d %s", e.StatusCode, e.Status)
	if e.Message != "" {
		return msg + ": " + e.Message
	}
	return msg
}

// Unwrap exposes ErrTransport plus the category derived from the status code.
func (e *StatusError) Unwrap() []error {
	if e.kind == nil {
		return []error{domain.ErrTransport}
	}
	return []error{domain.ErrTransport, e.kind}
}

// mapHTTPError builds a StatusError from a failed response, classifying the
// status code so callers, the circuit breaker and ErrorCodeOf can tell
// throttling, auth, missing models and server faults apart.
func mapHTTPError(statusCode int, status string, body []byte) *StatusError {
	se := &StatusError{
		StatusCode: statusCode,
		Status:     statusText(statusCode, status),
		Body:       string(body),
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		se.Message = payload.Error
	}

	switch {
	case statusCode == http.StatusTooManyRequests: // 429
		se.kind = domain.ErrRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden: // 401, 403
		se.kind = domain.ErrAuthInvalid
	case statusCode == http.StatusNotFound:
		se.kind = domain.ErrNotFound
	case statusCode == http.StatusBadRequest:
		se.kind = domain.ErrInvalidInput
	case statusCode >= 500:
		se.kind = domain.ErrProviderError
	}
	return se
}

// statusText strips the numeric prefix from an http.Response Status.
func statusText(code int, status string) string {
	if s := strings.TrimPrefix(status, strconv.Itoa(code)+" "); s != "" && s != status {
		return s
	}
	if s := http.StatusText(code); s != "" {
		return s
	}
	return status
}

// send performs one request through the rate limiter and circuit breaker.
// On a 2xx it returns the open response; the caller must close Body. Any
// other status is drained, closed and returned as a *StatusError.
func (c *Client) send(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	return c.breaker.execute(func() (*http.Response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if accept != "" {
			httpReq.Header.Set("Accept", accept)
		}

		httpResp, err := c.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w: http request: %w", domain.ErrTransport, errCallEnded, err)
			}
			return nil, fmt.Errorf("%w: http request: %w", domain.ErrTransport, err)
		}

		if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
			defer httpResp.Body.Close()
			respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
			return nil, mapHTTPError(httpResp.StatusCode, httpResp.Status, respBody)
		}
		return httpResp, nil
	})
}

// doJSONRequest performs a request and decodes the JSON response into out.
// An empty success body leaves out untouched. out may be nil.
func (c *Client) doJSONRequest(ctx context.Context, method, path string, in, out any) error {
	httpResp, err := c.send(ctx, method, path, in, "application/json")
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrTransport, err)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// setMetricsAttrs adds final-record counters to a trace span.
func setMetricsAttrs(span trace.Span, m domain.ChatMetrics) {
	span.SetAttributes(
		tracer.Int64Attr("ollama.prompt_eval_count", m.PromptEvalCount),
		tracer.Int64Attr("ollama.eval_count", m.EvalCount),
		tracer.Int64Attr("ollama.total_duration_ns", m.TotalDuration),
	)
}
