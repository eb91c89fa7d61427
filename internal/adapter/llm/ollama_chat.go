package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/tracer"
)

// Cancellation causes attached to a chat call's token.
var (
	errChatTimeout = errors.New("chat deadline reached")
	errChatAborted = errors.New("chat aborted")
)

// ChatCall is one streamed chat request. Its token is private: aborting
// or timing out one call never touches another.
type ChatCall struct {
	id     string
	model  string
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu      sync.Mutex
	state   domain.CallState
	records []domain.ChatResponse
	err     error
}

// ID returns the call's unique identifier.
func (c *ChatCall) ID() string { return c.id }

// Model returns the model the call was sent to.
func (c *ChatCall) Model() string { return c.model }

// State returns the current lifecycle state.
func (c *ChatCall) State() domain.CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Records returns a snapshot of the records received so far.
func (c *ChatCall) Records() []domain.ChatResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatResponse, len(c.records))
	copy(out, c.records)
	return out
}

// Abort cancels the call. It is a no-op once the call has settled.
func (c *ChatCall) Abort() { c.cancel(errChatAborted) }

// Done is closed when the call settles.
func (c *ChatCall) Done() <-chan struct{} { return c.done }

// Wait blocks until the call settles. On failure after streaming began the
// records received before the failure are returned with the error.
func (c *ChatCall) Wait() ([]domain.ChatResponse, error) {
	<-c.done
	return c.Records(), c.err
}

func (c *ChatCall) setState(s domain.CallState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *ChatCall) append(r domain.ChatResponse) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

func (c *ChatCall) settle(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	switch {
	case err == nil:
		c.state = domain.CallCompleted
	case errors.Is(err, domain.ErrCancelled):
		c.state = domain.CallAborted
	default:
		c.state = domain.CallFailed
	}
}

// StartChat issues a streamed chat request and returns immediately. onData
// runs on the call's goroutine once per record, in arrival order.
func (c *Client) StartChat(ctx context.Context, req domain.ChatRequest, onData domain.ChatHandler) *ChatCall {
	call, callCtx, release := c.newCall(ctx, req.Model)
	go func() {
		defer release()
		call.settle(c.runChat(callCtx, call, req, onData))
	}()
	return call
}

// GenerateChat streams one chat completion on the calling goroutine,
// invoking onData for every record, and returns all records once the call
// settles. Failures are classified as timeout (domain.ErrTimeout),
// cancellation (domain.ErrCancelled), non-2xx status (*StatusError) or
// transport (domain.ErrTransport).
func (c *Client) GenerateChat(ctx context.Context, req domain.ChatRequest, onData domain.ChatHandler) ([]domain.ChatResponse, error) {
	call, callCtx, release := c.newCall(ctx, req.Model)
	call.settle(c.runChat(callCtx, call, req, onData))
	release()
	return call.Wait()
}

// Abort cancels every in-flight chat call. With none active it does nothing,
// and it never affects calls started afterwards.
func (c *Client) Abort() {
	c.mu.Lock()
	calls := make([]*ChatCall, 0, len(c.calls))
	for _, call := range c.calls {
		calls = append(calls, call)
	}
	c.mu.Unlock()

	for _, call := range calls {
		call.Abort()
	}
	if len(calls) > 0 {
		c.logger.Info("chat calls aborted", "count", len(calls))
	}
}

// ActiveCalls returns the number of chat calls in flight.
func (c *Client) ActiveCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// newCall registers a fresh call with its own token: a child of ctx that
// is cancelled by Abort or by the chat deadline. release stops the timer,
// unregisters the call and marks it done.
func (c *Client) newCall(ctx context.Context, model string) (*ChatCall, context.Context, func()) {
	if model == "" {
		model = c.model
	}
	callCtx, cancel := context.WithCancelCause(ctx)
	timedCtx, stop := context.WithTimeoutCause(callCtx, c.chatTimeout, errChatTimeout)

	call := &ChatCall{
		id:     newCallID(),
		model:  model,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  domain.CallIdle,
	}

	c.mu.Lock()
	c.calls[call.id] = call
	c.mu.Unlock()

	release := func() {
		stop()
		cancel(nil)
		c.mu.Lock()
		delete(c.calls, call.id)
		c.mu.Unlock()
		close(call.done)
	}
	return call, timedCtx, release
}

func (c *Client) runChat(ctx context.Context, call *ChatCall, req domain.ChatRequest, onData domain.ChatHandler) error {
	req.Model = call.model
	if req.KeepAlive == "" {
		req.KeepAlive = c.keepAlive
	}
	req.Stream = domain.Bool(true)

	ctx, span := tracer.StartSpan(ctx, "ollama.chat",
		trace.WithAttributes(
			tracer.StringAttr("ollama.model", req.Model),
			tracer.StringAttr("ollama.call_id", call.id),
			tracer.IntAttr("ollama.messages", len(req.Messages)),
		),
	)
	defer span.End()

	start := time.Now()
	call.setState(domain.CallRunning)
	c.logger.Debug("ollama chat started",
		"call_id", call.id,
		"model", req.Model,
		"messages", len(req.Messages),
	)

	httpResp, err := c.send(ctx, http.MethodPost, "/chat", req, "application/x-ndjson")
	if err != nil {
		return c.chatFailure(ctx, span, call, err)
	}
	defer httpResp.Body.Close()

	dec := NewDecoder[domain.ChatResponse](c.logger, SinkFunc[domain.ChatResponse](func(r domain.ChatResponse) {
		call.append(r)
		if onData != nil {
			onData(r)
		}
	}))
	dec.SetMaxLineBytes(c.maxLineBytes)

	if err := pumpBody(ctx, httpResp.Body, dec, c.readBufferSize); err != nil {
		return c.chatFailure(ctx, span, call, err)
	}

	records := dec.Records()
	if n := len(records); n > 0 && records[n-1].Done {
		setMetricsAttrs(span, records[n-1].Metrics())
	}
	span.SetAttributes(
		tracer.IntAttr("ollama.records", len(records)),
		tracer.IntAttr("ollama.skipped_lines", dec.Skipped()),
	)
	tracer.SetOK(span)
	c.logger.Debug("ollama chat finished",
		"call_id", call.id,
		"model", req.Model,
		"records", len(records),
		"skipped", dec.Skipped(),
		"duration", time.Since(start),
	)
	return nil
}

// chatFailure classifies err by the call token's cause first: a fired
// deadline or an abort wins over whatever error the transport surfaced.
func (c *Client) chatFailure(ctx context.Context, span trace.Span, call *ChatCall, err error) error {
	const op = "Client.GenerateChat"

	var out error
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, errChatTimeout):
		out = domain.NewSubSystemError("chat", op, domain.ErrTimeout, timeoutDetail(c.chatTimeout))
	case errors.Is(cause, context.DeadlineExceeded):
		out = domain.NewSubSystemError("chat", op, domain.ErrTimeout, "request deadline exceeded")
	case cause != nil:
		out = domain.NewSubSystemError("chat", op, domain.ErrCancelled, "")
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrCircuitOpen), errors.Is(err, domain.ErrRateLimit):
		out = domain.WrapOp(op, err)
	default:
		out = fmt.Errorf("%s: %w: %w", op, domain.ErrTransport, err)
	}

	tracer.RecordError(span, out)
	if errors.Is(out, domain.ErrCancelled) {
		c.logger.Info("ollama chat aborted", "call_id", call.id, "model", call.model)
	} else {
		c.logger.Warn("ollama chat failed", "call_id", call.id, "model", call.model, "error", out)
	}
	return out
}

// timeoutDetail renders the limit the way users expect, e.g.
// "request timed out after 120 seconds".
func timeoutDetail(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("request timed out after %d seconds", int64(d/time.Second))
	}
	return fmt.Sprintf("request timed out after %s", d)
}

func newCallID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
