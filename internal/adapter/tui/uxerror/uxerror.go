// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the CLI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/tui/theme"
	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Ollama Unreachable"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for the terminal.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(theme.Failure(theme.Bold.Render(fe.Title)))
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  " + theme.TextMuted.Render("Suggestions:"))
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

// Order matters: status errors wrap both ErrTransport and their category,
// so categories are checked before the generic transport patterns.
var patterns = []errorPattern{
	{
		match:   is(domain.ErrCancelled),
		produce: constantError("Cancelled", "The request was aborted before it finished.", nil),
	},
	{
		match: is(domain.ErrTimeout),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Request Timed Out",
				Message: detailOf(err, "The request took too long to complete."),
				Hints:   []string{"Raise chat.timeout in config or CYSINFO_CHAT_TIMEOUT", "Check that the model fits in memory", "Warm the model up with 'cysinfo health --warmup'"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match:   is(domain.ErrCircuitOpen),
		produce: constantError("Service Temporarily Disabled", "Too many consecutive failures; requests are paused.", []string{"Wait for circuit_breaker.timeout to elapse", "Check the Ollama server logs"}),
	},
	{
		match:   is(domain.ErrRateLimit),
		produce: constantError("Rate Limited", "Too many requests were sent.", []string{"Wait a moment before retrying", "Lower rate_limit.requests_per_second"}),
	},
	{
		match:   is(domain.ErrAuthInvalid),
		produce: constantError("Authentication Failed", "The server rejected the request credentials.", []string{"Check the proxy in front of Ollama"}),
	},
	{
		match: is(domain.ErrConversationNotFound),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Unknown Session",
				Message: "No conversation with that ID is stored.",
				Hints:   []string{"Omit --session to start a new conversation", "List sessions with 'cysinfo sessions'"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: is(domain.ErrNotFound),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Model Not Found",
				Message: detailOf(err, "The requested model is not available locally."),
				Hints:   []string{"Pull it with 'cysinfo models pull NAME'", "List local models with 'cysinfo models list'"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match:   is(domain.ErrInvalidInput),
		produce: func(err error) FriendlyError { return FriendlyError{Title: "Invalid Request", Message: detailOf(err, err.Error()), Raw: err.Error()} },
	},
	{
		match:   is(domain.ErrEmbeddingFailed),
		produce: constantError("Embedding Failed", "The embeddings endpoint returned no usable vector.", []string{"Check embedding.model in config", "Pull the embedding model first"}),
	},
	{
		match:   containsAny("connection refused", "no such host", "dial tcp"),
		produce: constantError("Ollama Unreachable", "Could not connect to the Ollama server.", []string{"Start it with 'ollama serve'", "Check ollama.base_url or CYSINFO_OLLAMA_BASE_URL"}),
	},
	{
		match:   is(domain.ErrProviderError),
		produce: constantError("Server Error", "The Ollama server failed to handle the request.", []string{"Check the Ollama server logs", "Try again"}),
	},
	{
		match:   is(domain.ErrTransport),
		produce: constantError("Connection Error", "The response stream was interrupted.", []string{"Try again", "Check the network between this host and the server"}),
	},
	{
		match:   is(domain.ErrConfigLoad),
		produce: constantError("Configuration Error", "The configuration could not be loaded.", []string{"Check the file passed with --config"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with CYSINFO_LOGGER_LEVEL=debug for more details"},
		Raw:     err.Error(),
	}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// detailOf returns the Detail of the outermost DomainError, or fallback.
func detailOf(err error, fallback string) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return fallback
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
