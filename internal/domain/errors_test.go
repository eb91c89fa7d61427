package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Client.GenerateChat", ErrTimeout, "request timed out after 5 seconds")
	want := "Client.GenerateChat: request timed out after 5 seconds: operation timed out"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Client.GenerateChat", ErrCancelled, "")
	want := "Client.GenerateChat: request cancelled"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("ChatService.Send", ErrConversationNotFound, "01HX")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Error("expected errors.Is to match ErrConversationNotFound")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("ErrConversationNotFound should wrap ErrNotFound")
	}
}

func TestWrapOp(t *testing.T) {
	assert.Nil(t, WrapOp("op", nil))

	err := WrapOp("Client.Version", ErrTransport)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "Client.Version: transport error", err.Error())
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrTimeout, true},
		{fmt.Errorf("wrapped: %w", ErrRateLimit), true},
		{ErrCircuitOpen, true},
		{ErrProviderError, true},
		{ErrCancelled, false},
		{errors.Join(ErrCancelled, ErrTimeout), false},
		{ErrInvalidInput, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryableError(tt.err); got != tt.want {
			t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"bare sentinel", ErrCancelled, CodeCancelled},
		{"chat timeout", NewSubSystemError("chat", "Client.GenerateChat", ErrTimeout, ""), CodeChatTimeout},
		{"generic timeout", NewDomainError("Client.Version", ErrTimeout, ""), CodeTimeout},
		{"model not found", NewSubSystemError("models", "Client.ShowModelInformation", ErrNotFound, "llama9"), CodeModelNotFound},
		{"models provider", NewSubSystemError("models", "Client.PullModelStream", ErrProviderError, "boom"), CodeModelsProvider},
		{"conversation over not found", fmt.Errorf("load: %w", ErrConversationNotFound), CodeConversationNotFnd},
		{"status error chain", errors.Join(ErrTransport, ErrRateLimit), CodeRateLimit},
		{"transport only", fmt.Errorf("read: %w", ErrTransport), CodeTransport},
		{"unknown", errors.New("x"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

func TestEveryCodePrioritySentinelHasCode(t *testing.T) {
	for _, s := range codePriority {
		_, ok := errorCodeMap[s]
		assert.True(t, ok, "missing code for %v", s)
	}
}
