package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrConfigLoad = fmt.Errorf("failed to load configuration")

	// Stream / request lifecycle errors.
	ErrCancelled     = fmt.Errorf("request cancelled")
	ErrTransport     = fmt.Errorf("transport error")
	ErrMalformedLine = fmt.Errorf("malformed stream line")

	// Resilience errors.
	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")
	ErrCircuitOpen = fmt.Errorf("circuit open")

	// Embedding / history errors.
	ErrEmbeddingFailed      = fmt.Errorf("embedding generation failed")
	ErrHistoryStore         = fmt.Errorf("history store failed")
	ErrConversationNotFound = fmt.Errorf("conversation: %w", ErrNotFound)
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Client.GenerateChat")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "chat", "models"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
// Cancellation is never retryable: the caller asked for it.
func IsRetryableError(err error) bool {
	if errors.Is(err, ErrCancelled) {
		return false
	}
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrProviderError) ||
		errors.Is(err, ErrCircuitOpen)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeCancelled          ErrorCode = "CANCELLED"
	CodeTransport          ErrorCode = "TRANSPORT"
	CodeMalformedLine      ErrorCode = "MALFORMED_LINE"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeCircuitOpen        ErrorCode = "CIRCUIT_OPEN"
	CodeEmbeddingFailed    ErrorCode = "EMBEDDING_FAILED"
	CodeHistoryStore       ErrorCode = "HISTORY_STORE"
	CodeConversationNotFnd ErrorCode = "CONVERSATION_NOT_FOUND"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeChatTimeout    ErrorCode = "CHAT_TIMEOUT"
	CodeModelNotFound  ErrorCode = "MODEL_NOT_FOUND"
	CodeModelsProvider ErrorCode = "MODELS_PROVIDER"

	// Category error codes: fallback codes when no subsystem-specific code matches.
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	// Category sentinels (fallback codes).
	ErrNotFound:      CodeNotFound,
	ErrTimeout:       CodeTimeout,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,

	// Active sentinels.
	ErrConfigLoad:           CodeConfigLoad,
	ErrCancelled:            CodeCancelled,
	ErrTransport:            CodeTransport,
	ErrMalformedLine:        CodeMalformedLine,
	ErrRateLimit:            CodeRateLimit,
	ErrAuthInvalid:          CodeAuthInvalid,
	ErrCircuitOpen:          CodeCircuitOpen,
	ErrEmbeddingFailed:      CodeEmbeddingFailed,
	ErrHistoryStore:         CodeHistoryStore,
	ErrConversationNotFound: CodeConversationNotFnd,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"models": CodeModelNotFound,
	},
	ErrTimeout: {
		"chat": CodeChatTimeout,
	},
	ErrProviderError: {
		"models":    CodeModelsProvider,
		"embedding": CodeEmbeddingFailed,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// For DomainErrors with a SubSystem, it also checks the subSystemCodeMap
// to resolve category sentinels to specific codes.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Walk the error chain, most specific sentinels first so that wrapped
	// category sentinels do not shadow them.
	for _, sentinel := range codePriority {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}

	return CodeUnknown
}

// codePriority orders sentinels for chain matching. Map iteration order is
// random, so the walk needs a fixed order.
var codePriority = []error{
	ErrCancelled,
	ErrConversationNotFound,
	ErrRateLimit,
	ErrAuthInvalid,
	ErrCircuitOpen,
	ErrMalformedLine,
	ErrEmbeddingFailed,
	ErrHistoryStore,
	ErrConfigLoad,
	ErrTimeout,
	ErrNotFound,
	ErrInvalidInput,
	ErrProviderError,
	ErrTransport,
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
