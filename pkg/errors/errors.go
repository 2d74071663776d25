// Package errors defines the typed error taxonomy shared by every engine
// and repository in the memory service. Errors carry a stable Kind string
// so that a transport boundary can map them to status codes without
// inspecting message text.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a stable, wire-safe error classification. It is distinct from
// Go's error type system: two errors of different concrete types can
// share a Kind, and callers should branch on Kind, not on type assertion.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindValidation        Kind = "VALIDATION"
	KindConflict          Kind = "CONFLICT"
	KindUpstreamLlm       Kind = "UPSTREAM_LLM"
	KindUpstreamEmbedding Kind = "UPSTREAM_EMBEDDING"
	KindUpstreamStorage   Kind = "UPSTREAM_STORAGE"
	KindDegraded          Kind = "DEGRADED"
	KindCancelled         Kind = "CANCELLED"
	KindInternal          Kind = "INTERNAL"
)

// AppError is the error type every engine, repository and adapter in this
// module returns. Message is safe to show to a caller; Err, when set,
// carries the underlying cause for logs and errors.Is/errors.As chains.
type AppError struct {
	Kind       Kind
	Message    string
	Err        error
	RetryAfter time.Duration // zero unless the caller should back off before retrying
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is and errors.As to see through to the cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructors. Each mirrors a row of the §7 kind taxonomy.

func NotFound(message string) error {
	return &AppError{Kind: KindNotFound, Message: message}
}

func Validation(message string) error {
	return &AppError{Kind: KindValidation, Message: message}
}

func Conflict(message string) error {
	return &AppError{Kind: KindConflict, Message: message}
}

func UpstreamLlm(message string, err error, retryAfter time.Duration) error {
	return &AppError{Kind: KindUpstreamLlm, Message: message, Err: err, RetryAfter: retryAfter}
}

func UpstreamEmbedding(message string, err error, retryAfter time.Duration) error {
	return &AppError{Kind: KindUpstreamEmbedding, Message: message, Err: err, RetryAfter: retryAfter}
}

func UpstreamStorage(message string, err error) error {
	return &AppError{Kind: KindUpstreamStorage, Message: message, Err: err}
}

func Degraded(message string, err error) error {
	return &AppError{Kind: KindDegraded, Message: message, Err: err}
}

func Cancelled(message string) error {
	return &AppError{Kind: KindCancelled, Message: message}
}

func Internal(message string, err error) error {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// Wrap preserves Kind when wrapping an existing AppError, otherwise
// produces an Internal error around the cause.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Kind:       appErr.Kind,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:        appErr.Err,
			RetryAfter: appErr.RetryAfter,
		}
	}
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

func IsNotFound(err error) bool   { return Is(err, KindNotFound) }
func IsValidation(err error) bool { return Is(err, KindValidation) }
func IsConflict(err error) bool   { return Is(err, KindConflict) }
func IsUpstream(err error) bool {
	return Is(err, KindUpstreamLlm) || Is(err, KindUpstreamEmbedding) || Is(err, KindUpstreamStorage)
}
func IsDegraded(err error) bool  { return Is(err, KindDegraded) }
func IsCancelled(err error) bool { return Is(err, KindCancelled) }
func IsInternal(err error) bool  { return Is(err, KindInternal) }

// RetryAfter extracts the suggested backoff, if any, from err.
func RetryAfter(err error) (time.Duration, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.RetryAfter > 0 {
		return appErr.RetryAfter, true
	}
	return 0, false
}
