// Package llm adapts third-party language-model SDKs behind a single
// narrow Provider interface, and builds the handful of structured prompts
// the rest of the engine needs: content classification, contradiction
// detection, claim extraction, and relationship inference (spec §4.1,
// §4.2, §4.5).
package llm

import (
	"context"

	apperrors "memory-engine/pkg/errors"
)

// Provider is the narrow surface every language-model backend implements.
// Modeled after the teacher's internal/service/llm.Provider interface,
// generalized only by renaming (the shape — Complete plus IsAvailable —
// is unchanged).
type Provider interface {
	Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error)
	IsAvailable() bool
}

// CompletionOptions configures a single completion request.
type CompletionOptions struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Format       string // "json" or "text"
}

// ErrProviderUnavailable is returned when no provider is configured or
// the configured provider reports itself unavailable.
var ErrProviderUnavailable = apperrors.UpstreamLlm("language model provider is not available", nil, 0)
