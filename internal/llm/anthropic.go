package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	apperrors "memory-engine/pkg/errors"
)

// AnthropicProvider wraps github.com/anthropics/anthropic-sdk-go behind
// Provider. Grounded on the Messages.New call shape in the reference
// manifold client, trimmed to the single-turn, non-streaming completion
// this engine needs (no tool-use, no multi-turn history).
type AnthropicProvider struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
	available bool
	logger    *zap.Logger
}

// NewAnthropicProvider constructs a provider bound to apiKey/model.
// available is false when apiKey is empty, so a missing key degrades to
// the configured fallback rather than attempting a doomed request
// (spec §4.1's failure semantics).
func NewAnthropicProvider(apiKey, model string, logger *zap.Logger) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	apiKey = strings.TrimSpace(apiKey)
	return &AnthropicProvider{
		sdk:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
		available: apiKey != "",
		logger:    logger,
	}
}

func (p *AnthropicProvider) IsAvailable() bool { return p.available }

// Complete issues a single-turn completion request.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	if !p.available {
		return "", ErrProviderUnavailable
	}
	maxTokens := p.maxTokens
	if options.MaxTokens > 0 {
		maxTokens = int64(options.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if options.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.SystemPrompt}}
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		p.logger.Warn("anthropic completion failed", zap.Error(err), zap.String("model", p.model))
		return "", apperrors.UpstreamLlm("anthropic completion failed", err, 0)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
