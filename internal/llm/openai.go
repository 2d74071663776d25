package llm

import (
	"context"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	apperrors "memory-engine/pkg/errors"
)

// OpenAIProvider wraps github.com/openai/openai-go/v2 behind Provider,
// the LLM_PROVIDER=openai alternative to AnthropicProvider (spec §4
// ambient config; either backend serves classification, contradiction
// detection, claim extraction, and relationship inference identically).
type OpenAIProvider struct {
	sdk       sdk.Client
	model     string
	available bool
	logger    *zap.Logger
}

func NewOpenAIProvider(apiKey, model string, logger *zap.Logger) *OpenAIProvider {
	if model == "" {
		model = "gpt-4-turbo-preview"
	}
	apiKey = strings.TrimSpace(apiKey)
	return &OpenAIProvider{
		sdk:       sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		available: apiKey != "",
		logger:    logger,
	}
}

func (p *OpenAIProvider) IsAvailable() bool { return p.available }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	if !p.available {
		return "", ErrProviderUnavailable
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if options.SystemPrompt != "" {
		messages = append(messages, sdk.SystemMessage(options.SystemPrompt))
	}
	messages = append(messages, sdk.UserMessage(prompt))

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(p.model),
		Messages: messages,
	}
	if options.Format == "json" {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{},
		}
	}

	comp, err := p.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		p.logger.Warn("openai completion failed", zap.Error(err), zap.String("model", p.model))
		return "", apperrors.UpstreamLlm("openai completion failed", err, 0)
	}
	if len(comp.Choices) == 0 {
		return "", nil
	}
	return comp.Choices[0].Message.Content, nil
}
