package embedding

import (
	"context"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"memory-engine/internal/domain/shared"
	apperrors "memory-engine/pkg/errors"
)

const (
	defaultModel      = "text-embedding-3-small"
	defaultDimensions = 1536
	maxBatchSize      = 2048
)

// OpenAIProvider wraps the OpenAI embeddings API. Grounded on
// _examples/haivivi-giztoy/go/pkg/embed/openai.go's Embedder
// implementation, ported to openai-go/v2 and this engine's
// shared.EmbeddingVector value object.
type OpenAIProvider struct {
	sdk        sdk.Client
	model      string
	dimensions int
	available  bool
	logger     *zap.Logger
}

func NewOpenAIProvider(apiKey, model string, dimensions int, logger *zap.Logger) *OpenAIProvider {
	if model == "" {
		model = defaultModel
	}
	if dimensions == 0 {
		dimensions = defaultDimensions
	}
	return &OpenAIProvider{
		sdk:        sdk.NewClient(option.WithAPIKey(apiKey)),
		model:      model,
		dimensions: dimensions,
		available:  apiKey != "",
		logger:     logger,
	}
}

func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) (shared.EmbeddingVector, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return shared.EmbeddingVector{}, err
	}
	return vecs[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]shared.EmbeddingVector, error) {
	if !p.available {
		return nil, ErrProviderUnavailable
	}
	result := make([]shared.EmbeddingVector, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))
		batch, err := p.callAPI(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

func (p *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([]shared.EmbeddingVector, error) {
	params := sdk.EmbeddingNewParams{
		Model:          sdk.EmbeddingModel(p.model),
		Input:          sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     sdk.Int(int64(p.dimensions)),
		EncodingFormat: sdk.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := p.sdk.Embeddings.New(ctx, params)
	if err != nil {
		p.logger.Warn("openai embedding failed", zap.Error(err), zap.String("model", p.model))
		return nil, apperrors.UpstreamEmbedding("openai embedding failed", err, 0)
	}

	vecs := make([]shared.EmbeddingVector, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || int(idx) >= len(texts) {
			return nil, apperrors.UpstreamEmbedding("embedding response index out of range", nil, 0)
		}
		vecs[idx] = shared.NewEmbeddingVector(float64sToFloat32s(item.Embedding))
	}
	for i, v := range vecs {
		if v.Dimensions() == 0 {
			return nil, apperrors.UpstreamEmbedding("missing embedding in response", nil, 0)
		}
		_ = i
	}
	return vecs, nil
}

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
