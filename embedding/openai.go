package embedding

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/errors"
)

// OpenAIEmbedder implements Embedder over the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(conf *config.ModelConfig) *OpenAIEmbedder {
	client := openai.NewClient(
		option.WithAPIKey(conf.OpenAIAPIKey),
	)
	return &OpenAIEmbedder{
		client:    client,
		model:     conf.EmbeddingModel,
		dimension: conf.EmbeddingDimension,
	}
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if err := validateInputs(texts); err != nil {
		return nil, err
	}

	var input openai.EmbeddingNewParamsInputUnion
	input.OfArrayOfStrings = texts

	res, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrEmbedding, "provider call failed: %v", err)
	}
	if len(res.Data) != len(texts) {
		return nil, errors.Wrapf(errors.ErrEmbedding, "embedding count mismatch: got %d, expected %d", len(res.Data), len(texts))
	}

	embeddings := make([][]float32, len(res.Data))
	for i, emb := range res.Data {
		vec := make([]float32, len(emb.Embedding))
		for j, val := range emb.Embedding {
			vec[j] = float32(val)
		}
		if len(vec) != e.dimension {
			return nil, errors.Wrapf(errors.ErrEmbedding, "provider returned %d dimensions, configured %d", len(vec), e.dimension)
		}
		embeddings[i] = vec
	}

	return embeddings, nil
}
