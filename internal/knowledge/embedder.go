package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tableflow/maitre/pkg/llm"
)

const (
	// defaultMaxChars caps each input before it hits the embeddings API.
	// OpenAI averages ~4 chars per BPE token, so 8000 chars stays well under
	// the 8192-token model limit even for dense text.
	defaultMaxChars = 8000

	// defaultBatchSize is the maximum number of inputs per embeddings call.
	defaultBatchSize = 100
)

type EmbedderOption func(*Embedder)

// Embedder wraps the raw embeddings client with input truncation and batch
// splitting. Output order always matches input order.
type Embedder struct {
	client    llm.EmbeddingClient
	maxChars  int
	batchSize int
}

func NewEmbedder(client llm.EmbeddingClient, opts ...EmbedderOption) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("embedding client is required")
	}
	embedder := &Embedder{
		client:    client,
		maxChars:  defaultMaxChars,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(embedder)
	}
	if embedder.maxChars <= 0 {
		return nil, errors.New("max chars must be positive")
	}
	if embedder.batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	return embedder, nil
}

func WithMaxChars(maxChars int) EmbedderOption {
	return func(e *Embedder) {
		e.maxChars = maxChars
	}
}

func WithBatchSize(size int) EmbedderOption {
	return func(e *Embedder) {
		e.batchSize = size
	}
}

// EmbedQuery embeds a single text, truncating it first.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	text = e.truncate(text)
	if text == "" {
		return nil, errors.New("text is required")
	}
	vectors, err := e.client.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedTexts embeds many texts, splitting into API batches. The returned
// vectors are positionally aligned with the inputs.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("texts are required")
	}
	truncated := make([]string, len(texts))
	for i, text := range texts {
		truncated[i] = e.truncate(text)
	}

	all := make([][]float32, 0, len(truncated))
	for start := 0; start < len(truncated); start += e.batchSize {
		end := start + e.batchSize
		if end > len(truncated) {
			end = len(truncated)
		}
		batch, err := e.client.Embed(ctx, truncated[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", start/e.batchSize, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding mismatch: sent %d, got %d", end-start, len(batch))
		}
		all = append(all, batch...)
	}
	return all, nil
}

// IndexingText builds the composite text embedded for an entry: title,
// contextual question variants, then the body. The composite only exists to
// give the vector more surface to match paraphrased questions; entry content
// alone is what readers ever see.
func IndexingText(title string, questions []string, content string) string {
	parts := make([]string, 0, len(questions)+2)
	parts = append(parts, strings.TrimSpace(title))
	for _, question := range questions {
		if question = strings.TrimSpace(question); question != "" {
			parts = append(parts, question)
		}
	}
	parts = append(parts, strings.TrimSpace(content))
	return strings.Join(parts, "\n")
}

// truncate caps text at the configured character limit, cutting on rune
// boundaries. Applying it twice yields the same result.
func (e *Embedder) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= e.maxChars {
		return text
	}
	return string(runes[:e.maxChars])
}
