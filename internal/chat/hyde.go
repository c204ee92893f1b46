package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"tableflow/maitre/pkg/llm"
)

const (
	hydeTimeout            = 15 * time.Second
	defaultHydeMaxTokens   = 120
	defaultHydeTemperature = 0.1
)

const hydePrompt = `You work for a restaurant's guest services team. Write a short, factual paragraph that could appear in the restaurant's FAQ as the answer to this guest question: %s

Write only the answer, no preamble.`

// HyDEGenerator produces Hypothetical Document Embeddings. It asks a utility
// LLM for a plausible answer to the guest's question and embeds that answer.
// The resulting vector sits closer in embedding space to real knowledge
// entries than the question itself would.
type HyDEGenerator struct {
	llm         llm.Provider
	embedder    QueryEmbedder
	maxTokens   int
	temperature float64
}

// NewHyDEGenerator creates a HyDE generator. The generation stays short and
// near-deterministic: maxTokens defaults to 120 and temperature to 0.1.
func NewHyDEGenerator(provider llm.Provider, embedder QueryEmbedder, maxTokens int, temperature float64) *HyDEGenerator {
	if maxTokens <= 0 {
		maxTokens = defaultHydeMaxTokens
	}
	if temperature <= 0 {
		temperature = defaultHydeTemperature
	}
	return &HyDEGenerator{
		llm:         provider,
		embedder:    embedder,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// GenerateAndEmbed generates a hypothetical answer and returns its embedding.
// Returns (nil, nil) when the model produced nothing usable so the caller can
// fall back to the direct results.
func (h *HyDEGenerator) GenerateAndEmbed(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, hydeTimeout)
	defer cancel()

	temperature := h.temperature
	prompt := strings.Replace(hydePrompt, "%s", query, 1)
	stream, err := h.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   h.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var hypothetical strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		hypothetical.WriteString(chunk.Content)
	}

	hypoText := strings.TrimSpace(hypothetical.String())
	if hypoText == "" {
		return nil, nil
	}

	return h.embedder.EmbedQuery(ctx, hypoText)
}
