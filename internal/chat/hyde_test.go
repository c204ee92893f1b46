package chat

import (
	"context"
	"strings"
	"testing"

	"tableflow/maitre/pkg/llm"
)

type recordingEmbedder struct {
	texts []string
}

func (r *recordingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	r.texts = append(r.texts, text)
	return []float32{0.5}, nil
}

func TestGenerateAndEmbedPassesGenerationSettings(t *testing.T) {
	provider := &fakeProvider{scripts: [][]llm.Chunk{
		{{Content: "La terraza está abierta de marzo a octubre."}},
	}}
	embedder := &recordingEmbedder{}

	generator := NewHyDEGenerator(provider, embedder, 120, 0.1)
	vec, err := generator.GenerateAndEmbed(context.Background(), "¿Tenéis terraza?")
	if err != nil {
		t.Fatalf("GenerateAndEmbed: %v", err)
	}
	if vec == nil {
		t.Fatal("expected a vector")
	}

	req := provider.requests[0]
	if req.MaxTokens != 120 {
		t.Fatalf("expected max tokens 120, got %d", req.MaxTokens)
	}
	if req.Temperature == nil || *req.Temperature != 0.1 {
		t.Fatalf("expected temperature 0.1, got %v", req.Temperature)
	}
	if !strings.Contains(req.Messages[0].Content, "¿Tenéis terraza?") {
		t.Fatalf("expected question embedded in prompt, got %q", req.Messages[0].Content)
	}
	if len(embedder.texts) != 1 || embedder.texts[0] != "La terraza está abierta de marzo a octubre." {
		t.Fatalf("expected hypothetical answer embedded, got %v", embedder.texts)
	}
}

func TestGenerateAndEmbedEmptyGenerationReturnsNil(t *testing.T) {
	provider := &fakeProvider{scripts: [][]llm.Chunk{
		{{Content: "   "}},
	}}
	embedder := &recordingEmbedder{}

	generator := NewHyDEGenerator(provider, embedder, 0, 0)
	vec, err := generator.GenerateAndEmbed(context.Background(), "pregunta")
	if err != nil {
		t.Fatalf("GenerateAndEmbed: %v", err)
	}
	if vec != nil {
		t.Fatalf("expected nil vector for empty generation, got %v", vec)
	}
	if len(embedder.texts) != 0 {
		t.Fatalf("expected no embed call for empty generation, got %v", embedder.texts)
	}
}

func TestNewHyDEGeneratorAppliesDefaults(t *testing.T) {
	generator := NewHyDEGenerator(&fakeProvider{scripts: [][]llm.Chunk{nil}}, &recordingEmbedder{}, 0, 0)
	if generator.maxTokens != defaultHydeMaxTokens {
		t.Fatalf("expected default max tokens %d, got %d", defaultHydeMaxTokens, generator.maxTokens)
	}
	if generator.temperature != defaultHydeTemperature {
		t.Fatalf("expected default temperature %v, got %v", defaultHydeTemperature, generator.temperature)
	}
}
