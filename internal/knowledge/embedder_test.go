package knowledge

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeEmbeddingClient struct {
	calls   [][]string
	failure error
}

func (f *fakeEmbeddingClient) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string{}, inputs...))
	if f.failure != nil {
		return nil, f.failure
	}
	vectors := make([][]float32, len(inputs))
	for i, input := range inputs {
		// Encode the input length so order can be checked on the way out.
		vectors[i] = []float32{float32(len(input))}
	}
	return vectors, nil
}

func TestEmbedQueryTruncatesLongText(t *testing.T) {
	client := &fakeEmbeddingClient{}
	embedder, err := NewEmbedder(client, WithMaxChars(10))
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	if _, err := embedder.EmbedQuery(context.Background(), strings.Repeat("a", 25)); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}

	if len(client.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(client.calls))
	}
	sent := client.calls[0][0]
	if len(sent) != 10 {
		t.Fatalf("expected text truncated to 10 chars, got %d", len(sent))
	}
}

func TestTruncateIsIdempotent(t *testing.T) {
	embedder, err := NewEmbedder(&fakeEmbeddingClient{}, WithMaxChars(8))
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	once := embedder.truncate("añejo tempranillo reserva")
	twice := embedder.truncate(once)
	if once != twice {
		t.Fatalf("truncation not idempotent: %q vs %q", once, twice)
	}
}

func TestTruncateCutsOnRuneBoundaries(t *testing.T) {
	embedder, err := NewEmbedder(&fakeEmbeddingClient{}, WithMaxChars(3))
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	got := embedder.truncate("ñandú")
	if got != "ñan" {
		t.Fatalf("expected %q, got %q", "ñan", got)
	}
}

func TestEmbedTextsSplitsIntoBatches(t *testing.T) {
	client := &fakeEmbeddingClient{}
	embedder, err := NewEmbedder(client, WithBatchSize(100))
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	texts := make([]string, 101)
	for i := range texts {
		texts[i] = fmt.Sprintf("entry %d", i)
	}

	vectors, err := embedder.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}

	if len(client.calls) != 2 {
		t.Fatalf("expected 2 API calls for 101 inputs, got %d", len(client.calls))
	}
	if len(client.calls[0]) != 100 || len(client.calls[1]) != 1 {
		t.Fatalf("expected batches of 100 and 1, got %d and %d", len(client.calls[0]), len(client.calls[1]))
	}
	if len(vectors) != 101 {
		t.Fatalf("expected 101 vectors, got %d", len(vectors))
	}
}

func TestEmbedTextsPreservesOrderAcrossBatches(t *testing.T) {
	client := &fakeEmbeddingClient{}
	embedder, err := NewEmbedder(client, WithBatchSize(2))
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := embedder.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}

	for i, text := range texts {
		if vectors[i][0] != float32(len(text)) {
			t.Fatalf("vector %d out of order: got %v for input %q", i, vectors[i], text)
		}
	}
}

func TestIndexingTextJoinsTitleQuestionsAndContent(t *testing.T) {
	got := IndexingText("Terraza", []string{"¿Tenéis terraza?", "  ", "¿Se puede comer fuera?"}, "Terraza exterior con 12 mesas.")
	want := "Terraza\n¿Tenéis terraza?\n¿Se puede comer fuera?\nTerraza exterior con 12 mesas."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestIndexingTextWithoutQuestions(t *testing.T) {
	got := IndexingText("Horario", nil, "Abrimos a las 13h.")
	if got != "Horario\nAbrimos a las 13h." {
		t.Fatalf("unexpected composite: %q", got)
	}
}

func TestEmbedTextsRejectsEmptyInput(t *testing.T) {
	embedder, err := NewEmbedder(&fakeEmbeddingClient{})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if _, err := embedder.EmbedTexts(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
