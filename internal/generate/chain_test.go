package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ragstack/ragd/models"
)

type stubLLM struct {
	answer string
	err    error
	prompt string
}

func (s *stubLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.answer, s.err
}

func (s *stubLLM) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

func retrievedFixture() []models.Retrieved {
	return []models.Retrieved{
		{
			Chunk: models.Chunk{Text: "The refund window is 30 days.", Metadata: map[string]interface{}{
				models.MetaFileName:   "policy.txt",
				models.MetaSourcePath: "/docs/policy.txt",
				models.MetaChunkIndex: 2,
			}},
			Score: 0.91,
		},
		{
			Chunk: models.Chunk{Text: "Contact support for exceptions.", Metadata: map[string]interface{}{
				models.MetaFileName:   "faq.txt",
				models.MetaSourcePath: "/docs/faq.txt",
				models.MetaChunkIndex: 0,
			}},
			Score: 0.78,
		},
	}
}

func TestGeneratePromptAssembly(t *testing.T) {
	llm := &stubLLM{answer: "The refund window is 30 days."}
	c := NewChain(llm, nil)

	_, err := c.Generate(context.Background(), "What is the refund window?", retrievedFixture(), true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.Contains(llm.prompt, "Document 1 - /docs/policy.txt") {
		t.Fatalf("prompt missing first context block:\n%s", llm.prompt)
	}
	if !strings.Contains(llm.prompt, "Document 2 - /docs/faq.txt") {
		t.Fatalf("prompt missing second context block:\n%s", llm.prompt)
	}
	if !strings.Contains(llm.prompt, "Question: What is the refund window?") {
		t.Fatalf("prompt missing question:\n%s", llm.prompt)
	}
	if !strings.Contains(llm.prompt, RefusalSentence) {
		t.Fatalf("prompt missing refusal instruction:\n%s", llm.prompt)
	}
	if strings.Index(llm.prompt, "Document 1") > strings.Index(llm.prompt, "Document 2") {
		t.Fatalf("context blocks out of retrieval order")
	}
}

func TestGenerateSourcesInRetrievalOrder(t *testing.T) {
	llm := &stubLLM{answer: "answer"}
	c := NewChain(llm, nil)

	result, err := c.Generate(context.Background(), "q", retrievedFixture(), true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(result.Sources))
	}
	first := result.Sources[0]
	if first.FileName != "policy.txt" || first.ChunkIndex != 2 || first.RelevanceScore != 0.91 {
		t.Fatalf("unexpected first source: %+v", first)
	}
	if result.Sources[1].FileName != "faq.txt" {
		t.Fatalf("sources out of order: %+v", result.Sources)
	}
}

func TestGenerateWithoutSources(t *testing.T) {
	llm := &stubLLM{answer: "answer"}
	c := NewChain(llm, nil)

	result, err := c.Generate(context.Background(), "q", retrievedFixture(), false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Sources != nil {
		t.Fatalf("expected no sources, got %+v", result.Sources)
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("rate limited")}
	c := NewChain(llm, nil)

	_, err := c.Generate(context.Background(), "q", retrievedFixture(), true)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateMissingMetadataFallsBack(t *testing.T) {
	llm := &stubLLM{answer: "answer"}
	c := NewChain(llm, nil)

	retrieved := []models.Retrieved{{Chunk: models.Chunk{Text: "bare chunk"}, Score: 0.5}}
	result, err := c.Generate(context.Background(), "q", retrieved, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Sources[0].FileName != "Unknown" || result.Sources[0].SourcePath != "Unknown" {
		t.Fatalf("expected Unknown fallbacks, got %+v", result.Sources[0])
	}
}
