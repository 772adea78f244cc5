// Package generate assembles grounding prompts, invokes the generative
// model and validates the resulting answers.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ragstack/ragd/models"
	"github.com/ragstack/ragd/provider"
)

// ErrGeneration wraps any model invocation failure. No partial or fallback
// answer is ever produced.
var ErrGeneration = errors.New("response generation failed")

// RefusalSentence is the literal sentence the model is instructed to emit
// when the answer is not contained in the provided context.
const RefusalSentence = "I don't have enough information to answer this question based on the available documents."

const promptTemplate = `You are an expert assistant helping users find information from enterprise documents.
Use the following context to answer the question. If you cannot find the answer in the context, say so clearly.
Context:
%s
Question: %s
Instructions:
1. Answer based ONLY on the provided context
2. Cite specific sources when possible
3. If information is not in context, state: "%s"
4. Be concise but comprehensive
5. Include relevant quotes from source documents
Answer:`

// Chain produces grounded answers from retrieved context.
type Chain struct {
	llm    provider.LLM
	logger *log.Logger
}

// NewChain creates a generation chain over the given provider.
func NewChain(llm provider.LLM, logger *log.Logger) *Chain {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Chain{llm: llm, logger: logger}
}

// Generate assembles the prompt, makes exactly one blocking completion call
// and extracts the answer plus source descriptors. Sources are best-effort
// attribution: one per context chunk in retrieval order, regardless of
// whether the answer actually cited them.
func (c *Chain) Generate(ctx context.Context, query string, retrieved []models.Retrieved, includeSources bool) (models.GenerationResult, error) {
	prompt := fmt.Sprintf(promptTemplate, formatContext(retrieved), query, RefusalSentence)

	answer, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	result := models.GenerationResult{Answer: answer}
	if includeSources {
		result.Sources = extractSources(retrieved)
	}

	c.logger.Printf("generated response for query: %s", truncate(query, 50))
	return result, nil
}

// formatContext renders retrieved chunks as numbered blocks, preserving
// retrieval order so the model sees the most relevant context first.
func formatContext(retrieved []models.Retrieved) string {
	var blocks []string
	for i, r := range retrieved {
		source := r.Chunk.MetaString(models.MetaSourcePath, "Unknown")
		blocks = append(blocks, fmt.Sprintf("Document %d - %s\n%s\n", i+1, source, r.Chunk.Text))
	}
	return strings.Join(blocks, "\n")
}

func extractSources(retrieved []models.Retrieved) []models.SourceRef {
	sources := make([]models.SourceRef, 0, len(retrieved))
	for _, r := range retrieved {
		sources = append(sources, models.SourceRef{
			FileName:       r.Chunk.MetaString(models.MetaFileName, "Unknown"),
			SourcePath:     r.Chunk.MetaString(models.MetaSourcePath, "Unknown"),
			ChunkIndex:     r.Chunk.MetaInt(models.MetaChunkIndex, 0),
			RelevanceScore: r.Score,
		})
	}
	return sources
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
