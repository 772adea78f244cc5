// Package index abstracts the similarity index used for storing and
// retrieving chunks by semantic relevance. Exactly one backend is active at
// a time, selected by configuration; adding a backend never changes callers.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/models"
)

// ErrRetrieval wraps any backend communication failure. The gateway performs
// no retries; retry policy belongs to the transport layer.
var ErrRetrieval = errors.New("retrieval failed")

// Embedder is the external embedding capability a vector backend needs.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the capability set over the similarity index.
//
// AddDocuments returns unique, stable ids in input order. SimilaritySearch
// returns at most k results ordered by descending score; filter restricts
// results to chunks whose metadata equals the given values; no match is an
// empty result, not an error. DeleteDocuments is idempotent.
type Index interface {
	AddDocuments(ctx context.Context, chunks []models.Chunk) ([]string, error)
	SimilaritySearch(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.Retrieved, error)
	DeleteDocuments(ctx context.Context, ids []string) error
}

// New builds the configured backend.
func New(cfg config.IndexConfig, embedder Embedder, logger *log.Logger) (Index, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	switch cfg.Driver {
	case "memory":
		return NewMemoryIndex(embedder, logger), nil
	case "chroma":
		return NewChromaIndex(cfg.Chroma, embedder, logger), nil
	case "pgvector":
		return NewPgvectorIndex(cfg.Pgvector, embedder, logger)
	case "bleve":
		return NewBleveIndex(cfg.Bleve, logger)
	default:
		return nil, fmt.Errorf("unsupported index driver: %q", cfg.Driver)
	}
}

// matchesFilter reports whether every filter key equals the corresponding
// metadata value. Numeric values are compared loosely because JSON
// round-trips widen ints to float64.
func matchesFilter(meta map[string]interface{}, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
