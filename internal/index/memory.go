package index

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ragstack/ragd/models"
)

// MemoryIndex is an in-process brute-force cosine similarity backend. It
// suits tests and small corpora; everything is lost on restart.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	logger   *log.Logger
	ids      []string
	chunks   []models.Chunk
	vectors  [][]float32
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(embedder Embedder, logger *log.Logger) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, logger: logger}
}

// AddDocuments embeds and stores the chunks, returning one id per chunk in
// input order.
func (m *MemoryIndex) AddDocuments(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := m.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding documents: %v", ErrRetrieval, err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", ErrRetrieval, len(vecs), len(chunks))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		id := uuid.NewString()
		ids[i] = id
		m.ids = append(m.ids, id)
		m.chunks = append(m.chunks, c)
		m.vectors = append(m.vectors, vecs[i])
	}
	m.logger.Printf("added %d documents to memory index", len(chunks))
	return ids, nil
}

// SimilaritySearch embeds the query and scores every stored vector.
func (m *MemoryIndex) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.Retrieved, error) {
	vecs, err := m.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for query", ErrRetrieval, len(vecs))
	}
	qv := vecs[0]

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []models.Retrieved
	for i, v := range m.vectors {
		if len(filter) > 0 && !matchesFilter(m.chunks[i].Metadata, filter) {
			continue
		}
		results = append(results, models.Retrieved{
			Chunk: m.chunks[i],
			Score: cosineSimilarity(qv, v),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteDocuments removes stored chunks by id. Absent ids are ignored.
func (m *MemoryIndex) DeleteDocuments(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var keptIDs []string
	var keptChunks []models.Chunk
	var keptVectors [][]float32
	for i, id := range m.ids {
		if drop[id] {
			continue
		}
		keptIDs = append(keptIDs, id)
		keptChunks = append(keptChunks, m.chunks[i])
		keptVectors = append(keptVectors, m.vectors[i])
	}
	m.ids, m.chunks, m.vectors = keptIDs, keptChunks, keptVectors
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
