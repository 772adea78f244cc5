package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/models"
)

// metaJSONKey carries the full chunk metadata through chroma, which only
// accepts scalar metadata values itself.
const metaJSONKey = "_meta"

// ChromaIndex talks to a Chroma-style vector index over its REST API.
type ChromaIndex struct {
	baseURL    string
	collection string
	embedder   Embedder
	logger     *log.Logger
	httpClient *http.Client

	mu           sync.Mutex
	collectionID string
}

// NewChromaIndex creates a client for the configured chroma endpoint. The
// collection is created lazily on first use.
func NewChromaIndex(cfg config.ChromaConfig, embedder Embedder, logger *log.Logger) *ChromaIndex {
	return &ChromaIndex{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		collection: cfg.Collection,
		embedder:   embedder,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AddDocuments embeds the chunks and stores them in the collection.
func (c *ChromaIndex) AddDocuments(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vecs, err := c.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding documents: %v", ErrRetrieval, err)
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]interface{}, len(chunks))
	for i, ch := range chunks {
		ids[i] = uuid.NewString()
		metadatas[i] = flattenMetadata(ch.Metadata)
	}

	body := map[string]interface{}{
		"ids":        ids,
		"embeddings": vecs,
		"documents":  texts,
		"metadatas":  metadatas,
	}
	if err := c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/add", collID), body, nil); err != nil {
		return nil, fmt.Errorf("%w: add documents: %v", ErrRetrieval, err)
	}
	c.logger.Printf("added %d documents to chroma collection %s", len(chunks), c.collection)
	return ids, nil
}

// SimilaritySearch queries the collection. Chroma returns distances; score
// is reported as 1 - distance.
func (c *ChromaIndex) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.Retrieved, error) {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	vecs, err := c.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for query", ErrRetrieval, len(vecs))
	}

	body := map[string]interface{}{
		"query_embeddings": vecs,
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(filter) > 0 {
		body["where"] = filter
	}

	var out struct {
		IDs       [][]string                 `json:"ids"`
		Documents [][]string                 `json:"documents"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
		Distances [][]float64                `json:"distances"`
	}
	if err := c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/query", collID), body, &out); err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", ErrRetrieval, err)
	}
	if len(out.Documents) == 0 {
		return nil, nil
	}

	var results []models.Retrieved
	for i, doc := range out.Documents[0] {
		var meta map[string]interface{}
		if i < len(out.Metadatas[0]) {
			meta = unflattenMetadata(out.Metadatas[0][i])
		}
		score := 0.0
		if i < len(out.Distances[0]) {
			score = 1.0 - out.Distances[0][i]
		}
		results = append(results, models.Retrieved{
			Chunk: models.Chunk{Text: doc, Metadata: meta},
			Score: score,
		})
	}
	return results, nil
}

// DeleteDocuments removes ids from the collection; unknown ids are ignored
// by chroma, so the call is idempotent.
func (c *ChromaIndex) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	body := map[string]interface{}{"ids": ids}
	if err := c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/delete", collID), body, nil); err != nil {
		return fmt.Errorf("%w: delete documents: %v", ErrRetrieval, err)
	}
	return nil
}

func (c *ChromaIndex) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	body := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/collections", body, &out); err != nil {
		return "", fmt.Errorf("%w: creating collection %s: %v", ErrRetrieval, c.collection, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: chroma returned empty collection id", ErrRetrieval)
	}
	c.collectionID = out.ID
	return c.collectionID, nil
}

func (c *ChromaIndex) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// flattenMetadata keeps scalar values as-is (so they stay filterable in
// where clauses) and preserves the complete metadata as JSON under _meta.
func flattenMetadata(meta map[string]interface{}) map[string]interface{} {
	flat := map[string]interface{}{}
	for k, v := range meta {
		switch v.(type) {
		case string, bool, int, int64, float32, float64:
			flat[k] = v
		}
	}
	if raw, err := json.Marshal(meta); err == nil {
		flat[metaJSONKey] = string(raw)
	}
	return flat
}

func unflattenMetadata(flat map[string]interface{}) map[string]interface{} {
	if raw, ok := flat[metaJSONKey].(string); ok {
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &meta); err == nil {
			return meta
		}
	}
	delete(flat, metaJSONKey)
	return flat
}
