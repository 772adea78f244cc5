package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/models"
)

// BleveIndex is a lexical backend: similarity is term matching rather than
// embedding distance, so it needs no external embedding capability. Useful
// where an embedding service is unavailable.
type BleveIndex struct {
	idx    bleve.Index
	logger *log.Logger
}

type bleveDoc struct {
	Text     string `json:"text"`
	MetaJSON string `json:"meta_json"`
}

// NewBleveIndex opens (or creates) the index at the configured path; an
// empty path means in-memory.
func NewBleveIndex(cfg config.BleveConfig, logger *log.Logger) (*BleveIndex, error) {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	doc.AddFieldMappingsAt("text", textField)

	// Metadata is stored for reconstruction but not indexed for matching.
	metaField := bleve.NewTextFieldMapping()
	metaField.Index = false
	metaField.Store = true
	doc.AddFieldMappingsAt("meta_json", metaField)

	m.DefaultMapping = doc

	var idx bleve.Index
	var err error
	if cfg.Path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else if _, statErr := os.Stat(cfg.Path); statErr == nil {
		idx, err = bleve.Open(cfg.Path)
	} else {
		idx, err = bleve.New(cfg.Path, m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening bleve index: %v", ErrRetrieval, err)
	}
	return &BleveIndex{idx: idx, logger: logger}, nil
}

// Close releases the underlying index.
func (b *BleveIndex) Close() error { return b.idx.Close() }

// AddDocuments indexes the chunks, returning generated ids in input order.
func (b *BleveIndex) AddDocuments(_ context.Context, chunks []models.Chunk) ([]string, error) {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: marshalling metadata: %v", ErrRetrieval, err)
		}
		ids[i] = uuid.NewString()
		if err := b.idx.Index(ids[i], bleveDoc{Text: c.Text, MetaJSON: string(metaJSON)}); err != nil {
			return nil, fmt.Errorf("%w: indexing chunk: %v", ErrRetrieval, err)
		}
	}
	b.logger.Printf("added %d documents to bleve index", len(chunks))
	return ids, nil
}

// SimilaritySearch runs a match query over the text field. Metadata filters
// are applied after reconstruction, preserving the gateway's equality
// semantics.
func (b *BleveIndex) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.Retrieved, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("text")

	// Over-fetch when filtering so post-filtering can still fill k results.
	size := k
	if len(filter) > 0 {
		size = k * 10
	}
	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{"text", "meta_json"}

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: bleve search: %v", ErrRetrieval, err)
	}

	var results []models.Retrieved
	for _, hit := range res.Hits {
		text, _ := hit.Fields["text"].(string)
		var meta map[string]interface{}
		if raw, ok := hit.Fields["meta_json"].(string); ok && raw != "" {
			_ = json.Unmarshal([]byte(raw), &meta)
		}
		if len(filter) > 0 && !matchesFilter(meta, filter) {
			continue
		}
		results = append(results, models.Retrieved{
			Chunk: models.Chunk{Text: text, Metadata: meta},
			Score: hit.Score,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// DeleteDocuments removes ids from the index; deleting an absent id is a
// no-op in bleve.
func (b *BleveIndex) DeleteDocuments(_ context.Context, ids []string) error {
	for _, id := range ids {
		if err := b.idx.Delete(id); err != nil {
			return fmt.Errorf("%w: deleting %s: %v", ErrRetrieval, id, err)
		}
	}
	return nil
}
