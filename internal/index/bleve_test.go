package index

import (
	"context"
	"testing"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/models"
)

func bleveFixture(t *testing.T) (*BleveIndex, []string) {
	t.Helper()
	idx, err := NewBleveIndex(config.BleveConfig{}, discard())
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	ids, err := idx.AddDocuments(context.Background(), []models.Chunk{
		{Text: "the refund policy covers thirty days", Metadata: map[string]interface{}{"content_type": "policy"}},
		{Text: "meeting notes from the planning session", Metadata: map[string]interface{}{"content_type": "meeting_notes"}},
		{Text: "refund exceptions require approval", Metadata: map[string]interface{}{"content_type": "policy"}},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	return idx, ids
}

func TestBleveSearch(t *testing.T) {
	idx, _ := bleveFixture(t)

	results, err := idx.SimilaritySearch(context.Background(), "refund", 10, nil)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 refund hits, got %d: %v", len(results), results)
	}
	for _, r := range results {
		if r.Score <= 0 {
			t.Fatalf("hit score must be positive: %+v", r)
		}
		if r.Chunk.Metadata["content_type"] != "policy" {
			t.Fatalf("metadata not restored: %v", r.Chunk.Metadata)
		}
	}
}

func TestBleveSearchFilter(t *testing.T) {
	idx, _ := bleveFixture(t)

	results, err := idx.SimilaritySearch(context.Background(), "refund", 10, map[string]interface{}{"content_type": "meeting_notes"})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("filter should exclude all refund chunks, got %v", results)
	}

	results, err = idx.SimilaritySearch(context.Background(), "refund", 10, map[string]interface{}{"content_type": "policy"})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 policy refund hits, got %d", len(results))
	}
}

func TestBleveSearchNoMatch(t *testing.T) {
	idx, _ := bleveFixture(t)

	results, err := idx.SimilaritySearch(context.Background(), "zebra", 10, nil)
	if err != nil {
		t.Fatalf("no match must not be an error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result set, got %v", results)
	}
}

func TestBleveDelete(t *testing.T) {
	idx, ids := bleveFixture(t)

	if err := idx.DeleteDocuments(context.Background(), []string{ids[0]}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	results, err := idx.SimilaritySearch(context.Background(), "refund", 10, nil)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 remaining refund hit, got %d", len(results))
	}
}
