package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/models"
)

func chromaTestServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "testcoll" || body["get_or_create"] != true {
			t.Errorf("unexpected collection request: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "coll-1"})
	})
	mux.HandleFunc("/api/v1/collections/coll-1/add", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body struct {
			IDs       []string                 `json:"ids"`
			Documents []string                 `json:"documents"`
			Metadatas []map[string]interface{} `json:"metadatas"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.IDs) != 1 || body.Documents[0] != "chunk text" {
			t.Errorf("unexpected add request: %+v", body)
		}
		if _, ok := body.Metadatas[0][metaJSONKey]; !ok {
			t.Errorf("metadata missing %s key: %v", metaJSONKey, body.Metadatas[0])
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/v1/collections/coll-1/query", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		meta := map[string]interface{}{
			"file_name":  "doc.txt",
			metaJSONKey: `{"file_name":"doc.txt","statistics":{"word_count":2}}`,
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ids":       [][]string{{"id-1"}},
			"documents": [][]string{{"chunk text"}},
			"metadatas": [][]map[string]interface{}{{meta}},
			"distances": [][]float64{{0.25}},
		})
	})
	mux.HandleFunc("/api/v1/collections/coll-1/delete", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux), &paths
}

func newChromaTestIndex(url string) *ChromaIndex {
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	return NewChromaIndex(config.ChromaConfig{URL: url, Collection: "testcoll"}, emb, discard())
}

func TestChromaAddAndQuery(t *testing.T) {
	srv, paths := chromaTestServer(t)
	defer srv.Close()

	idx := newChromaTestIndex(srv.URL)

	ids, err := idx.AddDocuments(context.Background(), []models.Chunk{
		{Text: "chunk text", Metadata: map[string]interface{}{"file_name": "doc.txt"}},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id, got %v", ids)
	}

	results, err := idx.SimilaritySearch(context.Background(), "query", 5, nil)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score != 0.75 {
		t.Fatalf("score = %v, want 1 - 0.25 = 0.75", results[0].Score)
	}
	// Nested metadata comes back through the _meta JSON, not the flat scalars.
	stats, ok := results[0].Chunk.Metadata["statistics"].(map[string]interface{})
	if !ok || stats["word_count"] != float64(2) {
		t.Fatalf("nested metadata not restored: %v", results[0].Chunk.Metadata)
	}

	if err := idx.DeleteDocuments(context.Background(), []string{"id-1"}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}

	// The collection is created once and reused across calls.
	created := 0
	for _, p := range *paths {
		if p == "/api/v1/collections" {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("collection should be created lazily exactly once, got %d", created)
	}
}

func TestChromaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx := newChromaTestIndex(srv.URL)
	if _, err := idx.AddDocuments(context.Background(), []models.Chunk{{Text: "x"}}); err == nil {
		t.Fatalf("expected error from failing server")
	}
}

func TestFlattenMetadataRoundTrip(t *testing.T) {
	meta := map[string]interface{}{
		"file_name": "doc.txt",
		"entities":  map[string][]string{"email": {"a@b.co"}},
	}
	flat := flattenMetadata(meta)
	if _, ok := flat["entities"]; ok {
		t.Fatalf("non-scalar values must not appear flat: %v", flat)
	}
	if flat["file_name"] != "doc.txt" {
		t.Fatalf("scalar values must stay filterable: %v", flat)
	}

	restored := unflattenMetadata(flat)
	if restored["file_name"] != "doc.txt" {
		t.Fatalf("round trip lost file_name: %v", restored)
	}
	if _, ok := restored["entities"]; !ok {
		t.Fatalf("round trip lost nested entities: %v", restored)
	}
}
