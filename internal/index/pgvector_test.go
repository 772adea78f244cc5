package index

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ragstack/ragd/models"
)

func pgvectorTestIndex(t *testing.T) (*PgvectorIndex, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	emb := &stubEmbedder{vectors: map[string][]float32{
		"chunk text": {0.1, 0.2},
		"query":      {0.3, 0.4},
	}}
	return NewPgvectorIndexWithDB(db, emb, discard()), mock
}

func TestPgvectorAddDocuments(t *testing.T) {
	idx, mock := pgvectorTestIndex(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO chunks (id, text, metadata, embedding, created_at)
VALUES ($1,$2,$3,$4::vector,NOW())`))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "chunk text", []byte(`{"file_name":"doc.txt"}`), "[0.1,0.2]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := idx.AddDocuments(context.Background(), []models.Chunk{
		{Text: "chunk text", Metadata: map[string]interface{}{"file_name": "doc.txt"}},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if len(ids) != 1 || ids[0] == "" {
		t.Fatalf("expected one generated id, got %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgvectorAddRollsBackOnFailure(t *testing.T) {
	idx, mock := pgvectorTestIndex(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO chunks")
	prep.ExpectExec().WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := idx.AddDocuments(context.Background(), []models.Chunk{{Text: "chunk text"}})
	if err == nil {
		t.Fatalf("expected insert failure to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgvectorSimilaritySearch(t *testing.T) {
	idx, mock := pgvectorTestIndex(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT text, metadata, 1 - (embedding <=> $1::vector) AS score
FROM chunks
ORDER BY embedding <=> $1::vector
LIMIT $2`)).
		WithArgs("[0.3,0.4]", 5).
		WillReturnRows(sqlmock.NewRows([]string{"text", "metadata", "score"}).
			AddRow("chunk text", []byte(`{"file_name":"doc.txt"}`), 0.87))

	results, err := idx.SimilaritySearch(context.Background(), "query", 5, nil)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score != 0.87 || results[0].Chunk.Text != "chunk text" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if results[0].Chunk.Metadata["file_name"] != "doc.txt" {
		t.Fatalf("metadata not decoded: %v", results[0].Chunk.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgvectorSimilaritySearchFiltered(t *testing.T) {
	idx, mock := pgvectorTestIndex(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE metadata @> $2::jsonb`)).
		WithArgs("[0.3,0.4]", []byte(`{"content_type":"policy"}`), 3).
		WillReturnRows(sqlmock.NewRows([]string{"text", "metadata", "score"}))

	results, err := idx.SimilaritySearch(context.Background(), "query", 3, map[string]interface{}{"content_type": "policy"})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgvectorDeleteDocuments(t *testing.T) {
	idx, mock := pgvectorTestIndex(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chunks WHERE id = ANY($1)`)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := idx.DeleteDocuments(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestVectorLiteral(t *testing.T) {
	if got := vectorLiteral([]float32{0.1, 0.2}); got != "[0.1,0.2]" {
		t.Fatalf("vectorLiteral = %q", got)
	}
	if got := vectorLiteral(nil); got != "[]" {
		t.Fatalf("vectorLiteral(nil) = %q", got)
	}
}
