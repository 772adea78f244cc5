package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/models"
)

// PgvectorIndex stores chunks in a postgres table with a pgvector embedding
// column. Schema lives in migrations/.
type PgvectorIndex struct {
	db       *sql.DB
	embedder Embedder
	logger   *log.Logger
}

// NewPgvectorIndex opens the configured database.
func NewPgvectorIndex(cfg config.PgvectorConfig, embedder Embedder, logger *log.Logger) (*PgvectorIndex, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("pgvector index requires index.pgvector.url")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: opening postgres: %v", ErrRetrieval, err)
	}
	return &PgvectorIndex{db: db, embedder: embedder, logger: logger}, nil
}

// NewPgvectorIndexWithDB wraps an existing connection, mainly for tests.
func NewPgvectorIndexWithDB(db *sql.DB, embedder Embedder, logger *log.Logger) *PgvectorIndex {
	return &PgvectorIndex{db: db, embedder: embedder, logger: logger}
}

// Close releases the database handle.
func (p *PgvectorIndex) Close() error { return p.db.Close() }

const insertChunkSQL = `
INSERT INTO chunks (id, text, metadata, embedding, created_at)
VALUES ($1,$2,$3,$4::vector,NOW())`

// AddDocuments embeds and inserts the chunks inside one transaction, so a
// failure stores nothing.
func (p *PgvectorIndex) AddDocuments(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := p.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding documents: %v", ErrRetrieval, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrRetrieval, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertChunkSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare: %v", ErrRetrieval, err)
	}
	defer stmt.Close()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = uuid.NewString()
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: marshalling metadata: %v", ErrRetrieval, err)
		}
		if _, err := stmt.ExecContext(ctx, ids[i], c.Text, meta, vectorLiteral(vecs[i])); err != nil {
			return nil, fmt.Errorf("%w: insert chunk: %v", ErrRetrieval, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrRetrieval, err)
	}
	p.logger.Printf("added %d documents to pgvector index", len(chunks))
	return ids, nil
}

const searchSQL = `
SELECT text, metadata, 1 - (embedding <=> $1::vector) AS score
FROM chunks
ORDER BY embedding <=> $1::vector
LIMIT $2`

const searchFilteredSQL = `
SELECT text, metadata, 1 - (embedding <=> $1::vector) AS score
FROM chunks
WHERE metadata @> $2::jsonb
ORDER BY embedding <=> $1::vector
LIMIT $3`

// SimilaritySearch ranks by cosine distance; metadata filters use jsonb
// containment, which matches the gateway's equality semantics.
func (p *PgvectorIndex) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.Retrieved, error) {
	vecs, err := p.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for query", ErrRetrieval, len(vecs))
	}

	var rows *sql.Rows
	if len(filter) > 0 {
		fj, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("%w: marshalling filter: %v", ErrRetrieval, err)
		}
		rows, err = p.db.QueryContext(ctx, searchFilteredSQL, vectorLiteral(vecs[0]), fj, k)
		if err != nil {
			return nil, fmt.Errorf("%w: similarity search: %v", ErrRetrieval, err)
		}
	} else {
		rows, err = p.db.QueryContext(ctx, searchSQL, vectorLiteral(vecs[0]), k)
		if err != nil {
			return nil, fmt.Errorf("%w: similarity search: %v", ErrRetrieval, err)
		}
	}
	defer rows.Close()

	var results []models.Retrieved
	for rows.Next() {
		var text string
		var metaRaw []byte
		var score float64
		if err := rows.Scan(&text, &metaRaw, &score); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrRetrieval, err)
		}
		var meta map[string]interface{}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &meta); err != nil {
				return nil, fmt.Errorf("%w: unmarshalling metadata: %v", ErrRetrieval, err)
			}
		}
		results = append(results, models.Retrieved{
			Chunk: models.Chunk{Text: text, Metadata: meta},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrRetrieval, err)
	}
	return results, nil
}

const deleteSQL = `DELETE FROM chunks WHERE id = ANY($1)`

// DeleteDocuments removes chunks by id; absent ids simply delete zero rows.
func (p *PgvectorIndex) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.db.ExecContext(ctx, deleteSQL, pq.Array(ids)); err != nil {
		return fmt.Errorf("%w: delete documents: %v", ErrRetrieval, err)
	}
	return nil
}

// vectorLiteral renders a pgvector literal like [0.1,0.2].
func vectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
