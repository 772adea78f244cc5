package models

import "time"

// Metadata keys written by the ingestion pipeline. Caller-supplied custom
// metadata is merged after these and may overwrite any of them.
const (
	MetaSourcePath      = "source_path"
	MetaFileName        = "file_name"
	MetaFileType        = "file_type"
	MetaFileHash        = "file_hash"
	MetaChunkIndex      = "chunk_index"
	MetaTotalChunks     = "total_chunks"
	MetaProcessedAt     = "processed_at"
	MetaChunkCharLength = "chunk_char_length"
	MetaEntities        = "entities"
	MetaStatistics      = "statistics"
	MetaContentType     = "content_type"
	MetaEnrichedAt      = "enriched_at"
)

// Chunk is a bounded span of a source document's text plus its metadata.
// It is the unit stored in and retrieved from the similarity index.
type Chunk struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// MetaString returns a metadata value as a string, or def when absent.
func (c Chunk) MetaString(key, def string) string {
	if v, ok := c.Metadata[key].(string); ok {
		return v
	}
	return def
}

// MetaInt returns a metadata value as an int, or def when absent.
// JSON round-trips turn ints into float64, so both are accepted.
func (c Chunk) MetaInt(key string, def int) int {
	switch v := c.Metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Retrieved pairs a chunk with the relevance score the index assigned to it.
type Retrieved struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// SourceRef describes where a retrieved chunk came from. One SourceRef is
// emitted per context chunk, in retrieval order, without deduplication.
type SourceRef struct {
	FileName       string  `json:"file_name"`
	SourcePath     string  `json:"source_path"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// GenerationResult is the output of one answer-generation call.
type GenerationResult struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources,omitempty"`
}

// ValidationResult carries quality signals about a generated answer. It is
// computed fresh per query and never persisted. IsValid is informational
// scaffolding: no request is rejected on validator output.
type ValidationResult struct {
	GroundingScore float64  `json:"grounding_score"`
	QualityScore   float64  `json:"quality_score"`
	Warnings       []string `json:"warnings"`
	IsValid        bool     `json:"is_valid"`
}

// Timestamp is the wire format used for processed_at / enriched_at metadata.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
