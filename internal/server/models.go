package server

import (
	"time"

	"github.com/ragstack/ragd/models"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query          string                 `json:"query"`
	TopK           int                    `json:"top_k"`
	Filters        map[string]interface{} `json:"filters"`
	IncludeSources *bool                  `json:"include_sources"`
}

// QueryResponse is the answer payload with validation signals attached.
type QueryResponse struct {
	RequestID        string             `json:"request_id"`
	Query            string             `json:"query"`
	Answer           string             `json:"answer"`
	Sources          []models.SourceRef `json:"sources,omitempty"`
	ContextDocsCount int                `json:"context_docs_count"`
	GroundingScore   float64            `json:"grounding_score"`
	QualityScore     float64            `json:"quality_score"`
	Warnings         []string           `json:"warnings"`
	ProcessingTimeMs float64            `json:"processing_time_ms"`
	Timestamp        time.Time          `json:"timestamp"`
}

// UploadResponse reports the outcome of a document upload.
type UploadResponse struct {
	DocumentID    string `json:"document_id"`
	FileName      string `json:"file_name"`
	ChunksCreated int    `json:"chunks_created"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// DeleteRequest is the body of DELETE /api/documents.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// AuthSignupRequest creates a user account.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest exchanges credentials for a token.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}
