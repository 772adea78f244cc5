package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/internal/cache"
	"github.com/ragstack/ragd/internal/generate"
	"github.com/ragstack/ragd/internal/index"
	"github.com/ragstack/ragd/internal/telemetry"
	"github.com/ragstack/ragd/models"
)

// queryResult is the cacheable core of a query response: everything except
// the per-request id, timing and timestamp.
type queryResult struct {
	Answer           string                  `json:"answer"`
	Sources          []models.SourceRef      `json:"sources,omitempty"`
	ContextDocsCount int                     `json:"context_docs_count"`
	Validation       models.ValidationResult `json:"validation"`
}

// QueryHandler serves the retrieval → generation → validation path.
type QueryHandler struct {
	Index     index.Index
	Chain     *generate.Chain
	Validator *generate.Validator
	Retrieval config.RetrievalConfig
	Cache     config.CacheConfig
	Metrics   *telemetry.Metrics
	Logger    *log.Logger
}

// Register mounts the query route, optionally behind auth.
func (h *QueryHandler) Register(g *echo.Group, secret []byte) {
	if len(secret) > 0 {
		g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	}
	g.POST("", h.query)
}

func (h *QueryHandler) query(c echo.Context) error {
	requestID := uuid.NewString()
	start := time.Now()

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query must not be empty")
	}
	if req.TopK <= 0 {
		req.TopK = h.Retrieval.TopK
	}
	includeSources := true
	if req.IncludeSources != nil {
		includeSources = *req.IncludeSources
	}

	run := h.runQuery
	if h.Cache.Enabled {
		run = cache.WithCache(h.Cache, h.Logger, "query", 0, h.runQuery)
	}

	result, err := run(c.Request().Context(), map[string]interface{}{
		"query":           req.Query,
		"top_k":           req.TopK,
		"filters":         req.Filters,
		"include_sources": includeSources,
	})
	if err != nil {
		h.Metrics.ObserveQuery("error", time.Since(start), 0)
		return err
	}
	if result.ContextDocsCount == 0 {
		h.Metrics.ObserveQuery("no_context", time.Since(start), 0)
		return echo.NewHTTPError(http.StatusNotFound, "no relevant documents found")
	}

	h.Metrics.ObserveQuery("success", time.Since(start), result.Validation.GroundingScore)
	return c.JSON(http.StatusOK, QueryResponse{
		RequestID:        requestID,
		Query:            req.Query,
		Answer:           result.Answer,
		Sources:          result.Sources,
		ContextDocsCount: result.ContextDocsCount,
		GroundingScore:   result.Validation.GroundingScore,
		QualityScore:     result.Validation.QualityScore,
		Warnings:         result.Validation.Warnings,
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:        time.Now(),
	})
}

// runQuery executes the uncached pipeline: search, generate, validate.
func (h *QueryHandler) runQuery(ctx context.Context, kwargs map[string]interface{}) (queryResult, error) {
	query, _ := kwargs["query"].(string)
	topK, _ := kwargs["top_k"].(int)
	filters, _ := kwargs["filters"].(map[string]interface{})
	includeSources, _ := kwargs["include_sources"].(bool)

	retrieved, err := h.Index.SimilaritySearch(ctx, query, topK, filters)
	if err != nil {
		return queryResult{}, err
	}
	if len(retrieved) == 0 {
		return queryResult{}, nil
	}

	genResult, err := h.Chain.Generate(ctx, query, retrieved, includeSources)
	if err != nil {
		return queryResult{}, err
	}

	validation := h.Validator.Validate(genResult, retrieved)

	return queryResult{
		Answer:           genResult.Answer,
		Sources:          genResult.Sources,
		ContextDocsCount: len(retrieved),
		Validation:       validation,
	}, nil
}
