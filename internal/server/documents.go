package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ragstack/ragd/internal/index"
	"github.com/ragstack/ragd/internal/ingest"
	"github.com/ragstack/ragd/internal/telemetry"
)

// DocumentsHandler serves document upload and deletion.
type DocumentsHandler struct {
	Processor *ingest.Processor
	Enricher  *ingest.Enricher
	Index     index.Index
	Metrics   *telemetry.Metrics
	Logger    *log.Logger
}

// Register mounts the document routes, optionally behind auth.
func (h *DocumentsHandler) Register(g *echo.Group, secret []byte) {
	if len(secret) > 0 {
		g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	}
	g.POST("/upload", h.upload)
	g.DELETE("", h.remove)
}

// upload stores the multipart file in a temp location, processes it through
// the full ingestion pipeline and adds the chunks to the index. The temp
// file is removed on every exit path.
func (h *DocumentsHandler) upload(c echo.Context) error {
	start := time.Now()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field required")
	}

	var customMetadata map[string]interface{}
	if raw := c.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &customMetadata); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "metadata must be a JSON object")
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := tmp.Close(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ctx := c.Request().Context()
	chunks, err := h.Processor.ProcessDocument(ctx, tmpPath, customMetadata)
	if err != nil {
		h.Metrics.ObserveIngest("error", 0, time.Since(start))
		return err
	}

	for i := range chunks {
		chunks[i] = h.Enricher.Enrich(chunks[i])
	}

	ids, err := h.Index.AddDocuments(ctx, chunks)
	if err != nil {
		h.Metrics.ObserveIngest("error", 0, time.Since(start))
		return err
	}

	docID := uuid.NewString()
	if len(ids) > 0 {
		docID = ids[0]
	}

	h.Metrics.ObserveIngest("success", len(chunks), time.Since(start))
	h.Logger.Printf("document uploaded: %s, %d chunks", fileHeader.Filename, len(chunks))
	return c.JSON(http.StatusOK, UploadResponse{
		DocumentID:    docID,
		FileName:      fileHeader.Filename,
		ChunksCreated: len(chunks),
		Status:        "success",
		Message:       "document processed successfully",
	})
}

func (h *DocumentsHandler) remove(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids must not be empty")
	}
	if err := h.Index.DeleteDocuments(c.Request().Context(), req.IDs); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}
