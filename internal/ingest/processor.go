package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/internal/ingest/loaders"
	"github.com/ragstack/ragd/models"
)

// ErrProcessing is the sentinel wrapped around any document processing
// failure. A failed document produces no chunks at all.
var ErrProcessing = errors.New("document processing failed")

// Processor turns a source file into enrichable chunks: validate, load,
// split, hash, attach metadata.
type Processor struct {
	cfg      config.ChunkingConfig
	splitter *Splitter
	registry *loaders.Registry
	logger   *log.Logger
	now      func() time.Time
}

// NewProcessor creates a processor from chunking configuration.
func NewProcessor(cfg config.ChunkingConfig, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Processor{
		cfg:      cfg,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		registry: loaders.NewRegistry(),
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessDocument loads, chunks and enriches a single document with base
// metadata. Custom metadata is merged last and may overwrite generated keys;
// that is an intentional override point. Any failure aborts the whole
// document: no partial chunk set is ever returned.
func (p *Processor) ProcessDocument(ctx context.Context, filePath string, customMetadata map[string]interface{}) ([]models.Chunk, error) {
	p.logger.Printf("processing document: %s", filePath)

	if err := p.validateFile(filePath); err != nil {
		return nil, err
	}

	ext := filepath.Ext(filePath)
	loader, err := p.registry.For(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProcessing, filePath, err)
	}

	segments, err := loader.Load(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrProcessing, filePath, err)
	}

	var texts []string
	for _, seg := range segments {
		texts = append(texts, p.splitter.Split(seg)...)
	}

	fileHash, err := fileSHA256(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing %s: %v", ErrProcessing, filePath, err)
	}

	processedAt := models.Timestamp(p.now())
	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		meta := map[string]interface{}{
			models.MetaSourcePath:      filePath,
			models.MetaFileName:        filepath.Base(filePath),
			models.MetaFileType:        ext,
			models.MetaFileHash:        fileHash,
			models.MetaChunkIndex:      i,
			models.MetaTotalChunks:     len(texts),
			models.MetaProcessedAt:     processedAt,
			models.MetaChunkCharLength: len(text),
		}
		for k, v := range customMetadata {
			meta[k] = v
		}
		chunks = append(chunks, models.Chunk{Text: text, Metadata: meta})
	}

	p.logger.Printf("processed %s: %d chunks created", filePath, len(chunks))
	return chunks, nil
}

// validateFile fails fast, before any load attempt: missing file,
// unsupported extension, or size over the configured maximum.
func (p *Processor) validateFile(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("%w: file not found: %s", ErrProcessing, filePath)
	}

	ext := filepath.Ext(filePath)
	supported := false
	for _, f := range p.cfg.SupportedFormats {
		if f == ext {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: unsupported format: %s", ErrProcessing, ext)
	}

	if p.cfg.MaxDocumentSize > 0 && info.Size() > p.cfg.MaxDocumentSize {
		return fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrProcessing, info.Size(), p.cfg.MaxDocumentSize)
	}
	return nil
}

// fileSHA256 hashes the full file byte stream. The digest is identical for
// byte-identical files regardless of chunking parameters.
func fileSHA256(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
