package server

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragstack/ragd/config"
	"github.com/ragstack/ragd/internal/generate"
	"github.com/ragstack/ragd/internal/index"
	"github.com/ragstack/ragd/internal/ingest"
	"github.com/ragstack/ragd/internal/ingest/loaders"
	"github.com/ragstack/ragd/internal/telemetry"
	"github.com/ragstack/ragd/provider"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Run builds the full pipeline from config and serves HTTP until the
// listener fails.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = errorHandler(baseLogger)

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	llm, err := provider.New(cfg.Providers)
	if err != nil {
		return err
	}

	idxLogger := log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	idx, err := index.New(cfg.Index, llm, idxLogger)
	if err != nil {
		return err
	}

	metrics := telemetry.New()

	ingestLogger := log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	processor := ingest.NewProcessor(cfg.Chunking, ingestLogger)
	enricher := ingest.NewEnricher()

	chainLogger := log.New(log.Writer(), "[CHAIN] ", log.LstdFlags)
	chain := generate.NewChain(llm, chainLogger)
	validator := generate.NewValidator()

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Version:   Version,
			Timestamp: time.Now(),
			Components: map[string]string{
				"index":    cfg.Index.Driver,
				"provider": "openai",
			},
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	// auth is wired only when both a database and a secret are configured
	var secret []byte
	if cfg.Storage.Postgres.URL != "" && cfg.Server.JWTSecret != "" {
		if err := Migrate("file://migrations", cfg.Storage.Postgres.URL, "up", 0); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		db, err := sql.Open("postgres", cfg.Storage.Postgres.URL)
		if err != nil {
			return err
		}
		secret = []byte(cfg.Server.JWTSecret)
		auth := &AuthHandler{DB: db, Secret: secret}
		auth.Register(api.Group("/auth"))
	}

	qh := &QueryHandler{
		Index:     idx,
		Chain:     chain,
		Validator: validator,
		Retrieval: cfg.Retrieval,
		Cache:     cfg.Cache,
		Metrics:   metrics,
		Logger:    baseLogger,
	}
	qh.Register(api.Group("/query"), secret)

	dh := &DocumentsHandler{
		Processor: processor,
		Enricher:  enricher,
		Index:     idx,
		Metrics:   metrics,
		Logger:    ingestLogger,
	}
	dh.Register(api.Group("/documents"), secret)

	if addr == "" {
		addr = cfg.Server.Listen
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// errorHandler maps pipeline sentinel errors to HTTP statuses and renders a
// uniform JSON error body.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		switch {
		case errors.Is(err, ingest.ErrProcessing):
			code = http.StatusBadRequest
		case errors.Is(err, loaders.ErrNoLoader):
			code = http.StatusUnsupportedMediaType
		case errors.Is(err, index.ErrRetrieval), errors.Is(err, generate.ErrGeneration):
			code = http.StatusBadGateway
		}
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
}
