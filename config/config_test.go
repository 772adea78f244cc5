package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "general:\n  app_name: test\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.ChunkOverlap != 200 {
		t.Fatalf("chunking defaults wrong: %+v", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Fatalf("top_k default = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Index.Driver != "memory" {
		t.Fatalf("index driver default = %q, want memory", cfg.Index.Driver)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("listen default = %q", cfg.Server.Listen)
	}
	found := false
	for _, f := range cfg.Chunking.SupportedFormats {
		if f == ".pdf" {
			found = true
		}
	}
	if !found {
		t.Fatalf("supported formats missing .pdf: %v", cfg.Chunking.SupportedFormats)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Join([]string{
		"chunking:",
		"  chunk_size: 500",
		"  chunk_overlap: 50",
		"index:",
		"  driver: bleve",
	}, "\n")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.ChunkOverlap != 50 {
		t.Fatalf("overrides not applied: %+v", cfg.Chunking)
	}
	if cfg.Index.Driver != "bleve" {
		t.Fatalf("driver override not applied: %q", cfg.Index.Driver)
	}
}

func TestValidateRejectsBadOverlap(t *testing.T) {
	_, err := Load(writeConfig(t, "chunking:\n  chunk_size: 100\n  chunk_overlap: 100\n"))
	if err == nil {
		t.Fatalf("overlap equal to chunk size must be rejected")
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	_, err := Load(writeConfig(t, "index:\n  driver: cassandra\n"))
	if err == nil {
		t.Fatalf("unknown index driver must be rejected")
	}
}

func TestValidateRejectsZeroChunkSize(t *testing.T) {
	_, err := Load(writeConfig(t, "chunking:\n  chunk_size: 0\n"))
	if err == nil {
		t.Fatalf("zero chunk size must be rejected")
	}
}
