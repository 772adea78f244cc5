package loaders

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes an external command and returns its stdout. It
// exists so tests can substitute a double for the pdftotext binary.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFLoader extracts text from PDF files by shelling out to pdftotext.
type PDFLoader struct {
	runner CommandRunner
}

// NewPDFLoader creates a loader using the real pdftotext binary.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{runner: execRunner{}}
}

// NewPDFLoaderWithRunner creates a loader with a custom command runner.
func NewPDFLoaderWithRunner(r CommandRunner) *PDFLoader {
	return &PDFLoader{runner: r}
}

// Load converts the PDF to text. Pages are separated by form feeds in
// pdftotext output; each page becomes one segment.
func (l *PDFLoader) Load(ctx context.Context, path string) ([]string, error) {
	out, err := l.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	var segments []string
	for _, page := range strings.Split(string(out), "\f") {
		page = strings.TrimSpace(page)
		if page != "" {
			segments = append(segments, page)
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}
	return segments, nil
}
