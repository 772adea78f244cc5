// Package loaders selects a document loader strictly by file extension.
// There is no content sniffing: an extension without a mapped loader is a
// processing error even when the format is nominally supported.
package loaders

import (
	"context"
	"errors"
)

// ErrNoLoader is returned when no loader is mapped to a file extension.
var ErrNoLoader = errors.New("no loader for extension")

// Loader reads a file and returns its raw text segments.
type Loader interface {
	Load(ctx context.Context, path string) ([]string, error)
}

// Registry maps file extensions to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry builds the default extension → loader mapping. Note that .pptx
// is deliberately absent: the supported-format list may include it, but
// processing one fails with ErrNoLoader.
func NewRegistry() *Registry {
	return &Registry{
		loaders: map[string]Loader{
			".txt":  &TextLoader{},
			".md":   &MarkdownLoader{},
			".docx": &DocxLoader{},
			".pdf":  NewPDFLoader(),
		},
	}
}

// For returns the loader mapped to the extension.
func (r *Registry) For(ext string) (Loader, error) {
	l, ok := r.loaders[ext]
	if !ok {
		return nil, ErrNoLoader
	}
	return l, nil
}
