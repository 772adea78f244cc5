package loaders

import (
	"context"
	"os"
	"regexp"
	"strings"
)

// TextLoader reads plain text files verbatim.
type TextLoader struct{}

// Load returns the file content as a single segment.
func (l *TextLoader) Load(_ context.Context, path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{string(b)}, nil
}

var (
	mdCodeFence = regexp.MustCompile("(?s)```[^`]*```")
	mdInline    = regexp.MustCompile("`([^`]*)`")
	mdHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasis  = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	mdLink      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// MarkdownLoader reads markdown files and strips common formatting so the
// splitter sees prose rather than markup.
type MarkdownLoader struct{}

// Load returns the de-formatted content as a single segment.
func (l *MarkdownLoader) Load(_ context.Context, path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{stripMarkdown(string(b))}, nil
}

func stripMarkdown(content string) string {
	content = mdCodeFence.ReplaceAllString(content, "")
	content = mdInline.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	content = mdLink.ReplaceAllString(content, "$1")
	return strings.TrimSpace(content)
}
