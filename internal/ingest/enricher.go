package ingest

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ragstack/ragd/models"
)

var entityPatterns = map[string]*regexp.Regexp{
	"email": regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	"phone": regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
	"date":  regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	"url":   regexp.MustCompile(`https?://[^\s]+`),
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// contentTypeRules are evaluated in order on lower-cased text; the first
// matching label wins, so a chunk containing both code and policy keywords
// classifies as code.
var contentTypeRules = []struct {
	label    string
	keywords []string
}{
	{"code", []string{"class", "def ", "function", "import"}},
	{"academic", []string{"abstract", "introduction", "methodology"}},
	{"meeting_notes", []string{"meeting", "agenda"}},
	{"policy", []string{"policy", "procedure"}},
}

// Enricher extracts entities, statistics and a content-type label from chunk
// text. Enrich is pure and total: it never fails.
type Enricher struct {
	now func() time.Time
}

// NewEnricher creates an enricher.
func NewEnricher() *Enricher {
	return &Enricher{now: time.Now}
}

// Enrich adds enrichment metadata to the chunk and returns it.
func (e *Enricher) Enrich(chunk models.Chunk) models.Chunk {
	if chunk.Metadata == nil {
		chunk.Metadata = map[string]interface{}{}
	}

	if entities := extractEntities(chunk.Text); len(entities) > 0 {
		chunk.Metadata[models.MetaEntities] = entities
	}
	chunk.Metadata[models.MetaStatistics] = textStatistics(chunk.Text)
	chunk.Metadata[models.MetaContentType] = identifyContentType(chunk.Text)
	chunk.Metadata[models.MetaEnrichedAt] = models.Timestamp(e.now())

	return chunk
}

// extractEntities applies each fixed pattern independently and records the
// deduplicated matches. Types with zero matches are omitted. Matches are
// sorted lexicographically so output is deterministic; the underlying set has
// no meaningful order.
func extractEntities(text string) map[string][]string {
	entities := map[string][]string{}
	for entityType, pattern := range entityPatterns {
		matches := pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		seen := map[string]bool{}
		var unique []string
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				unique = append(unique, m)
			}
		}
		sort.Strings(unique)
		entities[entityType] = unique
	}
	return entities
}

func textStatistics(text string) map[string]int {
	return map[string]int{
		"char_count":      len(text),
		"word_count":      len(strings.Fields(text)),
		"sentence_count":  len(sentenceSplit.Split(text, -1)),
		"paragraph_count": len(strings.Split(text, "\n\n")),
	}
}

func identifyContentType(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range contentTypeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return "general"
}
