package ingest

import "strings"

// Splitter implements recursive separator splitting: text is broken on an
// ordered list of separators from coarsest to finest, then the resulting
// fragments are greedily packed into chunks of at most chunkSize characters,
// carrying the trailing chunkOverlap characters of each emitted chunk into
// the start of the next.
//
// Guarantees: every input character appears in at least one chunk; consecutive
// chunks share exactly chunkOverlap characters except at document boundaries;
// no chunk exceeds chunkSize unless a single separator-free token is itself
// longer than chunkSize, in which case that token is emitted whole.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter builds a splitter. Overlap is clamped into [0, chunkSize).
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", ". ", " ", ""},
	}
}

// Split breaks text into overlapping chunks.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	frags := s.fragments(text, 0)

	var chunks []string
	cur := ""
	for _, f := range frags {
		if cur != "" && len(cur)+len(f) > s.chunkSize {
			chunks = append(chunks, cur)
			keep := s.chunkOverlap
			if keep > len(cur) {
				keep = len(cur)
			}
			// Shrink the carried overlap when the next fragment alone
			// would push a non-oversized chunk past chunkSize.
			if len(f) <= s.chunkSize && keep+len(f) > s.chunkSize {
				keep = s.chunkSize - len(f)
			}
			cur = cur[len(cur)-keep:]
		}
		cur += f
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// fragments recursively cuts text into pieces no larger than the packing
// target, keeping every separator attached to the fragment it terminates so
// no character is lost. A piece that matches no separator at all is returned
// whole even when oversized.
func (s *Splitter) fragments(text string, depth int) []string {
	target := s.chunkSize - s.chunkOverlap
	if target <= 0 {
		target = s.chunkSize
	}
	if len(text) <= target {
		return []string{text}
	}

	sep := s.separators[depth]
	if sep == "" {
		// Character-level floor: a separator-free token this long is
		// atomic and gets emitted as an oversized chunk.
		return []string{text}
	}

	parts := splitAfter(text, sep)
	var out []string
	for _, p := range parts {
		if len(p) <= target {
			out = append(out, p)
		} else {
			out = append(out, s.fragments(p, depth+1)...)
		}
	}
	return out
}

// splitAfter splits text after each occurrence of sep, keeping sep attached
// to the preceding part.
func splitAfter(text, sep string) []string {
	var parts []string
	for {
		i := strings.Index(text, sep)
		if i < 0 {
			if text != "" {
				parts = append(parts, text)
			}
			return parts
		}
		parts = append(parts, text[:i+len(sep)])
		text = text[i+len(sep):]
	}
}
