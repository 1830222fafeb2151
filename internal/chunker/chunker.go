// Package chunker splits documents into bounded, overlapping segments.
package chunker

import (
	"fmt"
	"unicode"

	"github.com/google/uuid"

	"medisync-rag/internal/models"
)

// Chunker cuts document content into windows of at most MaxRunes runes.
// Consecutive windows of a document share up to Overlap runes, and together
// they cover the whole content.
type Chunker struct {
	MaxRunes int
	Overlap  int
}

// New validates the window settings. overlap must be in [0, maxRunes/2).
func New(maxRunes, overlap int) (*Chunker, error) {
	if maxRunes <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxRunes)
	}
	if overlap < 0 || overlap >= maxRunes/2 {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, maxRunes/2)
	}
	return &Chunker{MaxRunes: maxRunes, Overlap: overlap}, nil
}

// Split returns the segments of doc in document order. A window that stops
// short of the end is pulled back to the last whitespace in its second half
// so words are not cut.
func (c *Chunker) Split(doc models.Document) []models.Segment {
	runes := []rune(doc.Content)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var segments []models.Segment
	start := 0
	for {
		end := start + c.MaxRunes
		if end >= n {
			end = n
		} else {
			end = backOff(runes, start, end)
		}

		segments = append(segments, models.Segment{
			ID:           uuid.New(),
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			Position:     len(segments),
			Start:        start,
			End:          end,
			Text:         string(runes[start:end]),
		})

		if end == n {
			return segments
		}

		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
}

// SplitAll splits every document, keeping document order.
func (c *Chunker) SplitAll(docs []models.Document) []models.Segment {
	var all []models.Segment
	for _, d := range docs {
		all = append(all, c.Split(d)...)
	}
	return all
}

func backOff(runes []rune, start, end int) int {
	half := start + (end-start)/2
	for i := end; i > half; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
