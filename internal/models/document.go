// Package models holds the data types shared by the retrieval pipeline and its callers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Document types produced by the loader.
const (
	DocumentTypeText     = "text"
	DocumentTypeMarkdown = "markdown"
	DocumentTypePDF      = "pdf"
	DocumentTypeHTML     = "html"
)

// Document is the normalized text of one uploaded file.
type Document struct {
	ID       uuid.UUID              `json:"id"`
	Name     string                 `json:"name"`
	Source   string                 `json:"source"`
	Type     string                 `json:"type"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func NewDocument(name, source, docType, content string, metadata map[string]interface{}) *Document {
	return &Document{
		ID:       uuid.New(),
		Name:     name,
		Source:   source,
		Type:     docType,
		Content:  content,
		Metadata: metadata,
	}
}

// Segment is a contiguous span of a document's content. Start and End are
// rune offsets into Document.Content, End exclusive.
type Segment struct {
	ID           uuid.UUID `json:"id"`
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentName string    `json:"document_name"`
	Position     int       `json:"position"`
	Start        int       `json:"start"`
	End          int       `json:"end"`
	Text         string    `json:"text"`
}

// EmbeddedSegment pairs a segment with its embedding vector.
type EmbeddedSegment struct {
	Segment
	Vector []float32 `json:"-"`
}

// ScoredSegment is a search hit. Score is the cosine similarity to the query.
type ScoredSegment struct {
	Segment
	Score float64 `json:"score"`
}

// FileFailure describes an uploaded file that could not be turned into a document.
type FileFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IndexReadyEvent is returned after a document batch has been indexed.
type IndexReadyEvent struct {
	Documents       int           `json:"documents"`
	Segments        int           `json:"segments"`
	SkippedSegments int           `json:"skipped_segments"`
	Dimension       int           `json:"dimension"`
	EmbeddingModel  string        `json:"embedding_model"`
	Failures        []FileFailure `json:"failures,omitempty"`
	BuiltAt         time.Time     `json:"built_at"`
}

// AnswerEvent is returned for an answered question.
type AnswerEvent struct {
	RecordID uuid.UUID       `json:"record_id"`
	Answer   string          `json:"answer"`
	Role     Role            `json:"role"`
	Sources  []ScoredSegment `json:"sources"`
}
