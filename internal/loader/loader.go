// Package loader turns uploaded files into normalized documents.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"medisync-rag/internal/models"
)

// DefaultMaxFileBytes bounds the size of a single file.
const DefaultMaxFileBytes = 20 << 20

// File is one uploaded blob.
type File struct {
	Name   string
	Source string // path on disk, empty for uploads
	Data   []byte
}

// Parser extracts text from one file format.
type Parser interface {
	Parse(ctx context.Context, data []byte) (content string, metadata map[string]interface{}, err error)
	Type() string
}

// Loader dispatches files to parsers by extension. Nothing is persisted.
type Loader struct {
	parsers      map[string]Parser
	maxFileBytes int64
}

// New creates a loader with the built-in parsers registered.
func New(maxFileBytes int64) *Loader {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	l := &Loader{
		parsers:      make(map[string]Parser),
		maxFileBytes: maxFileBytes,
	}

	plain := NewTextParser(models.DocumentTypeText)
	markdown := NewTextParser(models.DocumentTypeMarkdown)
	html := NewHTMLParser()
	for _, ext := range []string{".txt", ".text", ".log", ".csv"} {
		l.Register(ext, plain)
	}
	l.Register(".md", markdown)
	l.Register(".markdown", markdown)
	l.Register(".pdf", NewPDFParser())
	l.Register(".html", html)
	l.Register(".htm", html)

	return l
}

// Register binds ext (with or without the leading dot) to p.
func (l *Loader) Register(ext string, p Parser) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	l.parsers[ext] = p
}

// Supports reports whether a file with this name can be loaded.
func (l *Loader) Supports(name string) bool {
	_, ok := l.parsers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load converts files into documents in upload order. A file that cannot be
// loaded is reported as a failure and does not stop the others.
func (l *Loader) Load(ctx context.Context, files []File) ([]models.Document, []models.FileFailure) {
	docs := make([]models.Document, 0, len(files))
	var failures []models.FileFailure

	for _, f := range files {
		doc, err := l.loadOne(ctx, f)
		if err != nil {
			failures = append(failures, models.FileFailure{Name: f.Name, Reason: err.Error()})
			continue
		}
		docs = append(docs, *doc)
	}

	return docs, failures
}

func (l *Loader) loadOne(ctx context.Context, f File) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	p, ok := l.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if int64(len(f.Data)) > l.maxFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", l.maxFileBytes)
	}

	content, metadata, err := p.Parse(ctx, f.Data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.Type(), err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("no text could be extracted")
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["size_bytes"] = len(f.Data)

	source := f.Source
	if source == "" {
		source = "upload"
	}
	return models.NewDocument(f.Name, source, p.Type(), content, metadata), nil
}
