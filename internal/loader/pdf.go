package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"medisync-rag/internal/models"
)

// PDFParser extracts the plain text of every page.
type PDFParser struct{}

func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Parse(_ context.Context, data []byte) (content string, metadata map[string]interface{}, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("open PDF: %w", err)
	}

	text, err := r.GetPlainText()
	if err != nil {
		return "", nil, fmt.Errorf("extract text: %w", err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, text); err != nil {
		return "", nil, fmt.Errorf("read text: %w", err)
	}

	return lineEndings.Replace(buf.String()), map[string]interface{}{
		"pages": r.NumPage(),
	}, nil
}

func (p *PDFParser) Type() string {
	return models.DocumentTypePDF
}
