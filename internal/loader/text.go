package loader

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// TextParser handles plain text and markdown. Markdown is kept verbatim.
type TextParser struct {
	docType string
}

func NewTextParser(docType string) *TextParser {
	return &TextParser{docType: docType}
}

func (p *TextParser) Parse(_ context.Context, data []byte) (string, map[string]interface{}, error) {
	if !utf8.Valid(data) {
		return "", nil, errInvalidUTF8
	}
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = lineEndings.Replace(content)

	return content, map[string]interface{}{
		"line_count": strings.Count(content, "\n") + 1,
	}, nil
}

func (p *TextParser) Type() string {
	return p.docType
}
