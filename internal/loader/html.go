package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"medisync-rag/internal/models"
)

// HTMLParser converts the page body to Markdown so headings, lists and tables
// survive as text structure.
type HTMLParser struct {
	converter *md.Converter
}

func NewHTMLParser() *HTMLParser {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.Table())
	return &HTMLParser{converter: converter}
}

func (p *HTMLParser) Parse(_ context.Context, data []byte) (string, map[string]interface{}, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("parse HTML: %w", err)
	}

	metadata := make(map[string]interface{})
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		metadata["title"] = title
	}

	doc.Find("script, style, noscript").Remove()
	body := doc.Find("body")

	if inner, err := body.Html(); err == nil && strings.TrimSpace(inner) != "" {
		if markdown, err := p.converter.ConvertString(inner); err == nil && strings.TrimSpace(markdown) != "" {
			return cleanBlankLines(markdown), metadata, nil
		}
	}

	// Fall back to the bare text when conversion yields nothing.
	text := strings.Join(strings.Fields(body.Text()), " ")
	return text, metadata, nil
}

func (p *HTMLParser) Type() string {
	return models.DocumentTypeHTML
}

// cleanBlankLines collapses runs of blank lines into one.
func cleanBlankLines(s string) string {
	lines := strings.Split(lineEndings.Replace(s), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
