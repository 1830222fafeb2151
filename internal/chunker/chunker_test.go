package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisync-rag/internal/models"
)

func doc(content string) models.Document {
	return *models.NewDocument("note.txt", "upload", models.DocumentTypeText, content, nil)
}

func TestNewValidation(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)
	_, err = New(100, 50)
	assert.Error(t, err)
	_, err = New(100, -1)
	assert.Error(t, err)

	c, err := New(100, 49)
	require.NoError(t, err)
	assert.Equal(t, 49, c.Overlap)
}

func TestSplitShortDocument(t *testing.T) {
	c, err := New(200, 20)
	require.NoError(t, err)

	d := doc("Patient presents with elevated glucose, 180mg/dL fasting.")
	segs := c.Split(d)

	require.Len(t, segs, 1)
	assert.Equal(t, d.Content, segs[0].Text)
	assert.Equal(t, 0, segs[0].Start)
	assert.Equal(t, utf8.RuneCountInString(d.Content), segs[0].End)
	assert.Equal(t, d.ID, segs[0].DocumentID)
	assert.Equal(t, "note.txt", segs[0].DocumentName)
}

func TestSplitEmpty(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	assert.Empty(t, c.Split(doc("")))
}

func TestSplitCoverage(t *testing.T) {
	words := []string{"glicemia", "jejum", "paciente", "hipertensão", "insulina", "ácido", "úrico"}
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString(words[i%len(words)])
		if i%13 == 0 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}
	content := b.String()
	runes := []rune(content)

	for _, tc := range []struct{ max, overlap int }{{64, 0}, {64, 16}, {100, 49}, {7, 2}, {2, 0}} {
		c, err := New(tc.max, tc.overlap)
		require.NoError(t, err)

		segs := c.Split(doc(content))
		require.NotEmpty(t, segs)

		assert.Equal(t, 0, segs[0].Start)
		assert.Equal(t, len(runes), segs[len(segs)-1].End)

		for i, s := range segs {
			assert.Equal(t, i, s.Position)
			assert.LessOrEqual(t, s.End-s.Start, tc.max)
			assert.Greater(t, s.End, s.Start)
			assert.Equal(t, string(runes[s.Start:s.End]), s.Text)
			if i > 0 {
				prev := segs[i-1]
				assert.LessOrEqual(t, s.Start, prev.End, "gap between segments %d and %d", i-1, i)
				assert.Greater(t, s.Start, prev.Start)
				assert.LessOrEqual(t, prev.End-s.Start, tc.overlap)
			}
		}
	}
}

func TestSplitBreaksOnWhitespace(t *testing.T) {
	c, err := New(20, 0)
	require.NoError(t, err)

	segs := c.Split(doc("alpha beta gamma delta epsilon zeta"))
	require.Greater(t, len(segs), 1)
	for _, s := range segs[:len(segs)-1] {
		assert.True(t, strings.HasSuffix(s.Text, " "), "segment %q should end at a word boundary", s.Text)
	}
}

func TestSplitAllKeepsDocumentOrder(t *testing.T) {
	c, err := New(10, 0)
	require.NoError(t, err)

	a := doc("first document text")
	b := doc("second")
	segs := c.SplitAll([]models.Document{a, b})

	require.NotEmpty(t, segs)
	assert.Equal(t, a.ID, segs[0].DocumentID)
	last := segs[len(segs)-1]
	assert.Equal(t, b.ID, last.DocumentID)
	assert.Equal(t, 0, last.Position)
}
