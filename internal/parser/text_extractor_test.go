package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := NewTextExtractor()

	text, err := e.ExtractFromBytes([]byte("  Jane Doe  \n\n Senior Engineer \n"), "resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nSenior Engineer", text)
}

func TestExtractByBareExtension(t *testing.T) {
	e := NewTextExtractor()

	text, err := e.ExtractFromBytes([]byte("hello"), ".md")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.ExtractFromBytes([]byte("x"), "photo.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractCorruptPDF(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.ExtractFromBytes([]byte("definitely not a pdf"), "resume.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptFile)
}

func TestExtractCorruptDocx(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.ExtractFromBytes([]byte("not a zip archive"), "resume.docx")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptFile)
}
