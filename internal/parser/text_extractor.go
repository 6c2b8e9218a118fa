// Package parser extracts plain text from uploaded resume files. It is a
// thin collaborator: the matching core only ever sees the resulting text or
// a propagated extraction error.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

var (
	// ErrUnsupportedFormat reports a file kind the extractor cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCorruptFile reports a file of a supported kind that could not be
	// parsed.
	ErrCorruptFile = errors.New("corrupt file")
)

// TextExtractor turns raw file bytes into cleaned plain text.
type TextExtractor struct{}

// NewTextExtractor builds a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// SupportedExtensions lists the file kinds the extractor accepts.
func (e *TextExtractor) SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md"}
}

// ExtractFromBytes extracts and cleans text from file content. fileKind is
// a file name or extension ("resume.pdf", ".docx") used to pick the parser.
func (e *TextExtractor) ExtractFromBytes(data []byte, fileKind string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileKind))
	if ext == "" {
		// fileKind may be a bare extension like "pdf".
		ext = strings.ToLower(strings.TrimSpace(fileKind))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
	}

	var raw string
	var err error
	switch ext {
	case ".pdf":
		raw, err = extractPDFText(data)
	case ".docx":
		raw, err = extractDocxText(data)
	case ".txt", ".md":
		raw = string(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileKind)
	}
	if err != nil {
		return "", err
	}
	return cleanText(raw), nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: read pdf: %v", ErrCorruptFile, err)
	}

	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not condemn the document.
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: parse docx: %v", ErrCorruptFile, err)
	}
	defer doc.Close()

	return doc.Editable().GetContent(), nil
}

// cleanText strips empty lines and per-line whitespace, preserving line
// structure for downstream title extraction.
func cleanText(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
