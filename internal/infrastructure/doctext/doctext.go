// Package doctext derives the classifier's text view of an uploaded
// document. PDFs yield their plain text; images have no cheap text layer, so
// the filename stands in.
package doctext

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const maxTextChars = 4000

type Source struct{}

func New() *Source {
	return &Source{}
}

func (s *Source) Text(content []byte, mimeType, filename string) string {
	if mimeType == "application/pdf" {
		if text := pdfText(content); text != "" {
			return truncate(text)
		}
		// Scanned PDFs without a text layer fall through to the filename.
	}
	return truncate(filename)
}

func pdfText(content []byte) string {
	defer func() {
		// The pdf library panics on some malformed files.
		if r := recover(); r != nil {
			slog.Warn("pdf_text_extraction_panic", "reason", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		slog.Warn("pdf_open_failed", "error", err)
		return ""
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		slog.Warn("pdf_text_extraction_failed", "error", err)
		return ""
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		slog.Warn("pdf_text_read_failed", "error", err)
		return ""
	}
	if !utf8.Valid(raw) {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func truncate(text string) string {
	if len(text) <= maxTextChars {
		return text
	}
	return text[:maxTextChars]
}
