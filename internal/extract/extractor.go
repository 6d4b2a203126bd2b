// Package extract turns stored document bytes into plain text.
package extract

import (
	"bytes"
	"path/filepath"
	"strings"

	"docrag/internal/util"

	"github.com/ledongthuc/pdf"
)

// Extract converts raw document bytes into sanitized plain text, dispatching
// on the declared content type with a filename-extension fallback. Failures
// are ExtractionErrors: they cannot be fixed by retrying.
func Extract(filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &util.ExtractionError{Filename: filename, Reason: "empty file"}
	}
	switch normalizeType(filename, contentType) {
	case "text":
		return extractPlain(filename, data)
	case "pdf":
		return extractPDF(filename, data)
	default:
		return "", &util.ExtractionError{Filename: filename, Reason: "unsupported content type " + contentType}
	}
}

func normalizeType(filename, contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "text/plain", "text/markdown":
		return "text"
	case "application/pdf":
		return "pdf"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return "text"
	case ".pdf":
		return "pdf"
	}
	return ""
}

func extractPlain(filename string, data []byte) (string, error) {
	text := util.SanitizeText(string(data))
	if text == "" {
		return "", &util.ExtractionError{Filename: filename, Reason: "no extractable text", Err: util.ErrNoExtractableText}
	}
	return text, nil
}

func extractPDF(filename string, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &util.ExtractionError{Filename: filename, Reason: "open pdf", Err: err}
	}
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	text := util.SanitizeText(sb.String())
	if text == "" {
		return "", &util.ExtractionError{Filename: filename, Reason: "no extractable text", Err: util.ErrNoExtractableText}
	}
	return text, nil
}
