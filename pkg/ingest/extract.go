package ingest

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Extractor turns one MIME type's binary payload into plain text
type Extractor interface {
	Extract(r io.Reader) (string, error)
}

// ExtractorRegistry maps MIME types to extractors. Text types are handled
// natively; binary formats plug in through Register.
type ExtractorRegistry struct {
	byMIME map[string]Extractor
}

func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{byMIME: make(map[string]Extractor)}
}

// Register installs an extractor for a MIME type, replacing any previous one
func (r *ExtractorRegistry) Register(mimeType string, ex Extractor) {
	r.byMIME[strings.ToLower(mimeType)] = ex
}

// Supported reports whether content of this MIME type can be ingested
func (r *ExtractorRegistry) Supported(mimeType string) bool {
	if isTextMIME(mimeType) {
		return true
	}
	_, ok := r.byMIME[normalizeMIME(mimeType)]
	return ok
}

// Extract produces the document's plain text. Text and markdown pass
// through after UTF-8 validation; other types dispatch to a registered
// extractor.
func (r *ExtractorRegistry) Extract(mimeType string, body io.Reader) (string, error) {
	mt := normalizeMIME(mimeType)

	if isTextMIME(mt) {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read document body: %w", err)
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("document is not valid utf-8")
		}
		return string(data), nil
	}

	ex, ok := r.byMIME[mt]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", mimeType)
	}
	text, err := ex.Extract(body)
	if err != nil {
		return "", fmt.Errorf("extraction failed for %s: %w", mt, err)
	}
	return text, nil
}

func isTextMIME(mimeType string) bool {
	mt := normalizeMIME(mimeType)
	return mt == "text/plain" || mt == "text/markdown"
}

// normalizeMIME strips parameters (charset) and lowercases the type
func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
