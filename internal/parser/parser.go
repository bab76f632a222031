// Package parser extracts plain text from uploaded file bytes for the
// declared file type. It has no knowledge of documents, chunks, or status;
// it is a pure bytes-in, text-out collaborator invoked by the ingestion
// pipeline's parse step.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/ragdocs/docuqa/internal/apperr"
)

// Result is the extracted text plus whatever structural counts the file
// format can report.
type Result struct {
	Text      string
	PageCount int
}

// Parse extracts text from raw bytes for the given declared file type.
// fileType is one of "txt" or "pdf"; any other value is a validation error.
func Parse(fileType string, content []byte) (Result, error) {
	switch strings.ToLower(fileType) {
	case "txt":
		return parseText(content)
	case "pdf":
		return parsePDF(content)
	default:
		return Result{}, apperr.Validationf("unsupported file type %q", fileType)
	}
}

func parseText(content []byte) (Result, error) {
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(content) {
		return Result{}, apperr.Validation("file is not valid UTF-8 text")
	}
	return Result{Text: string(content)}, nil
}

func parsePDF(content []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, apperr.Provider("parse pdf", err)
	}
	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("parser: extract page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Result{}, apperr.Validation("pdf contains no extractable text")
	}
	return Result{Text: text, PageCount: numPages}, nil
}
