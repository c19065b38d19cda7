package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/internal/storage"
	"aprendeai-extraction-worker/models"
)

// PDFExtractor extracts the text layer of PDF files. Scanned PDFs without a
// text layer come back empty with needsOCR set.
type PDFExtractor struct {
	source storage.Source
}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor(source storage.Source) *PDFExtractor {
	return &PDFExtractor{source: source}
}

func (e *PDFExtractor) Extract(ctx context.Context, file *models.File) (*ExtractionResult, error) {
	content, err := e.source.Fetch(ctx, file.StorageKey)
	switch {
	case errors.Is(err, storage.ErrSourceNotFound), errors.Is(err, storage.ErrInvalidKey):
		logger.Warn("PDF source file not found", "storage_key", file.StorageKey, "source", e.source.Name())
		return sourceMissingResult(), nil
	case errors.Is(err, storage.ErrTooLarge):
		return parseErrorResult(err), nil
	case err != nil:
		return nil, err
	}

	text, pages, warnings, err := readPDFText(ctx, content)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("PDF parse failed", "storage_key", file.StorageKey, "error", err)
		return parseErrorResult(err), nil
	}

	hasTextLayer := strings.TrimSpace(text) != ""
	outcome := models.OutcomeExtracted
	if !hasTextLayer {
		outcome = models.OutcomeOCRRequired
	}

	metadata := map[string]any{
		"pages":        pages,
		"hasTextLayer": hasTextLayer,
		"needsOCR":     !hasTextLayer,
		"outcome":      outcome,
	}
	if len(warnings) > 0 {
		metadata["warnings"] = warnings
	}

	return &ExtractionResult{Text: text, Metadata: metadata}, nil
}

// readPDFText returns the concatenated plain text of every page. The parser
// panics on some malformed inputs, so panics are turned into errors here.
func readPDFText(ctx context.Context, content []byte) (text string, pages int, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, warnings = "", 0, nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages = reader.NumPage()
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}

		if textBuilder.Len() > 0 && pageText != "" {
			textBuilder.WriteString("\n")
		}
		textBuilder.WriteString(pageText)
	}

	return textBuilder.String(), pages, warnings, nil
}
