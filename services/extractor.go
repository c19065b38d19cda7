package services

import (
	"context"

	"aprendeai-extraction-worker/models"
)

// Extractor turns the bytes behind a File into plain text.
//
// Conditions where no text is available (missing source, parser failure, OCR
// needed) are reported through Metadata["outcome"] with a nil error. An error
// is returned only for unexpected failures such as storage I/O errors.
type Extractor interface {
	Extract(ctx context.Context, file *models.File) (*ExtractionResult, error)
}

// ExtractionResult contains the extracted text and diagnostic metadata.
type ExtractionResult struct {
	Text     string
	Metadata map[string]any
}

func sourceMissingResult() *ExtractionResult {
	return &ExtractionResult{
		Text: "",
		Metadata: map[string]any{
			"message":      "file not found",
			"pages":        0,
			"hasTextLayer": false,
			"outcome":      models.OutcomeSourceMissing,
		},
	}
}

func parseErrorResult(err error) *ExtractionResult {
	return &ExtractionResult{
		Text: "",
		Metadata: map[string]any{
			"error":   err.Error(),
			"outcome": models.OutcomeParseError,
		},
	}
}
