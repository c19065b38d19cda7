package services

import (
	"context"

	"aprendeai-extraction-worker/models"
	"aprendeai-extraction-worker/utils"
)

// ImageExtractor stands in for OCR. It never reads the file; it only records
// whether OCR would have been attempted.
type ImageExtractor struct {
	ocrEnabled  bool
	ocrProvider string
}

func NewImageExtractor(ocrEnabled bool, ocrProvider string) *ImageExtractor {
	return &ImageExtractor{ocrEnabled: ocrEnabled, ocrProvider: ocrProvider}
}

func (e *ImageExtractor) Extract(_ context.Context, file *models.File) (*ExtractionResult, error) {
	metadata := map[string]any{
		"ocrEnabled":  e.ocrEnabled,
		"imageFormat": utils.ImageFormat(file.MimeType),
		"outcome":     models.OutcomeOCRRequired,
	}

	if !e.ocrEnabled {
		metadata["message"] = "OCR required but disabled"
		return &ExtractionResult{Metadata: metadata}, nil
	}

	metadata["message"] = "OCR not implemented"
	metadata["ocrProvider"] = e.ocrProvider
	if !utils.IsOCRImageType(file.MimeType) {
		metadata["warnings"] = []string{"image type " + file.MimeType + " is not supported by OCR"}
	}
	return &ExtractionResult{Metadata: metadata}, nil
}
