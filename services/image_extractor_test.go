package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aprendeai-extraction-worker/models"
)

func TestImageExtractor(t *testing.T) {
	t.Run("ocr disabled", func(t *testing.T) {
		result, err := NewImageExtractor(false, "tesseract").Extract(context.Background(), &models.File{})
		require.NoError(t, err)
		assert.Empty(t, result.Text)
		assert.Equal(t, "OCR required but disabled", result.Metadata["message"])
		assert.Equal(t, false, result.Metadata["ocrEnabled"])
		assert.NotContains(t, result.Metadata, "ocrProvider")
	})

	t.Run("ocr enabled", func(t *testing.T) {
		result, err := NewImageExtractor(true, "tesseract").Extract(context.Background(), &models.File{MimeType: "image/png"})
		require.NoError(t, err)
		assert.Empty(t, result.Text)
		assert.Equal(t, "OCR not implemented", result.Metadata["message"])
		assert.Equal(t, "png", result.Metadata["imageFormat"])
		assert.NotContains(t, result.Metadata, "warnings")
		assert.Equal(t, true, result.Metadata["ocrEnabled"])
		assert.Equal(t, "tesseract", result.Metadata["ocrProvider"])
		assert.Equal(t, models.OutcomeOCRRequired, result.Metadata["outcome"])
	})

	t.Run("vector image", func(t *testing.T) {
		result, err := NewImageExtractor(true, "tesseract").Extract(context.Background(), &models.File{MimeType: "image/svg+xml"})
		require.NoError(t, err)
		assert.Equal(t, "unknown", result.Metadata["imageFormat"])
		assert.Len(t, result.Metadata["warnings"], 1)
	})
}
