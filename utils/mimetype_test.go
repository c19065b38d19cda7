package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageFormat(t *testing.T) {
	tests := []struct {
		contentType string
		format      string
		ocr         bool
	}{
		{"image/png", "png", true},
		{"IMAGE/JPEG", "jpeg", true},
		{"image/jpg", "jpeg", true},
		{"image/tiff; name=scan.tif", "tiff", true},
		{"image/svg+xml", "unknown", false},
		{"application/pdf", "unknown", false},
		{"", "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.format, ImageFormat(tt.contentType))
			assert.Equal(t, tt.ocr, IsOCRImageType(tt.contentType))
		})
	}
}
