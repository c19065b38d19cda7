package utils

import (
	"mime"
	"strings"
)

// ocrImageTypes are the raster formats an OCR provider can read.
var ocrImageTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/tiff": "tiff",
	"image/bmp":  "bmp",
}

// normalizeMimeType lowercases the type and drops parameters such as charset.
func normalizeMimeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// IsOCRImageType checks if the content type is a raster image OCR can process
func IsOCRImageType(contentType string) bool {
	_, ok := ocrImageTypes[normalizeMimeType(contentType)]
	return ok
}

// ImageFormat returns the short format name for an image content type, or
// "unknown" for anything else (including vector formats such as SVG).
func ImageFormat(contentType string) string {
	if format, ok := ocrImageTypes[normalizeMimeType(contentType)]; ok {
		return format
	}
	return "unknown"
}
