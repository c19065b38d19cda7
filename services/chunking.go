package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"aprendeai-extraction-worker/models"
)

// DefaultPDFChunkSize is the PDF window size in characters.
const DefaultPDFChunkSize = 800

// ChunkingEngine splits extracted text into ordered chunks. The strategy
// depends on the content type.
type ChunkingEngine struct {
	pdfChunkSize   int
	paragraphRegex *regexp.Regexp
}

// NewChunkingEngine creates a chunking engine. Non-positive sizes fall back to DefaultPDFChunkSize.
func NewChunkingEngine(pdfChunkSize int) *ChunkingEngine {
	if pdfChunkSize <= 0 {
		pdfChunkSize = DefaultPDFChunkSize
	}
	return &ChunkingEngine{
		pdfChunkSize:   pdfChunkSize,
		paragraphRegex: regexp.MustCompile(`\n\s*\n`),
	}
}

// Chunk returns the chunks for text with ChunkIndex contiguous from 0.
// ContentID, Generation and CreatedAt are left for the persistence layer.
// metadata is the extractor output; no strategy reads it yet.
func (ce *ChunkingEngine) Chunk(contentType models.ContentType, text string, metadata map[string]any) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return []models.Chunk{}
	}

	switch contentType {
	case models.ContentTypePDF:
		return ce.chunkPDF(text)
	case models.ContentTypeDOCX:
		return ce.chunkDOCX(text)
	default:
		return []models.Chunk{newChunk(0, text)}
	}
}

// chunkPDF cuts fixed character windows without overlap. Windows are not
// trimmed, so joining all chunks gives back the text minus blank windows.
// TODO: map window offsets to page numbers once the extractor reports page boundaries.
func (ce *ChunkingEngine) chunkPDF(text string) []models.Chunk {
	runes := []rune(text)
	chunks := make([]models.Chunk, 0, len(runes)/ce.pdfChunkSize+1)

	for start := 0; start < len(runes); start += ce.pdfChunkSize {
		end := start + ce.pdfChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		window := string(runes[start:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		chunks = append(chunks, newChunk(len(chunks), window))
	}

	return chunks
}

func (ce *ChunkingEngine) chunkDOCX(text string) []models.Chunk {
	paragraphs := ce.paragraphRegex.Split(text, -1)
	chunks := make([]models.Chunk, 0, len(paragraphs))

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		chunks = append(chunks, newChunk(len(chunks), paragraph))
	}

	return chunks
}

func newChunk(index int, text string) models.Chunk {
	return models.Chunk{
		ChunkIndex:    index,
		Text:          text,
		TokenEstimate: EstimateTokens(text),
	}
}

// EstimateTokens approximates the token count as one token per four characters, rounded up.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
