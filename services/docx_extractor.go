package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/internal/storage"
	"aprendeai-extraction-worker/models"
)

const (
	wordMLNamespace  = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	docxDocumentPart = "word/document.xml"
	// upper bound on the decompressed main document part
	maxDocumentPartSize = 64 << 20
)

// DOCXExtractor reads paragraph text from word/document.xml.
type DOCXExtractor struct {
	source storage.Source
}

// NewDOCXExtractor creates a new DOCX extractor
func NewDOCXExtractor(source storage.Source) *DOCXExtractor {
	return &DOCXExtractor{source: source}
}

func (e *DOCXExtractor) Extract(ctx context.Context, file *models.File) (*ExtractionResult, error) {
	content, err := e.source.Fetch(ctx, file.StorageKey)
	switch {
	case errors.Is(err, storage.ErrSourceNotFound), errors.Is(err, storage.ErrInvalidKey):
		logger.Warn("DOCX source file not found", "storage_key", file.StorageKey, "source", e.source.Name())
		return sourceMissingResult(), nil
	case errors.Is(err, storage.ErrTooLarge):
		return parseErrorResult(err), nil
	case err != nil:
		return nil, err
	}

	doc, err := parseDOCX(content)
	if err != nil {
		logger.Warn("DOCX parse failed", "storage_key", file.StorageKey, "error", err)
		return parseErrorResult(err), nil
	}

	text := strings.Join(doc.paragraphs, "\n\n")
	outcome := models.OutcomeExtracted
	if strings.TrimSpace(text) == "" {
		outcome = models.OutcomeEmptyText
	}

	metadata := map[string]any{
		"paragraphs": len(doc.paragraphs),
		"outcome":    outcome,
	}
	if len(doc.warnings) > 0 {
		metadata["warnings"] = doc.warnings
	}

	return &ExtractionResult{Text: text, Metadata: metadata}, nil
}

type docxDocument struct {
	paragraphs []string
	warnings   []string
}

func parseDOCX(content []byte) (*docxDocument, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == docxDocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return &docxDocument{warnings: []string{docxDocumentPart + " not found in archive"}}, nil
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", docxDocumentPart, err)
	}
	defer rc.Close()

	return parseDocumentXML(io.LimitReader(rc, maxDocumentPartSize))
}

// parseDocumentXML walks the WordprocessingML body. Paragraphs may nest
// (text boxes hold their own w:p), so open paragraphs are kept on a stack.
func parseDocumentXML(r io.Reader) (*docxDocument, error) {
	decoder := xml.NewDecoder(r)
	doc := &docxDocument{}

	var (
		open          []*strings.Builder
		drawings      int
		deletedRuns   int
		fieldCodes    int
		tocFieldFound bool
	)

	appendText := func(s string) {
		if len(open) == 0 {
			return
		}
		open[len(open)-1].WriteString(s)
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", docxDocumentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordMLNamespace {
				continue
			}
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				var text string
				if err := decoder.DecodeElement(&text, &t); err != nil {
					return nil, fmt.Errorf("decode text run: %w", err)
				}
				appendText(text)
			case "tab":
				appendText("\t")
			case "br", "cr":
				appendText("\n")
			case "drawing", "pict":
				drawings++
			case "delText":
				deletedRuns++
			case "instrText":
				var instr string
				if err := decoder.DecodeElement(&instr, &t); err != nil {
					return nil, fmt.Errorf("decode field code: %w", err)
				}
				fieldCodes++
				if strings.HasPrefix(strings.TrimSpace(instr), "TOC") {
					tocFieldFound = true
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordMLNamespace || t.Name.Local != "p" || len(open) == 0 {
				continue
			}
			paragraph := open[len(open)-1].String()
			open = open[:len(open)-1]
			if strings.TrimSpace(paragraph) != "" {
				doc.paragraphs = append(doc.paragraphs, paragraph)
			}
		}
	}

	if drawings > 0 {
		doc.warnings = append(doc.warnings, fmt.Sprintf("%d embedded drawing(s) skipped", drawings))
	}
	if deletedRuns > 0 {
		doc.warnings = append(doc.warnings, fmt.Sprintf("%d tracked deletion(s) ignored", deletedRuns))
	}
	if tocFieldFound {
		doc.warnings = append(doc.warnings, "table of contents field skipped; cached entries kept as text")
	} else if fieldCodes > 0 {
		doc.warnings = append(doc.warnings, fmt.Sprintf("%d field code(s) skipped", fieldCodes))
	}

	return doc, nil
}
