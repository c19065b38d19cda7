package models

import "time"

// ExtractionStatus is stored verbatim in content_extractions.status.
type ExtractionStatus string

const (
	StatusPending ExtractionStatus = "PENDING"
	StatusRunning ExtractionStatus = "RUNNING"
	StatusDone    ExtractionStatus = "DONE"
	StatusFailed  ExtractionStatus = "FAILED"
)

// ContentExtraction tracks extraction of a single Content. One row per content_id.
type ContentExtraction struct {
	ContentID        string           `bson:"content_id" json:"content_id"`
	Status           ExtractionStatus `bson:"status" json:"status"`
	ExtractedTextRef string           `bson:"extracted_text_ref,omitempty" json:"extracted_text_ref,omitempty"`
	Metadata         map[string]any   `bson:"metadata,omitempty" json:"metadata,omitempty"`
	ChunkGeneration  string           `bson:"chunk_generation,omitempty" json:"chunk_generation,omitempty"`
	RunningSince     *time.Time       `bson:"running_since,omitempty" json:"running_since,omitempty"`
	CreatedAt        time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `bson:"updated_at" json:"updated_at"`
}

// Extraction outcomes recorded under metadata["outcome"]. They separate the
// DONE cases that otherwise look identical (no text, no chunks).
const (
	OutcomeExtracted     = "extracted"
	OutcomeEmptyText     = "empty_text"
	OutcomeSourceMissing = "source_missing"
	OutcomeParseError    = "parse_error"
	OutcomeOCRRequired   = "ocr_required"
)

// Failure reasons recorded under metadata["reason"] for FAILED rows.
const (
	ReasonContentNotFound = "content_not_found"
	ReasonFileMissing     = "file_missing"
	ReasonUnsupportedType = "unsupported_type"
	ReasonTimeout         = "timeout"
	ReasonPersistence     = "persistence"
	ReasonPanic           = "panic"
	ReasonCancelled       = "cancelled"
	ReasonStale           = "stale"
)
