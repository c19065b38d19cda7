package models

import "time"

// Chunk is one ordered slice of a Content's extracted text.
type Chunk struct {
	ContentID     string    `bson:"content_id" json:"content_id"`
	Generation    string    `bson:"generation" json:"-"`
	ChunkIndex    int       `bson:"chunk_index" json:"chunk_index"`
	Text          string    `bson:"text" json:"text"`
	PageNumber    *int      `bson:"page_number,omitempty" json:"page_number,omitempty"`
	TokenEstimate int       `bson:"token_estimate,omitempty" json:"token_estimate,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
