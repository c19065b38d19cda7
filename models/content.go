package models

// ContentType identifies the kind of learning material behind a Content.
type ContentType string

const (
	ContentTypePDF   ContentType = "PDF"
	ContentTypeDOCX  ContentType = "DOCX"
	ContentTypeImage ContentType = "IMAGE"
	ContentTypeVideo ContentType = "VIDEO"
	ContentTypeAudio ContentType = "AUDIO"
)

// Content is owned by the main application; the worker only reads it.
type Content struct {
	ID     string      `bson:"_id" json:"id"`
	Type   ContentType `bson:"type" json:"type"`
	Title  string      `bson:"title,omitempty" json:"title,omitempty"`
	FileID string      `bson:"file_id,omitempty" json:"file_id,omitempty"`
	File   *File       `bson:"-" json:"file,omitempty"`
}

// File is the storage reference for the raw uploaded bytes.
type File struct {
	ID           string `bson:"_id" json:"id"`
	StorageKey   string `bson:"storage_key" json:"storage_key"`
	MimeType     string `bson:"mime_type" json:"mime_type"`
	OriginalName string `bson:"original_name,omitempty" json:"original_name,omitempty"`
	SizeBytes    int64  `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`
}
