package domain

import "time"

// PdfDocument is a PDF selected for upload and indexing.
type PdfDocument struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Path       string    `json:"path,omitempty" yaml:"path,omitempty"`
	Size       int64     `json:"size" yaml:"size"`
	UploadedAt time.Time `json:"uploadedAt" yaml:"uploadedAt"`
	Pages      int       `json:"pages" yaml:"pages"` // approximate when the file could not be parsed
	Processed  bool      `json:"processed" yaml:"processed"`
}
