package domain

import "time"

// DatasetKind tags how an uploaded dataset was produced.
type DatasetKind string

const (
	KindCSV  DatasetKind = "csv"
	KindJSON DatasetKind = "json"
)

// Row maps a header to its cell value. Keys are a subset of the dataset headers.
type Row map[string]any

// Cell returns the value for header h, or nil when the row has no such key.
func (r Row) Cell(h string) any {
	if r == nil {
		return nil
	}
	return r[h]
}

// TabularDataset is an uploaded table held in application state.
// Headers may repeat; no uniqueness is enforced.
type TabularDataset struct {
	Kind       DatasetKind `json:"type"`
	Filename   string      `json:"filename"`
	Size       int64       `json:"size"`
	Headers    []string    `json:"headers"`
	Rows       []Row       `json:"rows"`
	TotalRows  int         `json:"totalRows"`
	Data       any         `json:"data,omitempty"` // raw payload for json uploads
	UploadedAt time.Time   `json:"uploadedAt"`
}

// Tabular reports whether both headers and rows are present.
// Empty but non-nil slices count as present.
func (d *TabularDataset) Tabular() bool {
	return d != nil && d.Headers != nil && d.Rows != nil
}
