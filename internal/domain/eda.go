package domain

import "encoding/json"

type Shape struct {
	Rows int `json:"rows" yaml:"rows"`
	Cols int `json:"cols" yaml:"cols"`
}

// EDAProfile is the profiling summary computed by the backend. NumericStats
// holds only the numeric entries; Raw is the whole response as received.
type EDAProfile struct {
	Shape        Shape                         `json:"shape" yaml:"shape"`
	Nulls        map[string]int                `json:"nulls" yaml:"nulls"`
	NumericStats map[string]map[string]float64 `json:"numeric_stats" yaml:"numeric_stats"`
	Dtypes       map[string]string             `json:"dtypes,omitempty" yaml:"dtypes,omitempty"`
	Duplicates   int                           `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	PCA2D        json.RawMessage               `json:"pca2d,omitempty" yaml:"-"`
	Raw          map[string]any                `json:"-" yaml:"-"`
}

// HasPCA reports whether the backend returned a 2D projection.
func (p *EDAProfile) HasPCA() bool {
	return len(p.PCA2D) > 0 && string(p.PCA2D) != "null"
}
