package domain

import "time"

// Result categories used for grouping.
const (
	ResultSummary     = "summary"
	ResultStatistics  = "statistics"
	ResultCorrelation = "correlation"
	ResultAnomaly     = "anomaly"
	ResultEDA         = "eda"
	ResultIndexing    = "indexing"
	ResultIndexError  = "indexing_error"
	ResultRAG         = "rag"
)

// AnalysisResult is one entry of the append-only analysis log.
// Content is freeform display text, sometimes JSON.
type AnalysisResult struct {
	Type      string    `json:"type" yaml:"type"`
	SubType   string    `json:"subType,omitempty" yaml:"subType,omitempty"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

func NewAnalysisResult(kind, subType, content string) AnalysisResult {
	return AnalysisResult{Type: kind, SubType: subType, Content: content, Timestamp: time.Now()}
}
