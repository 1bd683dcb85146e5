package domain

type HitMetadata struct {
	Source string `json:"source" yaml:"source"`
	Page   int    `json:"page" yaml:"page"`
}

// SearchHit is a normalized retrieval hit returned by RAG search.
type SearchHit struct {
	Text     string      `json:"text" yaml:"text"`
	Metadata HitMetadata `json:"metadata" yaml:"metadata"`
	Score    float64     `json:"score" yaml:"score"`
}
