package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"agentctl/internal/domain"
)

type SearchOptions struct {
	IndexDir string
	// RAGIndexExists is advisory; nil omits the field.
	RAGIndexExists *bool
}

type searchRequest struct {
	Query          string `json:"query"`
	IndexDir       string `json:"index_dir,omitempty"`
	RAGIndexExists *bool  `json:"rag_index_exists,omitempty"`
}

type searchResponse struct {
	Hits []rawHit `json:"hits"`
}

type rawHit struct {
	Text     flexString   `json:"text"`
	Metadata *rawMetadata `json:"metadata"`
	Score    flexNumber   `json:"score"`
}

type rawMetadata struct {
	Source flexString `json:"source"`
	Page   flexNumber `json:"page"`
}

// RAGSearch runs a retrieval query. Hits are normalized: missing or
// non-numeric scores and pages become 0, a missing source becomes "".
func (c *Client) RAGSearch(ctx context.Context, query string, opts SearchOptions) ([]domain.SearchHit, error) {
	req := searchRequest{Query: query, IndexDir: opts.IndexDir, RAGIndexExists: opts.RAGIndexExists}
	var resp searchResponse
	if err := c.postJSON(ctx, PathRAGSearch, req, &resp); err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		hit := domain.SearchHit{Text: string(h.Text), Score: float64(h.Score)}
		if h.Metadata != nil {
			hit.Metadata.Source = string(h.Metadata.Source)
			hit.Metadata.Page = int(h.Metadata.Page)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// flexNumber decodes a JSON number, numeric string or boolean.
// Anything else, including null and NaN, decodes to 0.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	*f = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	var v float64
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		v = n
	case 't':
		v = 1
	case 'f', 'n', '{', '[':
		return nil
	default:
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = flexNumber(v)
	return nil
}

// flexString decodes a JSON string or number; other values decode to "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	*f = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*f = flexString(data)
	}
	return nil
}
