package api

import (
	"context"
	"encoding/json"
	"fmt"

	"agentctl/internal/codec"
	"agentctl/internal/domain"
)

type edaRequest struct {
	CSVB64       string `json:"csv_b64"`
	MaxPCAPoints int    `json:"max_pca_points"`
}

// edaResponse decodes the backend profile leniently. Stats are free-form per
// column: pandas describe() mixes numbers with strings such as "top".
type edaResponse struct {
	Shape struct {
		Rows flexNumber `json:"rows"`
		Cols flexNumber `json:"cols"`
	} `json:"shape"`
	Nulls        map[string]flexNumber      `json:"nulls"`
	NumericStats map[string]json.RawMessage `json:"numeric_stats"`
	Dtypes       map[string]flexString      `json:"dtypes"`
	Duplicates   flexNumber                 `json:"duplicates"`
	PCA2D        json.RawMessage            `json:"pca2d"`
}

// EDAProfile asks the backend to profile d. A dataset without headers or rows
// is rejected before any request is sent. maxPCAPoints <= 0 uses DefaultMaxPCAPoints.
func (c *Client) EDAProfile(ctx context.Context, d *domain.TabularDataset, maxPCAPoints int) (*domain.EDAProfile, error) {
	if !d.Tabular() {
		return nil, &ValidationError{Op: "eda profile", Reason: ErrInvalidDataset.Error(), Err: ErrInvalidDataset}
	}
	if maxPCAPoints <= 0 {
		maxPCAPoints = DefaultMaxPCAPoints
	}

	var raw json.RawMessage
	req := edaRequest{CSVB64: codec.EncodeDataset(d), MaxPCAPoints: maxPCAPoints}
	if err := c.postJSON(ctx, PathEDAProfile, req, &raw); err != nil {
		return nil, err
	}
	var resp edaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", PathEDAProfile, err)
	}
	out := &domain.EDAProfile{
		Shape:      domain.Shape{Rows: int(resp.Shape.Rows), Cols: int(resp.Shape.Cols)},
		Nulls:      make(map[string]int, len(resp.Nulls)),
		Duplicates: int(resp.Duplicates),
		PCA2D:      resp.PCA2D,
	}
	if err := json.Unmarshal(raw, &out.Raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", PathEDAProfile, err)
	}
	for col, n := range resp.Nulls {
		out.Nulls[col] = int(n)
	}
	if len(resp.Dtypes) > 0 {
		out.Dtypes = make(map[string]string, len(resp.Dtypes))
		for col, t := range resp.Dtypes {
			out.Dtypes[col] = string(t)
		}
	}
	out.NumericStats = numericStats(resp.NumericStats)
	return out, nil
}

// numericStats keeps the entries that are JSON numbers and drops the rest,
// including columns whose stats are not an object.
func numericStats(in map[string]json.RawMessage) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(in))
	for col, rawStats := range in {
		var stats map[string]json.RawMessage
		if err := json.Unmarshal(rawStats, &stats); err != nil {
			continue
		}
		kept := make(map[string]float64, len(stats))
		for name, v := range stats {
			var f float64
			if err := json.Unmarshal(v, &f); err == nil {
				kept[name] = f
			}
		}
		out[col] = kept
	}
	return out
}
