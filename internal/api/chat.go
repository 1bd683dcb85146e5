package api

import (
	"context"
	"encoding/json"
	"fmt"

	"agentctl/internal/codec"
	"agentctl/internal/domain"
)

// ChatOptions carries the optional context for a chat call.
type ChatOptions struct {
	// Dataset is encoded as csv_data_b64 when it has both headers and rows.
	Dataset  *domain.TabularDataset
	IndexDir string
	// RAGIndexExists is advisory; nil omits the field.
	RAGIndexExists *bool
	EDAContext     string
}

type chatRequest struct {
	UserQuery      string `json:"user_query"`
	CSVDataB64     string `json:"csv_data_b64,omitempty"`
	IndexDir       string `json:"index_dir,omitempty"`
	RAGIndexExists *bool  `json:"rag_index_exists,omitempty"`
	EDAContext     string `json:"eda_context,omitempty"`
}

type ChatResponse struct {
	Answer  string          `json:"answer"`
	Sources json.RawMessage `json:"sources,omitempty"`
	Query   string          `json:"query,omitempty"`
	// Raw holds every field of the response, including ones not modelled above.
	Raw map[string]any `json:"-"`
}

// Chat asks the backend a question, optionally grounded on a dataset and a
// retrieval index.
func (c *Client) Chat(ctx context.Context, query string, opts ChatOptions) (*ChatResponse, error) {
	req := chatRequest{
		UserQuery:      query,
		IndexDir:       opts.IndexDir,
		RAGIndexExists: opts.RAGIndexExists,
		EDAContext:     opts.EDAContext,
	}
	if opts.Dataset.Tabular() {
		req.CSVDataB64 = codec.EncodeDataset(opts.Dataset)
	}

	var raw json.RawMessage
	if err := c.postJSON(ctx, PathChat, req, &raw); err != nil {
		return nil, err
	}
	var out ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", PathChat, err)
	}
	if err := json.Unmarshal(raw, &out.Raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", PathChat, err)
	}
	return &out, nil
}

// Bool returns a pointer to b, for optional request flags.
func Bool(b bool) *bool { return &b }
