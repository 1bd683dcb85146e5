package api

import (
	"context"
	"net/http"
)

// HealthStatus is the gateway's view of itself and its upstream servers.
type HealthStatus struct {
	GatewayOK   bool  `json:"gateway_ok" yaml:"gateway_ok"`
	CoreOK      bool  `json:"core_ok" yaml:"core_ok"`
	DataToolsOK bool  `json:"data_tools_ok" yaml:"data_tools_ok"`
	TTFBMs      int64 `json:"ttfb_ms" yaml:"ttfb_ms"`
}

// Healthy reports whether the gateway and both upstreams are up.
func (h *HealthStatus) Healthy() bool {
	return h.GatewayOK && h.CoreOK && h.DataToolsOK
}

func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, PathHealth, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
