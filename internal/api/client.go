// Package api is the client for the analysis backend: chat, CSV/PDF upload,
// EDA profiling, RAG indexing and search, and the streaming chat endpoint.
//
// Every call is an independent request. Nothing is queued, deduplicated or
// cached, and the client holds no session state; the index directory token
// returned by RAGIndex is threaded through by the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentctl/internal/metrics"
)

const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultMaxPCAPoints = 800
	defaultTimeout      = 120 * time.Second
)

// Endpoint paths relative to the base URL.
const (
	PathChat       = "/api/chat"
	PathChatStream = "/api/chat/stream"
	PathUploadCSV  = "/api/upload/csv"
	PathUploadPDF  = "/api/upload/pdf"
	PathEDAProfile = "/api/eda/profile"
	PathRAGIndex   = "/api/rag/index"
	PathRAGSearch  = "/api/rag/search"
	PathHealth     = "/api/health"
)

type Config struct {
	BaseURL string
	// Timeout bounds request/response calls. Negative disables it; zero uses the default.
	Timeout    time.Duration
	MaxRetries int
	// CloseOnFirstEvent makes StreamChat return after the first event.
	CloseOnFirstEvent bool
	// HTTPClient replaces both internal clients when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Collector
}

type Client struct {
	baseURL           string
	maxRetries        int
	closeOnFirstEvent bool
	http              *http.Client
	stream            *http.Client
	logger            *slog.Logger
	metrics           *metrics.Collector
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default
	}

	c := &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:        cfg.MaxRetries,
		closeOnFirstEvent: cfg.CloseOnFirstEvent,
		logger:            cfg.Logger,
		metrics:           cfg.Metrics,
	}
	if cfg.HTTPClient != nil {
		c.http, c.stream = cfg.HTTPClient, cfg.HTTPClient
	} else {
		c.http, c.stream = newHTTPClients(cfg.Timeout)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(endpoint string) string {
	return c.baseURL + endpoint
}

// postJSON marshals payload, posts it to endpoint and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", endpoint, err)
	}
	return c.do(ctx, http.MethodPost, endpoint, "application/json", body, out)
}

// do sends one logical request (possibly retried) and decodes a 2xx JSON body
// into out. Non-2xx responses become *HTTPError carrying the raw body.
func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body []byte, out any) error {
	start := time.Now()
	inflight := c.metrics.Gauge("agentctl_api_inflight_requests", "Backend requests in flight", "")
	inflight.Inc()
	defer inflight.Dec()

	buildReq := func() (*http.Request, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), rd)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doWithRetry(ctx, c.http, c.maxRetries, buildReq, c.logger)
	if err != nil {
		c.record(endpoint, "error", start)
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	c.record(endpoint, strconv.Itoa(resp.StatusCode), start)
	c.logger.Debug("backend call",
		"method", method, "endpoint", endpoint,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(method, endpoint, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func newHTTPError(method, endpoint string, resp *http.Response) *HTTPError {
	text, _ := io.ReadAll(resp.Body)
	return &HTTPError{Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(text)}
}

func (c *Client) record(endpoint, status string, start time.Time) {
	c.metrics.Counter("agentctl_api_requests_total", "Backend requests by endpoint and status",
		metrics.Labels("endpoint", endpoint, "status", status)).Inc()
	c.metrics.Histogram("agentctl_api_latency_seconds", "Backend request latency in seconds",
		metrics.Labels("endpoint", endpoint), metrics.LatencyBuckets).Observe(time.Since(start).Seconds())
}
