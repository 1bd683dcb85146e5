package api

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// backoff returns the wait before the given retry attempt (1-based).
// Squared seconds plus up to 50% jitter.
var backoff = func(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * time.Second
	return base + time.Duration(rand.Int64N(int64(base/2+1)))
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// doWithRetry executes the request built by buildReq. Transport failures, 5xx
// and 429 are retried up to maxRetries times; with maxRetries == 0 the first
// outcome is returned unchanged. A retryable status on the last attempt is
// returned as a response so the caller can surface its body.
func doWithRetry(ctx context.Context, client *http.Client, maxRetries int, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			logger.Warn("retrying request", "attempt", attempt+1, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			if attempt < maxRetries && ctx.Err() == nil {
				logger.Warn("request failed, will retry", "url", req.URL.Path, "err", err)
				continue
			}
			return nil, err
		}

		if retryableStatus(resp.StatusCode) && attempt < maxRetries {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			logger.Warn("server error, will retry",
				"url", req.URL.Path, "status", resp.StatusCode, "body", string(body))
			continue
		}

		return resp, nil
	}
}
