package api

import (
	"net"
	"net/http"
	"time"
)

// newTransport returns a pooled transport. A zero responseHeaderTimeout waits
// for headers indefinitely.
func newTransport(responseHeaderTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// newHTTPClients builds the client used for request/response calls and the one
// used for event streams. A zero timeout leaves requests unbounded. Streams get
// their own transport with no header timeout and rely on context cancellation.
func newHTTPClients(timeout time.Duration) (request, stream *http.Client) {
	return &http.Client{Timeout: timeout, Transport: newTransport(timeout)},
		&http.Client{Transport: newTransport(0)}
}
