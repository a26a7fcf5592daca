// Package httpx builds the HTTP clients used for outbound calls and holds
// small helpers for JSON and text GETs.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/decred/go-socks/socks"
)

// maxBodySize caps response bodies read by the helpers (4 MB).
const maxBodySize = 4 << 20

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a client built by NewClient.
type Options struct {
	// Timeout bounds a whole request. Zero means no client-level timeout;
	// callers then rely on their context.
	Timeout time.Duration
	// Proxy is a SOCKS5 proxy address (host:port). Empty dials directly.
	Proxy     string
	ProxyUser string
	ProxyPass string
	// TorIsolation requests a fresh circuit per connection.
	TorIsolation bool
}

// NewClient returns an HTTP client honoring opts.
func NewClient(opts Options) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:         opts.Proxy,
			Username:     opts.ProxyUser,
			Password:     opts.ProxyPass,
			TorIsolation: opts.TorIsolation,
		}
		transport.Proxy = nil
		transport.DialContext = proxy.DialContext
	} else {
		transport.DialContext = (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("GET %s: %s: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Get issues a GET and returns the body of a 2xx response.
func Get(ctx context.Context, doer Doer, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(body), 200),
		}
	}
	return body, nil
}

// GetJSON issues a GET and decodes a 2xx JSON body into v.
func GetJSON(ctx context.Context, doer Doer, url string, v any) error {
	body, err := Get(ctx, doer, url, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
