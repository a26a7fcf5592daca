// Package rpcclient provides a JSON-RPC 2.0 client for Bitcoin node
// endpoints with bounded retries and a read-only fallback API.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/httpx"
	klog "github.com/stampchain-io/BTCStampsExplorer-sub010/internal/log"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/metrics"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/retry"
)

// maxResponseSize caps a JSON-RPC response body (32 MB).
const maxResponseSize = 32 << 20

// Config configures a Client.
type Config struct {
	Endpoint string
	// Credential is "user:pass" for basic auth or a bare bearer token.
	Credential  string
	FallbackURL string
	// MaxRetries is the total number of attempts per call.
	MaxRetries     uint
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns retry and timeout defaults for endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Client is a JSON-RPC 2.0 HTTP client with bounded retries.
type Client struct {
	cfg    Config
	http   httpx.Doer
	nextID atomic.Uint64
	logger zerolog.Logger
}

// New creates a client. A nil doer uses a default HTTP client; per-attempt
// timeouts are enforced through the request context either way.
func New(cfg Config, doer httpx.Doer) *Client {
	if doer == nil {
		doer = httpx.NewClient(httpx.Options{})
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	return &Client{
		cfg:    cfg,
		http:   doer,
		logger: klog.RPC,
	}
}

// Endpoint returns the primary endpoint with any password redacted.
func (c *Client) Endpoint() string {
	return redact(c.cfg.Endpoint)
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided
// pointer, retrying transport failures and transient RPC errors up to
// MaxRetries attempts. If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	start := time.Now()
	defer metrics.ObserveRPC(method, start)

	policy := retry.Policy{MaxAttempts: c.cfg.MaxRetries, Delay: c.cfg.RetryDelay}
	err := retry.Do(ctx, policy, IsRetryable,
		func(ctx context.Context, attempt int) error {
			return c.attempt(ctx, method, params, result)
		},
		func(attempt int, err error, next time.Duration) {
			metrics.RPCAttempt(method, "retry")
			c.logger.Debug().
				Str("method", method).
				Int("attempt", attempt).
				Dur("next", next).
				Err(err).
				Msg("RPC attempt failed, retrying")
		})
	if err != nil {
		metrics.RPCAttempt(method, "failed")
		c.logger.Warn().
			Str("method", method).
			Str("endpoint", c.Endpoint()).
			Err(err).
			Msg("RPC call failed")
		return err
	}
	metrics.RPCAttempt(method, "ok")
	return nil
}

// attempt performs one HTTP round trip bounded by RequestTimeout.
func (c *Client) attempt(ctx context.Context, method string, params []interface{}, result interface{}) error {
	endpoint := c.Endpoint()

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	attemptCtx := ctx
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{
			Endpoint: endpoint,
			Timeout:  errors.Is(err, context.DeadlineExceeded) || isTimeout(err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Timeout:    errors.Is(err, context.DeadlineExceeded),
			Err:        fmt.Errorf("read response: %w", err),
		}
	}

	var rpcResp response
	decodeErr := json.Unmarshal(data, &rpcResp)

	// Bitcoin Core answers RPC errors with a non-2xx status and a JSON-RPC
	// body; the error object wins over the status code.
	if decodeErr == nil && rpcResp.Error != nil {
		return &RPCError{
			Code:     rpcResp.Error.Code,
			Message:  rpcResp.Error.Message,
			Endpoint: endpoint,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	if decodeErr != nil {
		return &TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", decodeErr),
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	cred := c.cfg.Credential
	if cred == "" {
		return
	}
	if user, pass, ok := strings.Cut(cred, ":"); ok {
		req.SetBasicAuth(user, pass)
		return
	}
	req.Header.Set("Authorization", "Bearer "+cred)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return u.Redacted()
}
