package rpcclient

import (
	"context"
	"errors"
	"fmt"
)

// Bitcoin Core and JSON-RPC error codes the client reacts to.
const (
	CodeInWarmup      = -28
	CodeInternalError = -32603
	CodeServerBusy    = -32000
	CodeInvalidParams = -8
	CodeNoSuchTx      = -5
	CodeMethodMissing = -32601
)

// ErrNoFallback is returned when a fallback read is needed but no
// fallback URL is configured.
var ErrNoFallback = errors.New("no fallback url configured")

// RPCError is returned when the server responds with a JSON-RPC error object.
type RPCError struct {
	Code     int
	Message  string
	Endpoint string
}

func (e *RPCError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rpc error %d from %s: %s", e.Code, e.Endpoint, e.Message)
}

// TransportError is a network failure, non-2xx response or timeout.
type TransportError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("transport error from %s: timeout: %v", e.Endpoint, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error from %s: http %d: %v", e.Endpoint, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("transport error from %s: %v", e.Endpoint, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether err warrants another attempt: any transport
// failure, or an RPC error signalling a transient server condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return true
	}
	var rerr *RPCError
	if errors.As(err, &rerr) {
		switch rerr.Code {
		case CodeInWarmup, CodeInternalError, CodeServerBusy:
			return true
		}
	}
	return false
}
