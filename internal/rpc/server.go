// Package rpc implements the JSON-RPC 2.0 API server.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/config"
	klog "github.com/stampchain-io/BTCStampsExplorer-sub010/internal/log"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/metrics"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/oracle"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/utxo"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// UTXOService resolves outputs. *utxo.Resolver satisfies it.
type UTXOService interface {
	GetUTXO(ctx context.Context, address, txid string, vout uint32, opts utxo.Options) (*types.UTXO, error)
	GetUTXOs(ctx context.Context, address string, opts utxo.ListOptions) ([]*types.UTXO, error)
	GetRawTransactionHex(ctx context.Context, txid string) (string, bool)
}

// PriceService serves price quotes. *oracle.Oracle satisfies it.
type PriceService interface {
	Quote(ctx context.Context, opts oracle.QuoteOptions) types.PriceQuote
	Invalidate(ctx context.Context) error
}

// FeeRateService serves fee rates. *oracle.FeeRates satisfies it.
type FeeRateService interface {
	Estimate(ctx context.Context, blocks int, preferred string) types.FeeEstimate
	Invalidate(ctx context.Context) error
}

// Services are the backends the server exposes. Nil services disable
// their endpoints.
type Services struct {
	UTXOs  UTXOService
	Prices PriceService
	Fees   FeeRateService
	Params *chaincfg.Params
}

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr        string
	svc         Services
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
}

// New creates a new RPC server. The srvCfg parameter controls IP filtering
// and CORS. A zero-value ServerConfig allows all IPs and disables CORS.
func New(addr string, svc Services, srvCfg ...config.ServerConfig) *Server {
	if svc.Params == nil {
		svc.Params = &chaincfg.MainNetParams
	}
	s := &Server{
		addr:   addr,
		svc:    svc,
		logger: klog.Server,
	}

	if len(srvCfg) > 0 {
		s.allowedNets = parseAllowedIPs(srvCfg[0].AllowedIPs)
		s.corsOrigins = srvCfg[0].CORSOrigins
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	mux.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	return s
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	// IP filtering.
	if len(s.allowedNets) > 0 {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ip := net.ParseIP(host)
		if ip == nil || !s.isIPAllowed(ip) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	// CORS headers.
	s.setCORSHeaders(w, r)

	// Handle CORS preflight.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	start := time.Now()
	result, rpcErr := s.dispatch(r.Context(), &req)
	s.logger.Debug().
		Str("method", req.Method).
		Dur("took", time.Since(start)).
		Bool("ok", rpcErr == nil).
		Msg("RPC request")
	if rpcErr != nil {
		writeJSON(w, Response{
			JSONRPC: "2.0",
			Error:   rpcErr,
			ID:      req.ID,
		})
		return
	}

	writeJSON(w, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	})
}

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	switch req.Method {
	case "fee_estimateSize":
		return s.handleFeeEstimateSize(req)
	case "fee_estimate":
		return s.handleFeeEstimate(req)
	case "fee_miningFee":
		return s.handleFeeMiningFee(req)
	case "fee_p2wshMiningFee":
		return s.handleFeeP2WSHMiningFee(req)
	case "fee_dust":
		return s.handleFeeDust(req)
	case "fee_rate":
		return s.handleFeeRate(ctx, req)
	case "price_get":
		return s.handlePriceGet(ctx, req)
	case "price_invalidate":
		return s.handlePriceInvalidate(ctx, req)
	case "utxo_get":
		return s.handleUTXOGet(ctx, req)
	case "utxo_list":
		return s.handleUTXOList(ctx, req)
	case "tx_getRawHex":
		return s.handleTxGetRawHex(ctx, req)
	case "script_classify":
		return s.handleScriptClassify(req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

// writeJSON writes a JSON-RPC response.
func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

// parseParams unmarshals the request params into the given target.
func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}

	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

// parseOptionalParams is parseParams for endpoints whose params may be
// omitted entirely.
func parseOptionalParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return nil
	}
	return parseParams(req, target)
}
