package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/oracle"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/rpcclient"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/utxo"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/script"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/tx"
)

// ── Fee endpoints ───────────────────────────────────────────────────────

func (s *Server) handleFeeEstimateSize(req *Request) (interface{}, *Error) {
	var params ShapeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	fee := tx.CalculateMiningFee(params.Inputs, params.Outputs, 0, params.options())
	return &SizeResult{VsizeBytes: fee.VsizeBytes, WeightUnits: fee.WeightUnits}, nil
}

func (s *Server) handleFeeEstimate(req *Request) (interface{}, *Error) {
	var params EstimateFeeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := checkRate(params.FeeRate); err != nil {
		return nil, err
	}
	fee := tx.EstimateFee(params.Outputs, params.FeeRate, params.InputCount, params.Ancestors)
	return &FeeResult{FeeSats: fee}, nil
}

func (s *Server) handleFeeMiningFee(req *Request) (interface{}, *Error) {
	var params MiningFeeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := checkRate(params.FeeRate); err != nil {
		return nil, err
	}
	return &MiningFeeResult{
		MiningFee:   tx.CalculateMiningFee(params.Inputs, params.Outputs, params.FeeRate, params.options()),
		DustOutputs: tx.DustOutputs(params.Outputs),
	}, nil
}

func (s *Server) handleFeeP2WSHMiningFee(req *Request) (interface{}, *Error) {
	var params P2WSHFeeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := checkRate(params.FeeRate); err != nil {
		return nil, err
	}
	fee := tx.CalculateP2WSHMiningFee(params.PayloadBytes, params.FeeRate, params.UseAncestors, params.Ancestor)
	return &FeeResult{FeeSats: fee}, nil
}

func (s *Server) handleFeeDust(req *Request) (interface{}, *Error) {
	var params DustParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	return &DustResult{
		DustSats: tx.Dust(params.PayloadBytes),
		Chunks:   tx.ChunkCount(params.PayloadBytes),
	}, nil
}

func (s *Server) handleFeeRate(ctx context.Context, req *Request) (interface{}, *Error) {
	if s.svc.Fees == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "fee rates not enabled"}
	}
	var params FeeRateParam
	if err := parseOptionalParams(req, &params); err != nil {
		return nil, err
	}
	est := s.svc.Fees.Estimate(ctx, params.Blocks, params.Source)
	return &est, nil
}

// checkRate rejects negative and non-finite fee rates.
func checkRate(rate float64) *Error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return &Error{Code: CodeInvalidParams, Message: "feeRate must be finite"}
	}
	if rate < 0 {
		return &Error{Code: CodeInvalidParams, Message: "feeRate must not be negative"}
	}
	return nil
}

// ── Price endpoints ─────────────────────────────────────────────────────

func (s *Server) handlePriceGet(ctx context.Context, req *Request) (interface{}, *Error) {
	if s.svc.Prices == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "price oracle not enabled"}
	}
	var params SourceParam
	if err := parseOptionalParams(req, &params); err != nil {
		return nil, err
	}
	q := s.svc.Prices.Quote(ctx, oracle.QuoteOptions{PreferredSource: params.Source})
	return &q, nil
}

func (s *Server) handlePriceInvalidate(ctx context.Context, _ *Request) (interface{}, *Error) {
	if s.svc.Prices == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "price oracle not enabled"}
	}
	if err := s.svc.Prices.Invalidate(ctx); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("invalidate: %v", err)}
	}
	if s.svc.Fees != nil {
		if err := s.svc.Fees.Invalidate(ctx); err != nil {
			return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("invalidate fee rates: %v", err)}
		}
	}
	return &InvalidateResult{Invalidated: true}, nil
}

// ── UTXO endpoints ──────────────────────────────────────────────────────

func (s *Server) handleUTXOGet(ctx context.Context, req *Request) (interface{}, *Error) {
	if err := s.requireUTXOs(); err != nil {
		return nil, err
	}
	var params UTXOParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" || params.TxID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address and txid are required"}
	}
	if err := validateTxID(params.TxID); err != nil {
		return nil, err
	}

	u, err := s.svc.UTXOs.GetUTXO(ctx, params.Address, params.TxID, params.Vout,
		utxo.Options{IncludeAncestors: params.IncludeAncestors})
	if err != nil {
		return nil, toRPCError(err)
	}
	return u, nil
}

func (s *Server) handleUTXOList(ctx context.Context, req *Request) (interface{}, *Error) {
	if err := s.requireUTXOs(); err != nil {
		return nil, err
	}
	var params UTXOListParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}

	utxos, err := s.svc.UTXOs.GetUTXOs(ctx, params.Address, utxo.ListOptions{
		ConfirmedOnly:    params.ConfirmedOnly,
		IncludeAncestors: params.IncludeAncestors,
	})
	if err != nil {
		return nil, toRPCError(err)
	}
	return &UTXOListResult{UTXOs: utxos}, nil
}

func (s *Server) handleTxGetRawHex(ctx context.Context, req *Request) (interface{}, *Error) {
	if err := s.requireUTXOs(); err != nil {
		return nil, err
	}
	var params TxIDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.TxID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "txid is required"}
	}
	if err := validateTxID(params.TxID); err != nil {
		return nil, err
	}
	rawHex, ok := s.svc.UTXOs.GetRawTransactionHex(ctx, params.TxID)
	return &RawTxResult{TxID: strings.ToLower(params.TxID), Hex: rawHex, Found: ok}, nil
}

// validateTxID rejects anything that is not a 64-character hex hash.
func validateTxID(txid string) *Error {
	if len(txid) != chainhash.MaxHashStringSize {
		return &Error{Code: CodeInvalidParams, Message: "txid must be 64 hex characters"}
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid txid: " + err.Error()}
	}
	return nil
}

func (s *Server) requireUTXOs() *Error {
	if s.svc.UTXOs == nil {
		return &Error{Code: CodeUnavailable, Message: "node RPC not configured"}
	}
	return nil
}

// ── Script endpoints ────────────────────────────────────────────────────

func (s *Server) handleScriptClassify(req *Request) (interface{}, *Error) {
	var params ClassifyParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	kind := script.Classify(params.Address, params.Script, s.svc.Params)
	sizes := tx.SizeFor(kind)
	return &ClassifyResult{
		Kind:         kind,
		IsWitness:    kind.IsWitness(),
		InputBytes:   sizes.InputBytes,
		OutputBytes:  sizes.OutputBytes,
		WitnessBytes: sizes.WitnessBytes,
	}, nil
}

// toRPCError maps resolver errors onto JSON-RPC error objects.
func toRPCError(err error) *Error {
	var verr *script.ValidationError
	var rerr *rpcclient.RPCError
	var terr *rpcclient.TransportError
	switch {
	case errors.As(err, &verr):
		return &Error{Code: CodeInvalidParams, Message: verr.Error()}
	case errors.Is(err, utxo.ErrOutputNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.As(err, &rerr) && rerr.Code == rpcclient.CodeNoSuchTx:
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.As(err, &terr):
		return &Error{Code: CodeUnavailable, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}
