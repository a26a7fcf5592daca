package rpc

import (
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/tx"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeUnavailable    = -32001
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// ShapeParam describes a transaction shape. A nil IncludeChangeOutput
// means true and a nil ChangeOutputKind means P2WPKH.
type ShapeParam struct {
	Inputs              []types.TxInput   `json:"inputs"`
	Outputs             []types.TxOutput  `json:"outputs"`
	IncludeChangeOutput *bool             `json:"includeChangeOutput,omitempty"`
	ChangeOutputKind    *types.ScriptKind `json:"changeOutputKind,omitempty"`
}

// options converts the change settings to estimator options.
func (p *ShapeParam) options() *types.FeeEstimateOptions {
	opts := types.DefaultFeeEstimateOptions()
	if p.IncludeChangeOutput != nil {
		opts.IncludeChangeOutput = *p.IncludeChangeOutput
	}
	if p.ChangeOutputKind != nil {
		opts.ChangeOutputKind = *p.ChangeOutputKind
	}
	return &opts
}

// MiningFeeParam is used by fee_miningFee.
type MiningFeeParam struct {
	ShapeParam
	FeeRate float64 `json:"feeRate"`
}

// EstimateFeeParam is used by fee_estimate.
type EstimateFeeParam struct {
	Outputs    []types.TxOutput     `json:"outputs"`
	FeeRate    float64              `json:"feeRate"`
	InputCount int                  `json:"inputCount"`
	Ancestors  []types.AncestorInfo `json:"ancestors,omitempty"`
}

// P2WSHFeeParam is used by fee_p2wshMiningFee.
type P2WSHFeeParam struct {
	PayloadBytes int                 `json:"payloadBytes"`
	FeeRate      float64             `json:"feeRate"`
	UseAncestors bool                `json:"useAncestors"`
	Ancestor     *types.AncestorInfo `json:"ancestor,omitempty"`
}

// DustParam is used by fee_dust.
type DustParam struct {
	PayloadBytes int `json:"payloadBytes"`
}

// FeeRateParam is used by fee_rate.
type FeeRateParam struct {
	Blocks int    `json:"blocks"`
	Source string `json:"source,omitempty"`
}

// SourceParam is used by price_get.
type SourceParam struct {
	Source string `json:"source,omitempty"`
}

// UTXOParam is used by utxo_get.
type UTXOParam struct {
	Address          string `json:"address"`
	TxID             string `json:"txid"`
	Vout             uint32 `json:"vout"`
	IncludeAncestors bool   `json:"includeAncestors"`
}

// UTXOListParam is used by utxo_list.
type UTXOListParam struct {
	Address          string `json:"address"`
	ConfirmedOnly    bool   `json:"confirmedOnly"`
	IncludeAncestors bool   `json:"includeAncestors"`
}

// TxIDParam is used by tx_getRawHex.
type TxIDParam struct {
	TxID string `json:"txid"`
}

// ClassifyParam is used by script_classify.
type ClassifyParam struct {
	Address string `json:"address,omitempty"`
	Script  string `json:"script,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// SizeResult is returned by fee_estimateSize.
type SizeResult struct {
	VsizeBytes  uint64 `json:"vsizeBytes"`
	WeightUnits uint64 `json:"weightUnits"`
}

// FeeResult is returned by fee_estimate and fee_p2wshMiningFee.
type FeeResult struct {
	FeeSats uint64 `json:"feeSats"`
}

// MiningFeeResult is returned by fee_miningFee.
type MiningFeeResult struct {
	tx.MiningFee
	// DustOutputs lists indexes of outputs below the relay dust limit.
	DustOutputs []int `json:"dustOutputs,omitempty"`
}

// DustResult is returned by fee_dust.
type DustResult struct {
	DustSats uint64 `json:"dustSats"`
	Chunks   int    `json:"chunks"`
}

// UTXOListResult is returned by utxo_list.
type UTXOListResult struct {
	UTXOs []*types.UTXO `json:"utxos"`
}

// RawTxResult is returned by tx_getRawHex. Hex is empty when the
// transaction could not be fetched.
type RawTxResult struct {
	TxID  string `json:"txid"`
	Hex   string `json:"hex"`
	Found bool   `json:"found"`
}

// ClassifyResult is returned by script_classify.
type ClassifyResult struct {
	Kind         types.ScriptKind `json:"kind"`
	IsWitness    bool             `json:"isWitness"`
	InputBytes   uint64           `json:"inputBytes"`
	OutputBytes  uint64           `json:"outputBytes"`
	WitnessBytes uint64           `json:"witnessBytes"`
}

// InvalidateResult is returned by price_invalidate.
type InvalidateResult struct {
	Invalidated bool `json:"invalidated"`
}
