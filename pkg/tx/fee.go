package tx

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// MiningFee is the fee breakdown for a described transaction.
type MiningFee struct {
	VsizeBytes       uint64 `json:"vsizeBytes"`
	WeightUnits      uint64 `json:"weightUnits"`
	BaseFeeSats      uint64 `json:"baseFeeSats"`
	AncestorFeesSats uint64 `json:"ancestorFeesSats"`
	TotalFeeSats     uint64 `json:"totalFeeSats"`

	// Advisory figures. They never change TotalFeeSats.
	AncestorRates        []float64 `json:"ancestorRates,omitempty"`
	PackageRateSatsPerVb float64   `json:"packageRateSatsPerVb"`
	MinRelayFeeSats      uint64    `json:"minRelayFeeSats"`
	BelowMinRelayFee     bool      `json:"belowMinRelayFee"`
}

// EstimateFee returns the fee for a transaction paying to outputs from
// inputCount P2WPKH inputs, plus the fees already paid by ancestors.
// inputCount below one is treated as one.
func EstimateFee(outputs []types.TxOutput, feeRate float64, inputCount int, ancestors []types.AncestorInfo) uint64 {
	if inputCount < 1 {
		inputCount = 1
	}
	inputs := make([]types.TxInput, inputCount)
	for i := range inputs {
		inputs[i] = types.TxInput{Kind: types.ScriptKindP2WPKH}
	}
	vsize := EstimateSize(inputs, outputs, nil)
	return addFees(feeForVsize(vsize, feeRate), sumAncestorFees(ancestors))
}

// CalculateMiningFee computes the fee for fully described inputs and
// outputs. Ancestor data attached to inputs is folded in verbatim.
func CalculateMiningFee(inputs []types.TxInput, outputs []types.TxOutput, feeRate float64, opts *types.FeeEstimateOptions) MiningFee {
	w := estimateWeight(inputs, outputs, resolveOptions(opts))
	vsize := w.vsize()

	var ancestors []types.AncestorInfo
	for _, in := range inputs {
		if in.Ancestor != nil {
			ancestors = append(ancestors, *in.Ancestor)
		}
	}

	fee := MiningFee{
		VsizeBytes:       vsize,
		WeightUnits:      w.units(),
		BaseFeeSats:      feeForVsize(vsize, feeRate),
		AncestorFeesSats: sumAncestorFees(ancestors),
	}
	fee.TotalFeeSats = addFees(fee.BaseFeeSats, fee.AncestorFeesSats)

	packageVsize := vsize
	for i := range ancestors {
		fee.AncestorRates = append(fee.AncestorRates, ActualFeeRate(feeRate, &ancestors[i]))
		packageVsize += ancestors[i].VsizeBytes
	}
	if packageVsize > 0 {
		fee.PackageRateSatsPerVb = float64(fee.TotalFeeSats) / float64(packageVsize)
	}

	minRelay := txrules.FeeForSerializeSize(txrules.DefaultRelayFeePerKb, int(vsize))
	fee.MinRelayFeeSats = uint64(minRelay)
	fee.BelowMinRelayFee = btcutil.Amount(fee.BaseFeeSats) < minRelay
	return fee
}

// CalculateP2WSHMiningFee returns the fee for a data-embedding transaction
// spending one P2WPKH input into one P2WSH output per 32-byte payload chunk
// and a P2WPKH change output. A zero rate yields zero. When useAncestors is
// set, the ancestor's fees are added verbatim.
func CalculateP2WSHMiningFee(payloadBytes int, feeRate float64, useAncestors bool, ancestor *types.AncestorInfo) uint64 {
	if feeRate == 0 {
		return 0
	}
	outputs := make([]types.TxOutput, ChunkCount(payloadBytes))
	for i := range outputs {
		outputs[i] = types.TxOutput{Kind: types.ScriptKindP2WSH, ValueSats: DustUnit}
	}
	inputs := []types.TxInput{{Kind: types.ScriptKindP2WPKH}}

	fee := feeForVsize(EstimateSize(inputs, outputs, nil), feeRate)
	if useAncestors && ancestor != nil {
		fee = addFees(fee, ancestor.FeesSats)
	}
	return fee
}

// ActualFeeRate returns the effective rate of an ancestor for reporting.
// Without an ancestor, or when its vsize is zero, it returns baseRate.
func ActualFeeRate(baseRate float64, ancestor *types.AncestorInfo) float64 {
	if ancestor == nil || ancestor.VsizeBytes == 0 {
		return baseRate
	}
	if ancestor.EffectiveRateSatsPerVb > 0 {
		return ancestor.EffectiveRateSatsPerVb
	}
	return float64(ancestor.FeesSats) / float64(ancestor.VsizeBytes)
}

func sumAncestorFees(ancestors []types.AncestorInfo) uint64 {
	var total uint64
	for _, a := range ancestors {
		total = addFees(total, a.FeesSats)
	}
	return total
}

// addFees returns a+b, saturating at math.MaxUint64.
func addFees(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
