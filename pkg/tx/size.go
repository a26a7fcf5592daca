// Package tx models Bitcoin transaction sizes, dust padding and mining fees
// for described transaction shapes.
package tx

import (
	"math"
	"sync/atomic"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/rs/zerolog"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// Transaction-level overhead in bytes.
const (
	VersionSize  = 4
	LockTimeSize = 4
	// SegwitMarkerFlagSize is the marker and flag pair, counted as witness
	// data when any input carries a witness.
	SegwitMarkerFlagSize = 2
)

// Per-template byte costs not exported by txsizes.
const (
	// outpoint + empty scriptSig length + sequence
	witnessInputSize = 32 + 4 + 1 + 4

	p2shPkScriptSize  = 1 + 1 + 20 + 1
	p2wshPkScriptSize = 1 + 1 + 32
	p2trPkScriptSize  = 1 + 1 + 32

	// OP_RETURN OP_PUSHDATA1 <len> <80 bytes>
	opReturnPkScriptSize = 1 + 1 + 1 + 80

	// 2-of-3 multisig: item count, empty dummy, two signatures and the
	// witness script (OP_2 <33> <33> <33> OP_3 OP_CHECKMULTISIG).
	p2wshMultisigWitnessSize = 1 + 1 + 2*(1+73) + 1 + (1 + 3*(1+33) + 1 + 1)

	// item count, length, Schnorr signature with sighash byte
	p2trKeyPathWitnessSize = 1 + 1 + 65
)

// Sizes holds the byte costs of one script kind.
type Sizes struct {
	// InputBytes is the non-witness size of an input spending this kind.
	InputBytes uint64
	// OutputBytes is the serialized size of an output of this kind.
	OutputBytes uint64
	// WitnessBytes is the witness stack size when spending this kind.
	WitnessBytes uint64
}

// sizeTable is indexed by ScriptKind. ScriptKindUnknown has no entry.
var sizeTable = [...]Sizes{
	types.ScriptKindP2PKH: {
		InputBytes:  txsizes.RedeemP2PKHInputSize,
		OutputBytes: txsizes.P2PKHOutputSize,
	},
	types.ScriptKindP2SH: {
		InputBytes:   txsizes.RedeemNestedP2WPKHInputSize,
		OutputBytes:  8 + 1 + p2shPkScriptSize,
		WitnessBytes: txsizes.RedeemP2WPKHInputWitnessWeight,
	},
	types.ScriptKindP2WPKH: {
		InputBytes:   txsizes.RedeemP2WPKHInputSize,
		OutputBytes:  txsizes.P2WPKHOutputSize,
		WitnessBytes: txsizes.RedeemP2WPKHInputWitnessWeight,
	},
	types.ScriptKindP2WSH: {
		InputBytes:   witnessInputSize,
		OutputBytes:  8 + 1 + p2wshPkScriptSize,
		WitnessBytes: p2wshMultisigWitnessSize,
	},
	types.ScriptKindP2TR: {
		InputBytes:   witnessInputSize,
		OutputBytes:  8 + 1 + p2trPkScriptSize,
		WitnessBytes: p2trKeyPathWitnessSize,
	},
	types.ScriptKindOpReturn: {
		InputBytes:  witnessInputSize,
		OutputBytes: 8 + 1 + opReturnPkScriptSize,
	},
}

var logger atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	logger.Store(&nop)
}

// SetLogger sets the logger used for size table fallbacks. It is safe to
// call while sizes are being computed.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// SizeFor returns the byte costs for kind. Unknown kinds log a warning and
// use the P2WPKH entry.
func SizeFor(kind types.ScriptKind) Sizes {
	if int(kind) < len(sizeTable) && sizeTable[kind].OutputBytes != 0 {
		return sizeTable[kind]
	}
	logger.Load().Warn().
		Str("kind", kind.String()).
		Uint8("raw", uint8(kind)).
		Msg("No size entry for script kind, using P2WPKH")
	return sizeTable[types.ScriptKindP2WPKH]
}

// WeightToVsize converts weight units to virtual bytes, rounding up.
func WeightToVsize(weight uint64) uint64 {
	return (weight + blockchain.WitnessScaleFactor - 1) / blockchain.WitnessScaleFactor
}

// EstimateSize returns the vsize of a transaction with the given inputs and
// outputs. A nil opts appends one P2WPKH change output.
func EstimateSize(inputs []types.TxInput, outputs []types.TxOutput, opts *types.FeeEstimateOptions) uint64 {
	return estimateWeight(inputs, outputs, resolveOptions(opts)).vsize()
}

type weight struct {
	base    uint64
	witness uint64
}

func (w weight) units() uint64 {
	return w.base*blockchain.WitnessScaleFactor + w.witness
}

func (w weight) vsize() uint64 {
	return WeightToVsize(w.units())
}

func resolveOptions(opts *types.FeeEstimateOptions) types.FeeEstimateOptions {
	if opts == nil {
		return types.DefaultFeeEstimateOptions()
	}
	o := *opts
	if o.ChangeOutputKind == types.ScriptKindUnknown {
		o.ChangeOutputKind = types.ScriptKindP2WPKH
	}
	return o
}

func estimateWeight(inputs []types.TxInput, outputs []types.TxOutput, opts types.FeeEstimateOptions) weight {
	outCount := len(outputs)
	if opts.IncludeChangeOutput {
		outCount++
	}

	w := weight{
		base: VersionSize + LockTimeSize +
			uint64(wire.VarIntSerializeSize(uint64(len(inputs)))) +
			uint64(wire.VarIntSerializeSize(uint64(outCount))),
	}

	anyWitness := false
	for _, in := range inputs {
		s := SizeFor(in.Kind)
		switch {
		case in.Witness():
			anyWitness = true
			if in.SizeBytes != nil {
				w.base += *in.SizeBytes
			} else {
				w.base += s.InputBytes
			}
			w.witness += s.WitnessBytes
		case in.SizeBytes != nil:
			w.base += *in.SizeBytes
		default:
			// Spending data without a witness sits in the scriptSig.
			w.base += s.InputBytes + s.WitnessBytes
		}
	}
	if anyWitness {
		w.witness += SegwitMarkerFlagSize
	}

	for _, out := range outputs {
		if out.SizeBytes != nil {
			w.base += *out.SizeBytes
			continue
		}
		w.base += SizeFor(out.Kind).OutputBytes
	}
	if opts.IncludeChangeOutput {
		w.base += SizeFor(opts.ChangeOutputKind).OutputBytes
	}
	return w
}

// maxFeeFloat is 2^64, the first float64 that does not fit in a uint64.
const maxFeeFloat = float64(1 << 64)

// feeForVsize returns ceil(vsize * rate), saturating at math.MaxUint64.
// Non-positive and NaN rates yield 0.
func feeForVsize(vsize uint64, feeRate float64) uint64 {
	if !(feeRate > 0) {
		return 0
	}
	fee := math.Ceil(float64(vsize) * feeRate)
	if fee >= maxFeeFloat {
		return math.MaxUint64
	}
	return uint64(fee)
}
