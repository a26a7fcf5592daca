package tx

import (
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/script"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// DustUnit is the value in satoshis carried by each data chunk output. It
// matches the relay dust limit of a P2WSH output.
const DustUnit = 330

// DustChunkSize is the number of payload bytes embedded per output.
const DustChunkSize = 32

// ChunkCount returns the number of DustChunkSize chunks needed for a
// payload, rounding up. Non-positive sizes need no chunks.
func ChunkCount(payloadBytes int) int {
	if payloadBytes <= 0 {
		return 0
	}
	return (payloadBytes + DustChunkSize - 1) / DustChunkSize
}

// Dust returns the total dust value needed to embed a payload of the given
// size, one DustUnit per chunk.
func Dust(payloadBytes int) uint64 {
	return uint64(ChunkCount(payloadBytes)) * DustUnit
}

// DustOutputs returns the indexes of outputs whose value is below the
// relay dust limit at the default relay fee. OP_RETURN outputs are never
// reported.
func DustOutputs(outputs []types.TxOutput) []int {
	var dust []int
	for i, out := range outputs {
		if out.Kind == types.ScriptKindOpReturn {
			continue
		}
		kind := out.Kind
		if !kind.Valid() || kind == types.ScriptKindUnknown {
			kind = script.Fallback
		}
		txOut := wire.NewTxOut(int64(out.ValueSats), script.Template(kind))
		if mempool.IsDust(txOut, txrules.DefaultRelayFeePerKb) {
			dust = append(dust, i)
		}
	}
	return dust
}
