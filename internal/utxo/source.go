// Package utxo resolves unspent outputs and their unconfirmed ancestor
// chains from a remote Bitcoin node.
package utxo

import (
	"context"
	"encoding/json"

	"github.com/btcsuite/btcd/btcjson"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/rpcclient"
)

// AncestorSource returns the verbose getmempoolancestors object for a
// transaction.
type AncestorSource interface {
	GetMempoolAncestors(ctx context.Context, txid string) (json.RawMessage, error)
}

// Node is the subset of the RPC client the resolver depends on.
// *rpcclient.Client satisfies it.
type Node interface {
	AncestorSource
	GetRawTransaction(ctx context.Context, txid string) (string, error)
	GetRawTransactionVerbose(ctx context.Context, txid string) (*btcjson.TxRawResult, error)
	GetAddressUTXOs(ctx context.Context, address string, confirmedOnly bool) ([]rpcclient.AddressUTXO, error)
}

var _ Node = (*rpcclient.Client)(nil)
