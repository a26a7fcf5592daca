package utxo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"

	klog "github.com/stampchain-io/BTCStampsExplorer-sub010/internal/log"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/metrics"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/script"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// ErrOutputNotFound is returned when the transaction has no output at the
// requested index.
var ErrOutputNotFound = errors.New("output not found")

// Options controls single-UTXO resolution.
type Options struct {
	IncludeAncestors bool
}

// ListOptions controls address UTXO listing.
type ListOptions struct {
	ConfirmedOnly    bool
	IncludeAncestors bool
}

// Resolver resolves UTXOs for an address through a remote node.
type Resolver struct {
	node      Node
	ancestors *Aggregator
	params    *chaincfg.Params
	logger    zerolog.Logger
}

// NewResolver creates a resolver. A nil params defaults to mainnet.
func NewResolver(node Node, params *chaincfg.Params) *Resolver {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &Resolver{
		node:      node,
		ancestors: NewAggregator(node),
		params:    params,
		logger:    klog.UTXO,
	}
}

// GetUTXO resolves output vout of txid paid to address.
//
// The address must decode for the resolver's network; a bad address is a
// *script.ValidationError. When the node reports a script that differs
// from the one derived from the address, the node's script is kept and a
// warning is logged. Ancestor lookup failures leave the ancestor fields nil.
func (r *Resolver) GetUTXO(ctx context.Context, address, txid string, vout uint32, opts Options) (*types.UTXO, error) {
	expected, err := script.PayToAddressHex(address, r.params)
	if err != nil {
		return nil, err
	}

	txid = strings.ToLower(txid)
	tx, err := r.node.GetRawTransactionVerbose(ctx, txid)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", txid, err)
	}
	if int(vout) >= len(tx.Vout) {
		return nil, fmt.Errorf("%s:%d: %w", txid, vout, ErrOutputNotFound)
	}
	out := tx.Vout[vout]

	// Verbose values are BTC decimals; NewAmount rounds to the nearest
	// satoshi.
	value, err := btcutil.NewAmount(out.Value)
	if err != nil {
		return nil, fmt.Errorf("%s:%d value: %w", txid, vout, err)
	}
	if value < 0 {
		return nil, fmt.Errorf("%s:%d: negative value", txid, vout)
	}

	scriptHex := strings.ToLower(out.ScriptPubKey.Hex)
	switch {
	case scriptHex == "":
		scriptHex = expected
	case scriptHex != expected:
		r.logger.Warn().
			Str("outpoint", fmt.Sprintf("%s:%d", txid, vout)).
			Str("address", address).
			Str("node_script", scriptHex).
			Str("derived_script", expected).
			Msg("Script mismatch, using node script")
	}

	u := &types.UTXO{
		TxID:          txid,
		Vout:          vout,
		ValueSats:     uint64(value),
		ScriptHex:     scriptHex,
		ScriptKind:    script.Classify(address, scriptHex, r.params),
		VsizeBytes:    uint64(tx.Vsize),
		Confirmations: tx.Confirmations,
		IsCoinbase:    len(tx.Vin) > 0 && tx.Vin[0].IsCoinBase(),
	}

	if opts.IncludeAncestors {
		r.attachAncestors(ctx, u)
	}
	return u, nil
}

func (r *Resolver) attachAncestors(ctx context.Context, u *types.UTXO) {
	// Confirmed outputs have no mempool ancestors.
	if u.Confirmations > 0 {
		return
	}
	set, err := r.ancestors.Aggregate(ctx, u.TxID)
	if err != nil {
		return
	}
	count := set.Count
	size := set.VsizeBytes
	fees := set.FeesSats
	u.AncestorCount = &count
	u.AncestorSizeVbytes = &size
	u.AncestorFeesSats = &fees
}

// GetUTXOs lists the outputs paid to address and resolves each one.
// Outputs that fail to resolve are dropped; only a failed listing or an
// invalid address is returned as an error.
func (r *Resolver) GetUTXOs(ctx context.Context, address string, opts ListOptions) ([]*types.UTXO, error) {
	defer klog.Benchmark("utxo_list")()

	if _, err := script.PayToAddress(address, r.params); err != nil {
		return nil, err
	}

	candidates, err := r.node.GetAddressUTXOs(ctx, address, opts.ConfirmedOnly)
	if err != nil {
		return nil, fmt.Errorf("list utxos for %s: %w", address, err)
	}

	utxos := make([]*types.UTXO, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u, err := r.GetUTXO(ctx, address, c.TxID, c.Vout, Options{IncludeAncestors: opts.IncludeAncestors})
		if err != nil {
			metrics.UTXODropped()
			r.logger.Warn().
				Str("outpoint", fmt.Sprintf("%s:%d", c.TxID, c.Vout)).
				Err(err).
				Msg("Dropping unresolvable UTXO")
			continue
		}
		utxos = append(utxos, u)
	}

	r.logger.Debug().
		Str("address", address).
		Int("listed", len(candidates)).
		Int("resolved", len(utxos)).
		Msg("Resolved address UTXOs")
	return utxos, nil
}

// GetRawTransactionHex returns the hex encoding of txid, or "" and false
// when neither the node nor the fallback could supply it.
func (r *Resolver) GetRawTransactionHex(ctx context.Context, txid string) (string, bool) {
	rawHex, err := r.node.GetRawTransaction(ctx, strings.ToLower(txid))
	if err != nil {
		r.logger.Warn().Str("txid", txid).Err(err).Msg("Raw transaction unavailable")
		return "", false
	}
	return rawHex, true
}
