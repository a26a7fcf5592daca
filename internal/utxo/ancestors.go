package utxo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/rs/zerolog"

	klog "github.com/stampchain-io/BTCStampsExplorer-sub010/internal/log"
)

// MaxAncestors caps how many unconfirmed ancestors are aggregated.
// Entries past the cap are dropped in the order the node returned them.
const MaxAncestors = 25

// ErrNoAncestorData is returned when the ancestor set could not be
// fetched or decoded. Callers treat it as "no adjustment".
var ErrNoAncestorData = errors.New("no ancestor data")

// AncestorSet is the aggregate of a transaction's unconfirmed ancestors.
// Count is the truncated length, never more than MaxAncestors.
type AncestorSet struct {
	Count      int    `json:"count"`
	VsizeBytes uint64 `json:"vsizeBytes"`
	FeesSats   uint64 `json:"feesSats"`
	// Total is the number of ancestors the node reported.
	Total int `json:"total"`
}

// Truncated reports whether ancestors were dropped by the cap.
func (s *AncestorSet) Truncated() bool {
	return s.Total > s.Count
}

// mempoolEntry is the part of a verbose mempool entry the aggregator reads.
type mempoolEntry struct {
	Vsize int64 `json:"vsize"`
	Fees  *struct {
		Base float64 `json:"base"`
	} `json:"fees"`
	// Fee is the pre-0.19 field, in BTC.
	Fee float64 `json:"fee"`
}

func (e mempoolEntry) baseFee() float64 {
	if e.Fees != nil {
		return e.Fees.Base
	}
	return e.Fee
}

// Aggregator reduces a transaction's ancestor set to fee and size totals.
type Aggregator struct {
	src    AncestorSource
	logger zerolog.Logger
}

// NewAggregator creates an aggregator reading from src.
func NewAggregator(src AncestorSource) *Aggregator {
	return &Aggregator{src: src, logger: klog.UTXO}
}

// Aggregate fetches the ancestors of txid and sums the vsize and base fees
// of the first MaxAncestors entries. Any fetch or decode failure is
// returned wrapped in ErrNoAncestorData.
func (a *Aggregator) Aggregate(ctx context.Context, txid string) (*AncestorSet, error) {
	raw, err := a.src.GetMempoolAncestors(ctx, txid)
	if err != nil {
		a.logger.Warn().Str("txid", txid).Err(err).Msg("Ancestor lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrNoAncestorData, err)
	}

	set, err := aggregateOrdered(raw, MaxAncestors)
	if err != nil {
		a.logger.Warn().Str("txid", txid).Err(err).Msg("Ancestor response malformed")
		return nil, fmt.Errorf("%w: %v", ErrNoAncestorData, err)
	}
	if set.Truncated() {
		a.logger.Debug().
			Str("txid", txid).
			Int("total", set.Total).
			Int("kept", set.Count).
			Msg("Ancestor set truncated")
	}
	return set, nil
}

// aggregateOrdered walks the txid -> entry object token by token so that
// truncation follows the order of the response body.
func aggregateOrdered(raw json.RawMessage, limit int) (*AncestorSet, error) {
	set := &AncestorSet{}
	if len(raw) == 0 || string(raw) == "null" {
		return set, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected txid key, got %v", keyTok)
		}

		var entry mempoolEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("ancestor %s: %w", key, err)
		}
		set.Total++
		if set.Count >= limit {
			continue
		}

		fee, err := btcutil.NewAmount(entry.baseFee())
		if err != nil {
			return nil, fmt.Errorf("ancestor %s fee: %w", key, err)
		}
		if fee < 0 || entry.Vsize < 0 {
			return nil, fmt.Errorf("ancestor %s: negative fee or vsize", key)
		}
		set.Count++
		set.VsizeBytes += uint64(entry.Vsize)
		set.FeesSats += uint64(fee)
	}
	return set, nil
}
