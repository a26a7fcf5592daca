package rpcclient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/btcsuite/btcd/btcjson"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/httpx"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/metrics"
)

// AddressUTXO is one entry of a Blockbook bb_getutxos listing. Value is
// in satoshis.
type AddressUTXO struct {
	TxID          string      `json:"txid"`
	Vout          uint32      `json:"vout"`
	Value         json.Number `json:"value"`
	Height        int64       `json:"height,omitempty"`
	Confirmations int64       `json:"confirmations"`
	Coinbase      bool        `json:"coinbase,omitempty"`
}

// GetRawTransaction returns the hex encoding of a transaction. When the
// node cannot supply it, a single read is made against the fallback API.
func (c *Client) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	var rawHex string
	err := c.Call(ctx, "getrawtransaction", []interface{}{txid, false}, &rawHex)
	if err == nil && rawHex != "" {
		return rawHex, nil
	}
	if err == nil {
		err = &RPCError{Code: CodeNoSuchTx, Message: "empty result", Endpoint: c.Endpoint()}
	}
	if ctx.Err() != nil {
		return "", err
	}

	fbHex, fbErr := c.fallbackRawTx(ctx, txid)
	if fbErr != nil {
		metrics.RPCFallback(false)
		return "", fmt.Errorf("%w (fallback: %v)", err, fbErr)
	}
	metrics.RPCFallback(true)
	c.logger.Info().
		Str("txid", txid).
		Str("fallback", redact(c.cfg.FallbackURL)).
		Msg("Raw transaction served by fallback API")
	return fbHex, nil
}

// fallbackRawTx reads GET {fallback}/rawtx/{txid}?format=hex once.
func (c *Client) fallbackRawTx(ctx context.Context, txid string) (string, error) {
	if c.cfg.FallbackURL == "" {
		return "", ErrNoFallback
	}
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	u := strings.TrimRight(c.cfg.FallbackURL, "/") + "/rawtx/" + url.PathEscape(txid) + "?format=hex"
	body, err := httpx.Get(ctx, c.http, u, nil)
	if err != nil {
		var serr *httpx.StatusError
		if errors.As(err, &serr) {
			return "", &TransportError{Endpoint: redact(c.cfg.FallbackURL), StatusCode: serr.StatusCode, Err: err}
		}
		return "", &TransportError{Endpoint: redact(c.cfg.FallbackURL), Timeout: isTimeout(err), Err: err}
	}

	rawHex := strings.TrimSpace(string(body))
	if rawHex == "" {
		return "", errors.New("empty fallback response")
	}
	if _, err := hex.DecodeString(rawHex); err != nil {
		return "", fmt.Errorf("fallback response is not hex: %w", err)
	}
	return rawHex, nil
}

// GetRawTransactionVerbose returns the decoded form of a transaction.
func (c *Client) GetRawTransactionVerbose(ctx context.Context, txid string) (*btcjson.TxRawResult, error) {
	var res btcjson.TxRawResult
	if err := c.Call(ctx, "getrawtransaction", []interface{}{txid, true}, &res); err != nil {
		return nil, err
	}
	if res.Txid == "" {
		return nil, &RPCError{Code: CodeNoSuchTx, Message: "empty result", Endpoint: c.Endpoint()}
	}
	return &res, nil
}

// GetMempoolAncestors returns the raw verbose getmempoolancestors object
// (txid -> entry). It is left undecoded so callers can keep key order.
func (c *Client) GetMempoolAncestors(ctx context.Context, txid string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "getmempoolancestors", []interface{}{txid, true}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// EstimateSmartFee asks the node for a fee rate (BTC/kvB) for a
// confirmation target.
func (c *Client) EstimateSmartFee(ctx context.Context, blocks int64) (*btcjson.EstimateSmartFeeResult, error) {
	var res btcjson.EstimateSmartFeeResult
	if err := c.Call(ctx, "estimatesmartfee", []interface{}{blocks}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetAddressUTXOs lists the outputs of an address through the Blockbook
// bb_getutxos method.
func (c *Client) GetAddressUTXOs(ctx context.Context, address string, confirmedOnly bool) ([]AddressUTXO, error) {
	var res []AddressUTXO
	params := []interface{}{address, map[string]bool{"confirmed": confirmedOnly}}
	if err := c.Call(ctx, "bb_getutxos", params, &res); err != nil {
		return nil, err
	}
	return res, nil
}
