package utxo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcjson"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/rpcclient"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/script"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

const (
	testAddr   = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	testScript = "0014751e76e8199196d454941c45d1b3a323f1433bd6"
	p2pkhAddr  = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
	p2pkhHex   = "76a91477bff20c60e522dfaa3350c39b030a5d004e839a88ac"
)

// fakeNode serves canned transactions and listings.
type fakeNode struct {
	txs       map[string]*btcjson.TxRawResult
	listing   []rpcclient.AddressUTXO
	listErr   error
	ancestors map[string]json.RawMessage
	rawHex    map[string]string
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		txs:       make(map[string]*btcjson.TxRawResult),
		ancestors: make(map[string]json.RawMessage),
		rawHex:    make(map[string]string),
	}
}

func (n *fakeNode) addTx(txid string, confirmations uint64, values ...float64) {
	tx := &btcjson.TxRawResult{Txid: txid, Vsize: 141, Confirmations: confirmations}
	tx.Vin = []btcjson.Vin{{Txid: "00", Vout: 0}}
	for i, v := range values {
		tx.Vout = append(tx.Vout, btcjson.Vout{
			Value:        v,
			N:            uint32(i),
			ScriptPubKey: btcjson.ScriptPubKeyResult{Hex: testScript},
		})
	}
	n.txs[txid] = tx
}

func (n *fakeNode) GetMempoolAncestors(ctx context.Context, txid string) (json.RawMessage, error) {
	raw, ok := n.ancestors[txid]
	if !ok {
		return nil, &rpcclient.RPCError{Code: rpcclient.CodeNoSuchTx, Message: "Transaction not in mempool"}
	}
	return raw, nil
}

func (n *fakeNode) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	h, ok := n.rawHex[txid]
	if !ok {
		return "", &rpcclient.RPCError{Code: rpcclient.CodeNoSuchTx, Message: "No such transaction"}
	}
	return h, nil
}

func (n *fakeNode) GetRawTransactionVerbose(ctx context.Context, txid string) (*btcjson.TxRawResult, error) {
	tx, ok := n.txs[txid]
	if !ok {
		return nil, &rpcclient.RPCError{Code: rpcclient.CodeNoSuchTx, Message: "No such transaction"}
	}
	return tx, nil
}

func (n *fakeNode) GetAddressUTXOs(ctx context.Context, address string, confirmedOnly bool) ([]rpcclient.AddressUTXO, error) {
	return n.listing, n.listErr
}

func TestGetUTXO(t *testing.T) {
	node := newFakeNode()
	node.addTx("aa", 6, 0.0001, 0.00012345)
	r := NewResolver(node, nil)

	u, err := r.GetUTXO(context.Background(), testAddr, "AA", 1, Options{})
	if err != nil {
		t.Fatalf("GetUTXO() error: %v", err)
	}
	if u.TxID != "aa" || u.Vout != 1 {
		t.Errorf("outpoint = %s", u.Outpoint())
	}
	if u.ValueSats != 12345 {
		t.Errorf("ValueSats = %d, want 12345", u.ValueSats)
	}
	if u.ScriptHex != testScript {
		t.Errorf("ScriptHex = %s", u.ScriptHex)
	}
	if u.ScriptKind != types.ScriptKindP2WPKH {
		t.Errorf("ScriptKind = %s, want P2WPKH", u.ScriptKind)
	}
	if u.VsizeBytes != 141 || u.Confirmations != 6 || u.IsCoinbase {
		t.Errorf("vsize/conf/coinbase = %d/%d/%v", u.VsizeBytes, u.Confirmations, u.IsCoinbase)
	}
	if u.AncestorCount != nil || u.AncestorFeesSats != nil || u.AncestorSizeVbytes != nil {
		t.Error("ancestor fields should be nil when not requested")
	}
}

func TestGetUTXO_PrefersNodeScript(t *testing.T) {
	node := newFakeNode()
	node.addTx("aa", 1, 0.001)
	node.txs["aa"].Vout[0].ScriptPubKey.Hex = p2pkhHex
	r := NewResolver(node, nil)

	u, err := r.GetUTXO(context.Background(), testAddr, "aa", 0, Options{})
	if err != nil {
		t.Fatalf("GetUTXO() error: %v", err)
	}
	if u.ScriptHex != p2pkhHex {
		t.Errorf("ScriptHex = %s, want node script", u.ScriptHex)
	}
	if u.ScriptKind != types.ScriptKindP2PKH {
		t.Errorf("ScriptKind = %s, want P2PKH", u.ScriptKind)
	}
}

func TestGetUTXO_DerivesMissingScript(t *testing.T) {
	node := newFakeNode()
	node.addTx("aa", 1, 0.001)
	node.txs["aa"].Vout[0].ScriptPubKey.Hex = ""
	r := NewResolver(node, nil)

	u, err := r.GetUTXO(context.Background(), p2pkhAddr, "aa", 0, Options{})
	if err != nil {
		t.Fatalf("GetUTXO() error: %v", err)
	}
	if u.ScriptHex != p2pkhHex || u.ScriptKind != types.ScriptKindP2PKH {
		t.Errorf("script = %s (%s), want derived P2PKH", u.ScriptHex, u.ScriptKind)
	}
}

func TestGetUTXO_InvalidAddress(t *testing.T) {
	r := NewResolver(newFakeNode(), nil)

	_, err := r.GetUTXO(context.Background(), "not-an-address", "aa", 0, Options{})
	var verr *script.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestGetUTXO_Errors(t *testing.T) {
	node := newFakeNode()
	node.addTx("aa", 1, 0.001)
	r := NewResolver(node, nil)

	if _, err := r.GetUTXO(context.Background(), testAddr, "missing", 0, Options{}); err == nil {
		t.Error("expected error for unknown transaction")
	}
	_, err := r.GetUTXO(context.Background(), testAddr, "aa", 5, Options{})
	if !errors.Is(err, ErrOutputNotFound) {
		t.Errorf("error = %v, want ErrOutputNotFound", err)
	}
}

func TestGetUTXO_Ancestors(t *testing.T) {
	node := newFakeNode()
	node.addTx("pending", 0, 0.001)
	node.ancestors["pending"] = ancestorJSON(2)
	r := NewResolver(node, nil)

	u, err := r.GetUTXO(context.Background(), testAddr, "pending", 0, Options{IncludeAncestors: true})
	if err != nil {
		t.Fatalf("GetUTXO() error: %v", err)
	}
	if u.AncestorCount == nil || *u.AncestorCount != 2 {
		t.Fatalf("AncestorCount = %v, want 2", u.AncestorCount)
	}
	if *u.AncestorSizeVbytes != 201 || *u.AncestorFeesSats != 2001 {
		t.Errorf("ancestor totals = %d vB / %d sats", *u.AncestorSizeVbytes, *u.AncestorFeesSats)
	}
	if info := u.Ancestor(); info == nil || info.FeesSats != 2001 {
		t.Errorf("Ancestor() = %+v", info)
	}
}

func TestGetUTXO_AncestorFailureLeavesFieldsNil(t *testing.T) {
	node := newFakeNode()
	node.addTx("pending", 0, 0.001)
	r := NewResolver(node, nil)

	u, err := r.GetUTXO(context.Background(), testAddr, "pending", 0, Options{IncludeAncestors: true})
	if err != nil {
		t.Fatalf("GetUTXO() error: %v", err)
	}
	if u.AncestorCount != nil || u.AncestorSizeVbytes != nil || u.AncestorFeesSats != nil {
		t.Error("ancestor fields should stay nil on lookup failure")
	}
}

func TestGetUTXO_NoAncestorsIsZero(t *testing.T) {
	node := newFakeNode()
	node.addTx("pending", 0, 0.001)
	node.ancestors["pending"] = json.RawMessage(`{}`)
	r := NewResolver(node, nil)

	u, err := r.GetUTXO(context.Background(), testAddr, "pending", 0, Options{IncludeAncestors: true})
	if err != nil {
		t.Fatalf("GetUTXO() error: %v", err)
	}
	if u.AncestorCount == nil || *u.AncestorCount != 0 || *u.AncestorFeesSats != 0 {
		t.Errorf("ancestor fields = %v/%v, want zero", u.AncestorCount, u.AncestorFeesSats)
	}
}

func TestGetUTXOs_DropsFailures(t *testing.T) {
	node := newFakeNode()
	node.addTx("aa", 3, 0.0001)
	node.addTx("bb", 2, 0.0002, 0.0003)
	node.listing = []rpcclient.AddressUTXO{
		{TxID: "aa", Vout: 0},
		{TxID: "gone", Vout: 0},
		{TxID: "bb", Vout: 1},
		{TxID: "bb", Vout: 7},
	}
	r := NewResolver(node, nil)

	utxos, err := r.GetUTXOs(context.Background(), testAddr, ListOptions{ConfirmedOnly: true})
	if err != nil {
		t.Fatalf("GetUTXOs() error: %v", err)
	}
	if len(utxos) != 2 {
		t.Fatalf("len = %d, want 2", len(utxos))
	}
	if utxos[0].ValueSats != 10000 || utxos[1].ValueSats != 30000 {
		t.Errorf("values = %d, %d", utxos[0].ValueSats, utxos[1].ValueSats)
	}
}

func TestGetUTXOs_ListingError(t *testing.T) {
	node := newFakeNode()
	node.listErr = &rpcclient.TransportError{Endpoint: "http://node", Err: errors.New("refused")}
	r := NewResolver(node, nil)

	_, err := r.GetUTXOs(context.Background(), testAddr, ListOptions{})
	var terr *rpcclient.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want TransportError", err)
	}
}

func TestGetRawTransactionHex(t *testing.T) {
	node := newFakeNode()
	node.rawHex["aa"] = "0200"
	r := NewResolver(node, nil)

	if h, ok := r.GetRawTransactionHex(context.Background(), "AA"); !ok || h != "0200" {
		t.Errorf("GetRawTransactionHex(aa) = %q, %v", h, ok)
	}
	if h, ok := r.GetRawTransactionHex(context.Background(), "bb"); ok || h != "" {
		t.Errorf("GetRawTransactionHex(bb) = %q, %v, want empty", h, ok)
	}
}
