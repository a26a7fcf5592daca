// feeplanner-cli is a command-line client for a running feeplannerd.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-zoox/jsonrpc"
	zoojc "github.com/go-zoox/jsonrpc/client"
	"github.com/spf13/cast"
	"golang.org/x/term"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/config"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/rpc"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

const callTimeout = 30 * time.Second

// client wraps the JSON-RPC client with typed params and results.
type client struct {
	invoke  func(ctx context.Context, method string, params jsonrpc.Params) (interface{}, error)
	rawJSON bool
}

func newClient(url string, rawJSON bool) *client {
	conn := zoojc.New(url)
	return &client{
		invoke: func(ctx context.Context, method string, params jsonrpc.Params) (interface{}, error) {
			return conn.Call(ctx, method, params)
		},
		rawJSON: rawJSON,
	}
}

// call sends method with params and decodes the result into out.
func (c *client) call(method string, params interface{}, out interface{}) error {
	var p jsonrpc.Params
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
	} else {
		p = jsonrpc.Params{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	r, err := c.invoke(ctx, method, p)
	if err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if c.rawJSON {
		var pretty interface{}
		if err := json.Unmarshal(data, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := ""
	dataDir := config.DefaultDataDir()
	network := "mainnet"
	rawJSON := false

	// Scan for global flags before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--json":
			rawJSON = true
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	if rpcURL == "" {
		rpcURL = serverURL(dataDir, config.NetworkType(network))
	}

	c := newClient(rpcURL, rawJSON)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "size":
		cmdSize(c, cmdArgs)
	case "fee":
		cmdFee(c, cmdArgs)
	case "estimate":
		cmdEstimate(c, cmdArgs)
	case "p2wsh":
		cmdP2WSH(c, cmdArgs)
	case "dust":
		cmdDust(c, cmdArgs)
	case "rate":
		cmdRate(c, cmdArgs)
	case "price":
		cmdPrice(c, cmdArgs)
	case "utxo":
		cmdUTXO(c, cmdArgs)
	case "utxos":
		cmdUTXOs(c, cmdArgs)
	case "rawtx":
		cmdRawTx(c, cmdArgs)
	case "classify":
		cmdClassify(c, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: feeplanner-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: from the daemon's config file,
                      else http://127.0.0.1:%d)
  --datadir <path>    Data directory (default: ~/.feeplanner)
  --network <net>     mainnet (default), testnet, signet or regtest
  --json              Also print the raw JSON result

Shapes are comma-separated lists. Inputs are KIND[:SIZE] and outputs are
KIND[:VALUE[:SIZE]], e.g. --in p2wpkh,p2tr --out p2wsh:330,op_return::83

Commands:
  size --in <inputs> --out <outputs> [--no-change] [--change <kind>]
                                  Estimate virtual size and weight
  fee --in <inputs> --out <outputs> --rate <sat/vB> [--no-change]
                                  Itemized mining fee with advisories
  estimate --out <outputs> --rate <sat/vB> [--inputs <n>]
                                  Fee assuming n P2WPKH inputs
  p2wsh --payload <bytes> --rate <sat/vB> [--ancestor-fees <sats>]
        [--ancestor-vsize <vB>]   Fee to carry a payload in P2WSH outputs
  dust <payload-bytes>            Total dust value for a payload

  rate [--blocks <n>] [--source <name>]
                                  Current fee rate
  price [--source <name>]         Current BTC/USD price
  price invalidate                Drop cached prices

  utxo <address> <txid:vout> [--ancestors]
                                  Resolve one unspent output
  utxos <address> [--confirmed] [--ancestors]
                                  List unspent outputs of an address
  rawtx <txid>                    Raw transaction hex
  classify <address|script-hex>   Script kind and size profile
`, config.DefaultServerPort)
}

// serverURL derives the daemon's RPC URL from its config file.
func serverURL(dataDir string, network config.NetworkType) string {
	cfg := config.Default(network)
	cfg.DataDir = dataDir
	if values, err := config.LoadFile(cfg.ConfigFile()); err == nil {
		// Unknown keys are the daemon's concern; keep whatever parsed.
		_ = config.ApplyFileConfig(cfg, values)
	}
	host := cfg.Server.Addr
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

// ── fee math ────────────────────────────────────────────────────────────

func shapeFlags(fs *flag.FlagSet) (in, out, change *string, noChange *bool) {
	in = fs.String("in", "", "Inputs, KIND[:SIZE] comma-separated")
	out = fs.String("out", "", "Outputs, KIND[:VALUE[:SIZE]] comma-separated")
	change = fs.String("change", "", "Change output kind (default P2WPKH)")
	noChange = fs.Bool("no-change", false, "Do not add a change output")
	return
}

func buildShape(in, out, change string, noChange bool) rpc.ShapeParam {
	inputs, err := parseInputs(in)
	if err != nil {
		fatal("%v", err)
	}
	outputs, err := parseOutputs(out)
	if err != nil {
		fatal("%v", err)
	}
	shape := rpc.ShapeParam{
		Inputs:  inputs,
		Outputs: outputs,
	}
	if noChange {
		shape.IncludeChangeOutput = types.Bool(false)
	}
	if change != "" {
		kind, err := types.ParseScriptKind(change)
		if err != nil {
			fatal("--change: %v", err)
		}
		shape.ChangeOutputKind = &kind
	}
	return shape
}

func cmdSize(c *client, args []string) {
	fs := flag.NewFlagSet("size", flag.ExitOnError)
	in, out, change, noChange := shapeFlags(fs)
	fs.Parse(args)

	shape := buildShape(*in, *out, *change, *noChange)
	var res rpc.SizeResult
	if err := c.call("fee_estimateSize", shape, &res); err != nil {
		fatal("fee_estimateSize: %v", err)
	}

	fmt.Printf("Vsize:   %d vB\n", res.VsizeBytes)
	fmt.Printf("Weight:  %d WU\n", res.WeightUnits)
}

func cmdFee(c *client, args []string) {
	fs := flag.NewFlagSet("fee", flag.ExitOnError)
	in, out, change, noChange := shapeFlags(fs)
	rate := fs.Float64("rate", 0, "Fee rate in sat/vB (required)")
	fs.Parse(args)

	if *rate <= 0 {
		fatal("Usage: feeplanner-cli fee --in <inputs> --out <outputs> --rate <sat/vB>")
	}
	param := rpc.MiningFeeParam{
		ShapeParam: buildShape(*in, *out, *change, *noChange),
		FeeRate:    *rate,
	}
	var res rpc.MiningFeeResult
	if err := c.call("fee_miningFee", param, &res); err != nil {
		fatal("fee_miningFee: %v", err)
	}

	fmt.Printf("Vsize:          %d vB (%d WU)\n", res.VsizeBytes, res.WeightUnits)
	fmt.Printf("Base fee:       %s\n", formatSats(res.BaseFeeSats))
	if res.AncestorFeesSats > 0 {
		fmt.Printf("Ancestor fees:  %s\n", formatSats(res.AncestorFeesSats))
		fmt.Printf("Package rate:   %.2f sat/vB\n", res.PackageRateSatsPerVb)
	}
	fmt.Printf("Total fee:      %s\n", formatSats(res.TotalFeeSats))
	if res.BelowMinRelayFee {
		fmt.Printf("Warning:        below the minimum relay fee of %s\n", formatSats(res.MinRelayFeeSats))
	}
	for _, i := range res.DustOutputs {
		fmt.Printf("Warning:        output %d is below the dust limit\n", i)
	}
}

func cmdEstimate(c *client, args []string) {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	out := fs.String("out", "", "Outputs, KIND[:VALUE[:SIZE]] comma-separated")
	rate := fs.Float64("rate", 0, "Fee rate in sat/vB (required)")
	inputs := fs.Int("inputs", 1, "Number of P2WPKH inputs")
	fs.Parse(args)

	if *rate <= 0 {
		fatal("Usage: feeplanner-cli estimate --out <outputs> --rate <sat/vB> [--inputs <n>]")
	}
	outputs, err := parseOutputs(*out)
	if err != nil {
		fatal("%v", err)
	}
	param := rpc.EstimateFeeParam{
		Outputs:    outputs,
		FeeRate:    *rate,
		InputCount: *inputs,
	}
	var res rpc.FeeResult
	if err := c.call("fee_estimate", param, &res); err != nil {
		fatal("fee_estimate: %v", err)
	}
	fmt.Printf("Fee:  %s\n", formatSats(res.FeeSats))
}

func cmdP2WSH(c *client, args []string) {
	fs := flag.NewFlagSet("p2wsh", flag.ExitOnError)
	payload := fs.Int("payload", 0, "Payload size in bytes (required)")
	rate := fs.Float64("rate", 0, "Fee rate in sat/vB (required)")
	ancestorFees := fs.Uint64("ancestor-fees", 0, "Fees paid by an unconfirmed parent")
	ancestorVsize := fs.Uint64("ancestor-vsize", 0, "Vsize of an unconfirmed parent")
	fs.Parse(args)

	if *payload <= 0 || *rate <= 0 {
		fatal("Usage: feeplanner-cli p2wsh --payload <bytes> --rate <sat/vB>")
	}
	param := rpc.P2WSHFeeParam{
		PayloadBytes: *payload,
		FeeRate:      *rate,
	}
	if *ancestorFees > 0 || *ancestorVsize > 0 {
		param.UseAncestors = true
		param.Ancestor = &types.AncestorInfo{
			FeesSats:   *ancestorFees,
			VsizeBytes: *ancestorVsize,
		}
	}
	var res rpc.FeeResult
	if err := c.call("fee_p2wshMiningFee", param, &res); err != nil {
		fatal("fee_p2wshMiningFee: %v", err)
	}
	fmt.Printf("Fee:  %s\n", formatSats(res.FeeSats))
}

func cmdDust(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: feeplanner-cli dust <payload-bytes>")
	}
	n, err := cast.ToIntE(args[0])
	if err != nil || n < 0 {
		fatal("invalid payload size %q", args[0])
	}
	var res rpc.DustResult
	if err := c.call("fee_dust", rpc.DustParam{PayloadBytes: n}, &res); err != nil {
		fatal("fee_dust: %v", err)
	}
	fmt.Printf("Outputs:  %d\n", res.Chunks)
	fmt.Printf("Dust:     %s\n", formatSats(res.DustSats))
}

// ── oracles ─────────────────────────────────────────────────────────────

func cmdRate(c *client, args []string) {
	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	blocks := fs.Int("blocks", 0, "Confirmation target in blocks")
	source := fs.String("source", "", "Preferred source")
	fs.Parse(args)

	var est types.FeeEstimate
	if err := c.call("fee_rate", rpc.FeeRateParam{Blocks: *blocks, Source: *source}, &est); err != nil {
		fatal("fee_rate: %v", err)
	}
	fmt.Printf("Rate:        %.2f sat/vB\n", est.FeeRateSatsPerVB)
	fmt.Printf("Target:      %d blocks\n", est.Blocks)
	printQuoteMeta(est.Source, est.Confidence, est.FallbackUsed, est.TimestampMs)
}

func cmdPrice(c *client, args []string) {
	if len(args) > 0 && args[0] == "invalidate" {
		var res rpc.InvalidateResult
		if err := c.call("price_invalidate", nil, &res); err != nil {
			fatal("price_invalidate: %v", err)
		}
		fmt.Println("Price cache invalidated.")
		return
	}

	fs := flag.NewFlagSet("price", flag.ExitOnError)
	source := fs.String("source", "", "Preferred source")
	fs.Parse(args)

	var q types.PriceQuote
	if err := c.call("price_get", rpc.SourceParam{Source: *source}, &q); err != nil {
		fatal("price_get: %v", err)
	}
	fmt.Printf("Price:       $%.2f\n", q.Price)
	printQuoteMeta(q.Source, q.Confidence, q.FallbackUsed, q.TimestampMs)
	for _, e := range q.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func printQuoteMeta(source string, confidence types.Confidence, fallback bool, tsMs int64) {
	fmt.Printf("Source:      %s\n", source)
	fmt.Printf("Confidence:  %s\n", confidence)
	if fallback {
		fmt.Printf("Fallback:    yes\n")
	}
	if tsMs > 0 {
		ts := time.UnixMilli(tsMs).UTC()
		fmt.Printf("Timestamp:   %s\n", ts.Format("2006-01-02 15:04:05 UTC"))
	}
}

// ── utxos ───────────────────────────────────────────────────────────────

func cmdUTXO(c *client, args []string) {
	if len(args) < 2 {
		fatal("Usage: feeplanner-cli utxo <address> <txid:vout> [--ancestors]")
	}
	address := args[0]
	op, err := types.ParseOutpoint(args[1])
	if err != nil {
		fatal("%v", err)
	}
	fs := flag.NewFlagSet("utxo", flag.ExitOnError)
	ancestors := fs.Bool("ancestors", false, "Attach unconfirmed ancestor data")
	fs.Parse(args[2:])

	param := rpc.UTXOParam{
		Address:          address,
		TxID:             op.TxID,
		Vout:             op.Vout,
		IncludeAncestors: *ancestors,
	}
	var u types.UTXO
	if err := c.call("utxo_get", param, &u); err != nil {
		fatal("utxo_get: %v", err)
	}
	printUTXO(&u)
}

func cmdUTXOs(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: feeplanner-cli utxos <address> [--confirmed] [--ancestors]")
	}
	address := args[0]
	fs := flag.NewFlagSet("utxos", flag.ExitOnError)
	confirmed := fs.Bool("confirmed", false, "Only confirmed outputs")
	ancestors := fs.Bool("ancestors", false, "Attach unconfirmed ancestor data")
	fs.Parse(args[1:])

	param := rpc.UTXOListParam{
		Address:          address,
		ConfirmedOnly:    *confirmed,
		IncludeAncestors: *ancestors,
	}
	var res rpc.UTXOListResult
	if err := c.call("utxo_list", param, &res); err != nil {
		fatal("utxo_list: %v", err)
	}
	if len(res.UTXOs) == 0 {
		fmt.Println("No unspent outputs.")
		return
	}

	var total uint64
	for i, u := range res.UTXOs {
		if i > 0 {
			fmt.Println()
		}
		printUTXO(u)
		total += u.ValueSats
	}
	fmt.Printf("\nTotal: %s in %d outputs\n", formatSats(total), len(res.UTXOs))
}

func printUTXO(u *types.UTXO) {
	fmt.Printf("Outpoint:       %s\n", u.Outpoint())
	fmt.Printf("Value:          %s\n", formatSats(u.ValueSats))
	fmt.Printf("Script:         %s (%s)\n", u.ScriptKind, u.ScriptHex)
	fmt.Printf("Confirmations:  %d\n", u.Confirmations)
	if u.IsCoinbase {
		fmt.Printf("Coinbase:       yes\n")
	}
	if u.AncestorCount != nil {
		fmt.Printf("Ancestors:      %d", *u.AncestorCount)
		if u.AncestorSizeVbytes != nil && u.AncestorFeesSats != nil {
			fmt.Printf(" (%d vB, %s)", *u.AncestorSizeVbytes, formatSats(*u.AncestorFeesSats))
		}
		fmt.Println()
	}
}

func cmdRawTx(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: feeplanner-cli rawtx <txid>")
	}
	var res rpc.RawTxResult
	if err := c.call("tx_getRawHex", rpc.TxIDParam{TxID: args[0]}, &res); err != nil {
		fatal("tx_getRawHex: %v", err)
	}
	if !res.Found {
		fatal("transaction %s not found", res.TxID)
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("%s (%d bytes)\n", res.Hex, len(res.Hex)/2)
		return
	}
	fmt.Println(res.Hex)
}

// ── classify ────────────────────────────────────────────────────────────

func cmdClassify(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: feeplanner-cli classify <address|script-hex>")
	}
	param := rpc.ClassifyParam{Address: args[0]}
	if looksLikeScript(args[0]) {
		param = rpc.ClassifyParam{Script: args[0]}
	}
	var res rpc.ClassifyResult
	if err := c.call("script_classify", param, &res); err != nil {
		fatal("script_classify: %v", err)
	}
	fmt.Printf("Kind:     %s\n", res.Kind)
	fmt.Printf("Witness:  %v\n", res.IsWitness)
	fmt.Printf("Input:    %d bytes\n", res.InputBytes)
	fmt.Printf("Output:   %d bytes\n", res.OutputBytes)
	if res.WitnessBytes > 0 {
		fmt.Printf("Witness:  %d bytes\n", res.WitnessBytes)
	}
}

// looksLikeScript reports whether s is even-length hex with a standard
// script opcode prefix rather than an address.
func looksLikeScript(s string) bool {
	if len(s) < 4 || len(s)%2 != 0 {
		return false
	}
	for _, r := range strings.ToLower(s) {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	switch strings.ToLower(s[:2]) {
	case "00", "51", "6a", "76", "a9":
		return true
	}
	return false
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
