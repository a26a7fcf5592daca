package main

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/cast"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// parseInputs parses a comma-separated list of KIND[:SIZE] entries.
func parseInputs(s string) ([]types.TxInput, error) {
	var inputs []types.TxInput
	for _, item := range splitList(s) {
		parts := strings.Split(item, ":")
		if len(parts) > 2 {
			return nil, fmt.Errorf("input %q: expected KIND[:SIZE]", item)
		}
		kind, err := types.ParseScriptKind(parts[0])
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", item, err)
		}
		in := types.TxInput{Kind: kind}
		if len(parts) == 2 {
			size, err := cast.ToUint64E(parts[1])
			if err != nil {
				return nil, fmt.Errorf("input %q: size: %w", item, err)
			}
			in.SizeBytes = types.Uint64(size)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// parseOutputs parses a comma-separated list of KIND[:VALUE[:SIZE]]
// entries. VALUE is in satoshis.
func parseOutputs(s string) ([]types.TxOutput, error) {
	var outputs []types.TxOutput
	for _, item := range splitList(s) {
		parts := strings.Split(item, ":")
		if len(parts) > 3 {
			return nil, fmt.Errorf("output %q: expected KIND[:VALUE[:SIZE]]", item)
		}
		kind, err := types.ParseScriptKind(parts[0])
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", item, err)
		}
		out := types.TxOutput{Kind: kind}
		if len(parts) >= 2 && parts[1] != "" {
			value, err := cast.ToUint64E(parts[1])
			if err != nil {
				return nil, fmt.Errorf("output %q: value: %w", item, err)
			}
			out.ValueSats = value
		}
		if len(parts) == 3 {
			size, err := cast.ToUint64E(parts[2])
			if err != nil {
				return nil, fmt.Errorf("output %q: size: %w", item, err)
			}
			out.SizeBytes = types.Uint64(size)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func splitList(s string) []string {
	var items []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// formatSats renders a satoshi amount with its BTC equivalent.
func formatSats(sats uint64) string {
	return fmt.Sprintf("%d sats (%s)", sats, btcutil.Amount(sats))
}
