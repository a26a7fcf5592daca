// Package script classifies Bitcoin output scripts and addresses and
// derives the output script an address expects.
package script

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// Fallback is the kind reported for anything that cannot be recognized.
const Fallback = types.ScriptKindP2WPKH

// Bech32 data-part lengths (witness version + program + checksum) after
// the "1" separator, for 20- and 32-byte programs.
const (
	bech32Len20 = 1 + 32 + 6
	bech32Len32 = 1 + 52 + 6
)

// Classify returns the script kind for an output. The script takes
// precedence over the address when both are usable; when neither is,
// Classify returns Fallback. It never fails.
func Classify(address, scriptHex string, params *chaincfg.Params) types.ScriptKind {
	if s := strings.TrimSpace(scriptHex); s != "" {
		if raw, err := hex.DecodeString(s); err == nil {
			if k := ClassifyScript(raw); k != types.ScriptKindUnknown {
				return k
			}
		}
	}
	if k := ClassifyAddress(address, params); k != types.ScriptKindUnknown {
		return k
	}
	return Fallback
}

// ClassifyScript maps a raw output script to its kind, or
// ScriptKindUnknown if it is not one of the standard templates.
func ClassifyScript(pkScript []byte) types.ScriptKind {
	if len(pkScript) == 0 {
		return types.ScriptKindUnknown
	}
	switch txscript.GetScriptClass(pkScript) {
	case txscript.PubKeyHashTy:
		return types.ScriptKindP2PKH
	case txscript.ScriptHashTy:
		return types.ScriptKindP2SH
	case txscript.WitnessV0PubKeyHashTy:
		return types.ScriptKindP2WPKH
	case txscript.WitnessV0ScriptHashTy:
		return types.ScriptKindP2WSH
	case txscript.WitnessV1TaprootTy:
		return types.ScriptKindP2TR
	case txscript.NullDataTy:
		return types.ScriptKindOpReturn
	default:
		return types.ScriptKindUnknown
	}
}

// ClassifyAddress maps an address string to a script kind. Addresses
// that decode for params are classified by their decoded type; anything
// else (other networks, bad checksums) goes through prefix rules.
func ClassifyAddress(address string, params *chaincfg.Params) types.ScriptKind {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.ScriptKindUnknown
	}
	if params != nil {
		if addr, err := btcutil.DecodeAddress(address, params); err == nil && addr.IsForNet(params) {
			switch addr.(type) {
			case *btcutil.AddressPubKeyHash:
				return types.ScriptKindP2PKH
			case *btcutil.AddressScriptHash:
				return types.ScriptKindP2SH
			case *btcutil.AddressWitnessPubKeyHash:
				return types.ScriptKindP2WPKH
			case *btcutil.AddressWitnessScriptHash:
				return types.ScriptKindP2WSH
			case *btcutil.AddressTaproot:
				return types.ScriptKindP2TR
			}
		}
	}
	return classifyByPrefix(address)
}

func classifyByPrefix(address string) types.ScriptKind {
	lower := strings.ToLower(address)
	for _, hrp := range []string{"bcrt1", "bc1", "tb1"} {
		if !strings.HasPrefix(lower, hrp) {
			continue
		}
		data := lower[len(hrp):]
		if data == "" {
			return types.ScriptKindUnknown
		}
		switch {
		case data[0] == 'q' && len(data) == bech32Len20:
			return types.ScriptKindP2WPKH
		case data[0] == 'q' && len(data) == bech32Len32:
			return types.ScriptKindP2WSH
		case data[0] == 'p' && len(data) == bech32Len32:
			return types.ScriptKindP2TR
		}
		return types.ScriptKindUnknown
	}

	// Base58 addresses are 26 to 35 characters long.
	if len(address) < 26 || len(address) > 35 {
		return types.ScriptKindUnknown
	}
	switch address[0] {
	case '1', 'm', 'n':
		return types.ScriptKindP2PKH
	case '3', '2':
		return types.ScriptKindP2SH
	}
	return types.ScriptKindUnknown
}
