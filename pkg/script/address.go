package script

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ValidationError reports malformed local input. It is never retried.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PayToAddress returns the output script an address locks funds with.
func PayToAddress(address string, params *chaincfg.Params) ([]byte, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &ValidationError{Field: "address", Value: address, Err: fmt.Errorf("empty")}
	}
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, &ValidationError{Field: "address", Value: address, Err: err}
	}
	if !addr.IsForNet(params) {
		return nil, &ValidationError{
			Field: "address",
			Value: address,
			Err:   fmt.Errorf("not a %s address", params.Name),
		}
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, &ValidationError{Field: "address", Value: address, Err: err}
	}
	return pkScript, nil
}

// PayToAddressHex is PayToAddress with a hex-encoded result.
func PayToAddressHex(address string, params *chaincfg.Params) (string, error) {
	pkScript, err := PayToAddress(address, params)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pkScript), nil
}

// NetParams maps a network name to chain parameters.
func NetParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, &ValidationError{Field: "network", Value: network}
	}
}
