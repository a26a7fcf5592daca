package types

import (
	"fmt"
	"strings"
)

// ScriptKind identifies a standard output script template.
type ScriptKind uint8

const (
	ScriptKindUnknown  ScriptKind = iota // Unrecognized or non-standard script
	ScriptKindP2PKH                      // Pay to public key hash
	ScriptKindP2SH                       // Pay to script hash (assumed nested P2WPKH when spent)
	ScriptKindP2WPKH                     // Pay to witness public key hash
	ScriptKindP2WSH                      // Pay to witness script hash
	ScriptKindP2TR                       // Pay to taproot
	ScriptKindOpReturn                   // Provably unspendable data carrier

	numScriptKinds
)

// AllScriptKinds lists every known kind, ScriptKindUnknown excluded.
var AllScriptKinds = []ScriptKind{
	ScriptKindP2PKH,
	ScriptKindP2SH,
	ScriptKindP2WPKH,
	ScriptKindP2WSH,
	ScriptKindP2TR,
	ScriptKindOpReturn,
}

var scriptKindNames = [numScriptKinds]string{
	ScriptKindUnknown:  "UNKNOWN",
	ScriptKindP2PKH:    "P2PKH",
	ScriptKindP2SH:     "P2SH",
	ScriptKindP2WPKH:   "P2WPKH",
	ScriptKindP2WSH:    "P2WSH",
	ScriptKindP2TR:     "P2TR",
	ScriptKindOpReturn: "OP_RETURN",
}

// String returns the canonical name for the script kind.
func (k ScriptKind) String() string {
	if k < numScriptKinds {
		return scriptKindNames[k]
	}
	return "UNKNOWN"
}

// Valid reports whether k is one of the known kinds (UNKNOWN included).
func (k ScriptKind) Valid() bool {
	return k < numScriptKinds
}

// IsWitness reports whether spending an output of this kind carries
// witness data. P2SH is treated as nested P2WPKH.
func (k ScriptKind) IsWitness() bool {
	switch k {
	case ScriptKindP2SH, ScriptKindP2WPKH, ScriptKindP2WSH, ScriptKindP2TR:
		return true
	default:
		return false
	}
}

// ParseScriptKind parses a kind name case-insensitively. "OPRETURN" and
// "NULLDATA" are accepted as aliases for OP_RETURN.
func ParseScriptKind(s string) (ScriptKind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "OPRETURN", "NULLDATA":
		return ScriptKindOpReturn, nil
	}
	for k, n := range scriptKindNames {
		if n == name {
			return ScriptKind(k), nil
		}
	}
	return ScriptKindUnknown, fmt.Errorf("unknown script kind %q", s)
}

// MarshalText encodes the kind as its canonical name.
func (k ScriptKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ScriptKind) UnmarshalText(data []byte) error {
	parsed, err := ParseScriptKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
