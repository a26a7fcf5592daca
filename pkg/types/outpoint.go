package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// IsZero returns true if the outpoint has an empty TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID == "" && o.Vout == 0
}

// String returns "txid:vout".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Vout)
}

// ParseOutpoint parses a "txid:vout" string.
func ParseOutpoint(s string) (Outpoint, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return Outpoint{}, fmt.Errorf("invalid outpoint %q: expected txid:vout", s)
	}
	vout, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint %q: %w", s, err)
	}
	return Outpoint{TxID: strings.ToLower(s[:i]), Vout: uint32(vout)}, nil
}
