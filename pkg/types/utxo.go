package types

// UTXO is an unspent output resolved from a remote node.
//
// The three ancestor fields are nil when ancestor data was not requested
// or could not be fetched; a non-nil zero means the output has no
// unconfirmed ancestors.
type UTXO struct {
	TxID               string     `json:"txid"`
	Vout               uint32     `json:"vout"`
	ValueSats          uint64     `json:"valueSats"`
	ScriptHex          string     `json:"scriptHex"`
	ScriptKind         ScriptKind `json:"scriptKind"`
	VsizeBytes         uint64     `json:"vsizeBytes"`
	Confirmations      uint64     `json:"confirmations"`
	IsCoinbase         bool       `json:"isCoinbase"`
	AncestorCount      *int       `json:"ancestorCount,omitempty"`
	AncestorSizeVbytes *uint64    `json:"ancestorSizeVbytes,omitempty"`
	AncestorFeesSats   *uint64    `json:"ancestorFeesSats,omitempty"`
}

// Outpoint returns the outpoint identifying u.
func (u *UTXO) Outpoint() Outpoint {
	return Outpoint{TxID: u.TxID, Vout: u.Vout}
}

// Ancestor returns the aggregate ancestor data as an AncestorInfo, or nil
// when no ancestor data is attached.
func (u *UTXO) Ancestor() *AncestorInfo {
	if u.AncestorFeesSats == nil || u.AncestorSizeVbytes == nil {
		return nil
	}
	info := &AncestorInfo{
		FeesSats:   *u.AncestorFeesSats,
		VsizeBytes: *u.AncestorSizeVbytes,
	}
	if info.VsizeBytes > 0 {
		info.EffectiveRateSatsPerVb = float64(info.FeesSats) / float64(info.VsizeBytes)
	}
	return info
}
