package types

// TxInput describes one input of a transaction shape for size estimation.
// A nil IsWitness defaults from Kind. SizeBytes overrides the non-witness
// size of a witness input and the whole size of a non-witness input.
type TxInput struct {
	Kind      ScriptKind    `json:"kind"`
	SizeBytes *uint64       `json:"sizeBytes,omitempty"`
	IsWitness *bool         `json:"isWitness,omitempty"`
	Ancestor  *AncestorInfo `json:"ancestor,omitempty"`
}

// Witness reports whether the input is spent with witness data.
func (in TxInput) Witness() bool {
	if in.IsWitness != nil {
		return *in.IsWitness
	}
	return in.Kind.IsWitness()
}

// TxOutput describes one output of a transaction shape.
type TxOutput struct {
	Kind      ScriptKind `json:"kind"`
	SizeBytes *uint64    `json:"sizeBytes,omitempty"`
	IsWitness *bool      `json:"isWitness,omitempty"`
	ValueSats uint64     `json:"valueSats"`
}

// Witness reports whether the output is of a witness template.
func (out TxOutput) Witness() bool {
	if out.IsWitness != nil {
		return *out.IsWitness
	}
	return out.Kind.IsWitness()
}

// AncestorInfo summarizes one unconfirmed parent transaction.
type AncestorInfo struct {
	FeesSats               uint64  `json:"feesSats"`
	VsizeBytes             uint64  `json:"vsizeBytes"`
	EffectiveRateSatsPerVb float64 `json:"effectiveRateSatsPerVb,omitempty"`
}

// FeeEstimateOptions controls the synthetic change output.
type FeeEstimateOptions struct {
	IncludeChangeOutput bool       `json:"includeChangeOutput"`
	ChangeOutputKind    ScriptKind `json:"changeOutputKind"`
}

// DefaultFeeEstimateOptions returns options that append one P2WPKH change output.
func DefaultFeeEstimateOptions() FeeEstimateOptions {
	return FeeEstimateOptions{
		IncludeChangeOutput: true,
		ChangeOutputKind:    ScriptKindP2WPKH,
	}
}

// Uint64 returns a pointer to v, for optional size overrides.
func Uint64(v uint64) *uint64 { return &v }

// Bool returns a pointer to v, for optional witness overrides.
func Bool(v bool) *bool { return &v }
