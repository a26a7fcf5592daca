package types

// Confidence is the qualitative trust level attached to an oracle quote.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DefaultSource is the source name of a static fallback quote.
const DefaultSource = "default"

// PriceQuote is a numeric figure produced by an oracle.
type PriceQuote struct {
	Price        float64        `json:"price"`
	Source       string         `json:"source"`
	Confidence   Confidence     `json:"confidence"`
	TimestampMs  int64          `json:"timestampMs"`
	FallbackUsed bool           `json:"fallbackUsed"`
	Errors       []string       `json:"errors,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// IsStaticFallback reports whether q is the oracle's static default answer.
func (q PriceQuote) IsStaticFallback() bool {
	return q.Source == DefaultSource
}

// FeeEstimate is a fee rate for a confirmation target.
type FeeEstimate struct {
	FeeRateSatsPerVB float64    `json:"feeRateSatsPerVB"`
	Blocks           int        `json:"blocks"`
	Source           string     `json:"source"`
	Confidence       Confidence `json:"confidence"`
	FallbackUsed     bool       `json:"fallbackUsed"`
	TimestampMs      int64      `json:"timestampMs"`
}
