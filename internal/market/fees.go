package market

// Fee distribution shares. The three shares sum to 1 so the split always
// reconstructs the trade total.
const (
	CreatorShare   = 0.5
	ProtocolShare  = 0.4
	ValidatorShare = 0.1
)

// FeeSplit is the three-way distribution of a trade total.
type FeeSplit struct {
	Creator   float64 `json:"creator"`
	Protocol  float64 `json:"protocol"`
	Validator float64 `json:"validator"`
}

// SplitFees distributes total across creator, protocol and validator.
func SplitFees(total float64) FeeSplit {
	return FeeSplit{
		Creator:   total * CreatorShare,
		Protocol:  total * ProtocolShare,
		Validator: total * ValidatorShare,
	}
}
