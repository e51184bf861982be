package risk

import (
	"fmt"
	"regexp"
	"strings"
)

// Address pattern catalogue. Matching is case-insensitive, ordered, and
// non-exclusive: every matched entry adds its contribution and one label.
// The sum is left unclamped; clamping happens at the overall score level.

const paymentToken = "ptm"

var (
	standardHexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	longHexAddress     = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

var exchangeNames = []string{"binance", "coinbase", "kraken", "exchange"}

var scamIndicators = []string{"reward", "prize", "win", "0000", "ffff"}

// AddressPatternAnalyzer inspects a recipient identifier for known
// textual patterns.
type AddressPatternAnalyzer struct{}

// NewAddressPatternAnalyzer creates an AddressPatternAnalyzer.
func NewAddressPatternAnalyzer() *AddressPatternAnalyzer {
	return &AddressPatternAnalyzer{}
}

// Analyze matches the identifier against the catalogue and returns the
// matched labels with their summed contribution.
func (a *AddressPatternAnalyzer) Analyze(identifier string) *AddressAnalysis {
	out := &AddressAnalysis{}
	lower := strings.ToLower(identifier)

	if strings.Contains(lower, paymentToken) {
		out.add(0.10, "payment system token detected")
	}

	if strings.HasPrefix(lower, "0x") {
		out.add(0, "blockchain address format detected")
		if standardHexAddress.MatchString(identifier) {
			out.add(0.05, "standard address format")
		}
		if longHexAddress.MatchString(identifier) {
			out.add(0.20, "possible smart-contract address")
		}
	}

	for _, name := range exchangeNames {
		if strings.Contains(lower, name) {
			out.add(0.15, "possible exchange address")
			break
		}
	}

	for _, ind := range scamIndicators {
		if matchesScamIndicator(lower, ind) {
			out.add(0.30, fmt.Sprintf("suspicious pattern %q in address", ind))
		}
	}

	return out
}

// matchesScamIndicator treats the repeated-digit indicators as suffix
// checks and the rest as substring checks.
func matchesScamIndicator(lower, indicator string) bool {
	switch indicator {
	case "0000", "ffff":
		return strings.HasSuffix(lower, indicator)
	default:
		return strings.Contains(lower, indicator)
	}
}

// AddressAnalysis is the accumulated result of catalogue matching.
type AddressAnalysis struct {
	Labels       []string
	Contribution float64
}

func (a *AddressAnalysis) add(score float64, label string) {
	a.Contribution += score
	a.Labels = append(a.Labels, label)
}

// hasPaymentToken reports the payment-system token marker.
func hasPaymentToken(identifier string) bool {
	return strings.Contains(strings.ToLower(identifier), paymentToken)
}

// hasHexPrefix reports the blockchain-style hex address marker.
func hasHexPrefix(identifier string) bool {
	return strings.HasPrefix(strings.ToLower(identifier), "0x")
}
