package risk

import (
	"github.com/secureflow/riskd/internal/domain"
)

// standardHexAddressLen is the length of a 40-hex-digit address with its
// 0x prefix. Longer hex identifiers suggest contract interaction.
const standardHexAddressLen = 42

// RiskScorer applies the ordered additive rule catalogue over a feature
// record and an address analysis.
type RiskScorer struct{}

// NewRiskScorer creates a RiskScorer.
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// Score accumulates rule contributions in a fixed order and returns the
// unclamped sum. Each triggered rule appends one description. The caller
// clamps with Clamp01 once every contribution, including custom rules,
// has been added.
func (s *RiskScorer) Score(rec *domain.FeatureRecord, addr *AddressAnalysis) (float64, []string) {
	score := 0.0
	var factors []string

	add := func(delta float64, desc string) {
		score += delta
		factors = append(factors, desc)
	}

	// Address contribution comes first, labels prefixed.
	score += addr.Contribution
	for _, label := range addr.Labels {
		factors = append(factors, "Address pattern: "+label)
	}

	// Amount thresholds stack.
	if rec.Amount > 1000 {
		add(0.10, "Large transaction amount")
	}
	if rec.Amount > 5000 {
		add(0.20, "Very large transaction amount")
	}
	if rec.Amount > 10000 {
		add(0.20, "Extremely large transaction amount")
	}

	if rec.AmountToMeanRatio > 3 {
		add(0.15, "Amount significantly above recent average")
	}
	if rec.AmountToMeanRatio > 10 {
		add(0.25, "Amount far above recent average")
	}

	// The hour domain is 0-23, so the upper check never fires. It is kept
	// as written for parity with the original rule set.
	offHours := rec.HourOfDay < 6 || rec.HourOfDay > 23
	if offHours {
		add(0.10, "Transaction at unusual hour")
	}

	if rec.TxCount24h > 5 {
		add(0.15, "High transaction frequency in last 24 hours")
	}
	if rec.TxCount24h > 10 {
		add(0.20, "Very high transaction frequency in last 24 hours")
	}

	// Compound rules.
	if rec.Amount > 1000 && rec.TxCount24h > 3 {
		add(0.10, "Large amount combined with elevated frequency")
	}
	if rec.Amount > 3000 && offHours {
		add(0.15, "Large amount at unusual hour")
	}
	if rec.Amount > 5000 && rec.TxCount24h > 5 && offHours {
		add(0.30, "Fraud alert: large amount, high frequency, unusual hour")
	}

	// Identifier-specific adjustments.
	if rec.HasKnownPrefixPattern {
		if rec.Amount > 5000 {
			add(0.10, "Large payment token transfer")
		}
		if rec.Amount < 100 {
			// The only subtractive rule.
			add(-0.05, "Small payment token transaction")
		}
	}
	if rec.HasHexAddressPattern {
		if rec.Amount > 1000 {
			add(0.15, "Large blockchain transfer")
		}
		if len(rec.Recipient) > standardHexAddressLen {
			add(0.10, "Possible smart-contract interaction")
		}
	}

	return score, factors
}

// Clamp01 bounds a raw rule sum to the [0,1] score domain.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
