package risk

import (
	"time"

	"github.com/secureflow/riskd/internal/domain"
)

// fraudThreshold is the score above which a transaction is flagged as
// likely fraud.
const fraudThreshold = 0.6

// Fixed suggestion lists per risk level.
var suggestionsByLevel = map[string][]string{
	domain.LevelHigh: {
		"Enable two-factor authentication for all transactions",
		"Verify recipient identity through secondary channel",
		"Consider manual review by security team",
	},
	domain.LevelMediumHigh: {
		"Verify recipient identity through secondary channel",
		"Enable additional verification for this transaction",
	},
	domain.LevelMedium: {
		"Verify recipient identity before proceeding",
		"Consider additional verification for this transaction",
	},
	domain.LevelLowMedium: {
		"Verify recipient address before proceeding",
		"Standard security measures are sufficient",
	},
	domain.LevelLow: {
		"Standard security measures are sufficient",
		"Normal transaction flow recommended",
	},
}

// VerdictClassifier maps a risk score to a discrete verdict with
// explanation material.
type VerdictClassifier struct{}

// NewVerdictClassifier creates a VerdictClassifier.
func NewVerdictClassifier() *VerdictClassifier {
	return &VerdictClassifier{}
}

// Classify produces the verdict for a scored transaction.
func (c *VerdictClassifier) Classify(score float64, rec *domain.FeatureRecord, addr *AddressAnalysis, factors []string, now time.Time) *domain.Verdict {
	level, confidence := levelFor(score)

	suggestions := append([]string(nil), suggestionsByLevel[level]...)
	if rec.HasKnownPrefixPattern {
		suggestions = append(suggestions, "Confirm payment token contract address before transfer")
	}
	if rec.HasHexAddressPattern {
		suggestions = append(suggestions, "Double-check the recipient address on a block explorer")
	}
	if rec.AmountToMeanRatio > 3 {
		suggestions = append(suggestions, "Consider splitting transaction into smaller amounts")
	}

	category := level + "-Risk"
	switch {
	case rec.HasKnownPrefixPattern:
		category += "-PTM"
	case rec.HasHexAddressPattern:
		category += "-Blockchain"
	}

	pattern := "Normal"
	if score > fraudThreshold {
		pattern = "Anomalous"
	}
	timeRisk := 0.2
	if rec.HourOfDay < 6 || rec.HourOfDay > 23 {
		timeRisk = 0.8
	}

	return &domain.Verdict{
		Score:         score,
		Level:         level,
		Confidence:    confidence,
		IsLikelyFraud: score > fraudThreshold,
		RiskFactors:   factors,
		Suggestions:   suggestions,
		Metrics: domain.AnalysisMetrics{
			VelocityScore:         rec.TxPerDay,
			FrequencyScore:        rec.TxPerHour,
			AmountDeviation:       rec.AmountToMeanRatio,
			HistoricalRiskScore:   score,
			PatternMatch:          pattern,
			TimeBasedRisk:         timeRisk,
			AddressRiskScore:      addr.Contribution,
			HasKnownPrefixPattern: rec.HasKnownPrefixPattern,
			HasHexAddressPattern:  rec.HasHexAddressPattern,
		},
		Category:  category,
		Timestamp: now,
	}
}

// levelFor maps the clamped score to the five-level scale.
func levelFor(score float64) (level, confidence string) {
	switch {
	case score >= 0.7:
		return domain.LevelHigh, "95%"
	case score >= 0.5:
		return domain.LevelMediumHigh, "90%"
	case score >= 0.3:
		return domain.LevelMedium, "85%"
	case score >= 0.1:
		return domain.LevelLowMedium, "80%"
	default:
		return domain.LevelLow, "90%"
	}
}
