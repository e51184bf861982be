package domain

import (
	"fmt"
	"time"
)

// Risk level labels, ordered from lowest to highest.
const (
	LevelLow        = "Low"
	LevelLowMedium  = "Low-Medium"
	LevelMedium     = "Medium"
	LevelMediumHigh = "Medium-High"
	LevelHigh       = "High"
)

// AnalysisMetrics carries the deterministic per-request diagnostics.
type AnalysisMetrics struct {
	VelocityScore         float64 `json:"velocityScore"`
	FrequencyScore        float64 `json:"frequencyScore"`
	AmountDeviation       float64 `json:"amountDeviation"`
	HistoricalRiskScore   float64 `json:"historicalRiskScore"`
	PatternMatch          string  `json:"patternMatch"`
	TimeBasedRisk         float64 `json:"timeBasedRisk"`
	AddressRiskScore      float64 `json:"addressRiskScore"`
	HasKnownPrefixPattern bool    `json:"hasKnownPrefixPattern"`
	HasHexAddressPattern  bool    `json:"hasHexAddressPattern"`
}

// FraudDetection is the nested fraud summary of a verdict.
type FraudDetection struct {
	FraudProbability     float64 `json:"fraudProbability"`
	IsLikelyFraud        bool    `json:"isLikelyFraud"`
	FraudDetectionResult string  `json:"fraudDetectionResult"`
}

// Verdict is the complete scoring result for a transaction.
type Verdict struct {
	ID   string `json:"id"`
	TxID string `json:"txId"`

	Score      float64 `json:"score"`
	Level      string  `json:"level"`
	Confidence string  `json:"confidence"`

	IsLikelyFraud bool `json:"isLikelyFraud"`

	RiskFactors []string        `json:"riskFactors"`
	Suggestions []string        `json:"suggestions"`
	Metrics     AnalysisMetrics `json:"metrics"`
	Category    string          `json:"category"`

	Timestamp time.Time `json:"timestamp"`
}

// PredictResponse is the wire shape returned by POST /api/predict.
// Field names are part of the public contract and must not change.
type PredictResponse struct {
	PredictionID  string `json:"predictionId"`
	TransactionID string `json:"transactionId"`

	RiskLevel  string `json:"riskLevel"`
	Confidence string `json:"confidence"`
	Details    string `json:"details"`

	FraudDetection   FraudDetection     `json:"fraudDetection"`
	ModelPredictions map[string]float64 `json:"modelPredictions"`
	AnalysisMetrics  AnalysisMetrics    `json:"analysisMetrics"`

	RiskFactors         []string `json:"riskFactors"`
	SecuritySuggestions []string `json:"securitySuggestions"`

	TransactionCategory    string `json:"transactionCategory"`
	ShouldSaveToBlockchain bool   `json:"shouldSaveToBlockchain"`

	Error string `json:"error,omitempty"`
}

// ToResponse converts a Verdict to the API response shape.
func (v *Verdict) ToResponse() *PredictResponse {
	result := "No fraud detected"
	if v.IsLikelyFraud {
		result = "Potential fraud detected"
	}
	return &PredictResponse{
		PredictionID:  v.ID,
		TransactionID: v.TxID,
		RiskLevel:     v.Level,
		Confidence:    v.Confidence,
		Details:       fmt.Sprintf("Risk score: %.2f", v.Score),
		FraudDetection: FraudDetection{
			FraudProbability:     v.Score,
			IsLikelyFraud:        v.IsLikelyFraud,
			FraudDetectionResult: result,
		},
		ModelPredictions:       map[string]float64{"rule_based": v.Score},
		AnalysisMetrics:        v.Metrics,
		RiskFactors:            v.RiskFactors,
		SecuritySuggestions:    v.Suggestions,
		TransactionCategory:    v.Category,
		ShouldSaveToBlockchain: true,
	}
}

// FallbackVerdict is returned when the scoring pipeline fails. The caller
// always receives a structured answer, never a partial one.
func FallbackVerdict(txID string, now time.Time) *Verdict {
	return &Verdict{
		TxID:       txID,
		Score:      0.5,
		Level:      LevelMedium,
		Confidence: "50%",
		RiskFactors: []string{
			"Error in prediction model",
			"Using fallback risk assessment",
		},
		Suggestions: []string{
			"Verify recipient identity before proceeding",
			"Consider additional verification for this transaction",
		},
		Metrics: AnalysisMetrics{
			HistoricalRiskScore: 0.5,
			PatternMatch:        "Normal",
			TimeBasedRisk:       0.2,
		},
		Category:  LevelMedium + "-Risk",
		Timestamp: now,
	}
}
