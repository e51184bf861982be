package risk

import (
	"math"
	"strings"
	"testing"

	"github.com/secureflow/riskd/internal/domain"
)

func baseRecord() *domain.FeatureRecord {
	return &domain.FeatureRecord{
		Amount:            100,
		Recipient:         "acct-42",
		HourOfDay:         12,
		AmountToMeanRatio: 1,
	}
}

func scoreOf(t *testing.T, rec *domain.FeatureRecord) float64 {
	t.Helper()
	raw, _ := NewRiskScorer().Score(rec, &AddressAnalysis{})
	return raw
}

func TestScoreAmountThresholdsStack(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{500, 0},
		{1500, 0.10},
		{6000, 0.30},
		{12000, 0.50},
	}

	for _, tc := range tests {
		rec := baseRecord()
		rec.Amount = tc.amount
		if got := scoreOf(t, rec); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("amount %v: score = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func TestScoreMonotonicInAmount(t *testing.T) {
	prev := -1.0
	for _, amount := range []float64{500, 1001, 5001, 10001, 50000} {
		rec := baseRecord()
		rec.Amount = amount
		got := Clamp01(scoreOf(t, rec))
		if got < prev {
			t.Errorf("score decreased at amount %v: %v < %v", amount, got, prev)
		}
		prev = got
	}
}

func TestScoreRatioRules(t *testing.T) {
	rec := baseRecord()
	rec.AmountToMeanRatio = 4
	if got := scoreOf(t, rec); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("ratio 4: score = %v, want 0.15", got)
	}

	rec.AmountToMeanRatio = 12
	if got := scoreOf(t, rec); math.Abs(got-0.40) > 1e-9 {
		t.Errorf("ratio 12: score = %v, want 0.40", got)
	}
}

func TestScoreOffHours(t *testing.T) {
	rec := baseRecord()
	rec.HourOfDay = 2
	if got := scoreOf(t, rec); math.Abs(got-0.10) > 1e-9 {
		t.Errorf("hour 2: score = %v, want 0.10", got)
	}

	// 23 is inside the valid range; the upper guard never fires.
	rec.HourOfDay = 23
	if got := scoreOf(t, rec); got != 0 {
		t.Errorf("hour 23: score = %v, want 0", got)
	}
}

func TestScoreFrequencyRules(t *testing.T) {
	rec := baseRecord()
	rec.TxCount24h = 7
	if got := scoreOf(t, rec); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("count 7: score = %v, want 0.15", got)
	}

	rec.TxCount24h = 12
	if got := scoreOf(t, rec); math.Abs(got-0.35) > 1e-9 {
		t.Errorf("count 12: score = %v, want 0.35", got)
	}
}

func TestScoreCompoundRules(t *testing.T) {
	t.Run("amount with frequency", func(t *testing.T) {
		rec := baseRecord()
		rec.Amount = 1500
		rec.TxCount24h = 4
		// 0.10 amount + 0.10 compound
		if got := scoreOf(t, rec); math.Abs(got-0.20) > 1e-9 {
			t.Errorf("score = %v, want 0.20", got)
		}
	})

	t.Run("fraud alert", func(t *testing.T) {
		rec := baseRecord()
		rec.Amount = 6000
		rec.TxCount24h = 6
		rec.HourOfDay = 3

		raw, factors := NewRiskScorer().Score(rec, &AddressAnalysis{})
		// amount 0.30, off-hours 0.10, frequency 0.15, compounds 0.10+0.15+0.30
		if math.Abs(raw-1.10) > 1e-9 {
			t.Errorf("raw score = %v, want 1.10", raw)
		}
		if Clamp01(raw) != 1.0 {
			t.Errorf("clamped = %v, want 1.0", Clamp01(raw))
		}

		found := false
		for _, f := range factors {
			if strings.HasPrefix(f, "Fraud alert") {
				found = true
			}
		}
		if !found {
			t.Errorf("factors %v missing fraud alert description", factors)
		}
	})
}

func TestScorePaymentTokenAdjustments(t *testing.T) {
	rec := baseRecord()
	rec.Recipient = "ptm-wallet-001"
	rec.HasKnownPrefixPattern = true

	rec.Amount = 6000
	// 0.30 amount stack + 0.10 PTM large transfer
	if got := scoreOf(t, rec); math.Abs(got-0.40) > 1e-9 {
		t.Errorf("large PTM: score = %v, want 0.40", got)
	}

	rec.Amount = 50
	// The single subtractive rule.
	if got := scoreOf(t, rec); math.Abs(got+0.05) > 1e-9 {
		t.Errorf("small PTM: raw score = %v, want -0.05", got)
	}
	if Clamp01(scoreOf(t, rec)) != 0 {
		t.Errorf("small PTM clamps below zero")
	}
}

func TestScoreHexAdjustments(t *testing.T) {
	rec := baseRecord()
	rec.HasHexAddressPattern = true

	rec.Recipient = "0xabc123abc123abc123abc123abc123abc123abcd"
	rec.Amount = 2000
	// 0.10 amount + 0.15 hex transfer
	if got := scoreOf(t, rec); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("hex transfer: score = %v, want 0.25", got)
	}

	rec.Recipient = "0x" + strings.Repeat("ab12", 16)
	// adds 0.10 for the over-length identifier
	if got := scoreOf(t, rec); math.Abs(got-0.35) > 1e-9 {
		t.Errorf("long hex: score = %v, want 0.35", got)
	}
}

func TestScoreAddressContributionFirst(t *testing.T) {
	rec := baseRecord()
	addr := &AddressAnalysis{
		Labels:       []string{"possible exchange address"},
		Contribution: 0.15,
	}

	raw, factors := NewRiskScorer().Score(rec, addr)
	if math.Abs(raw-0.15) > 1e-9 {
		t.Errorf("score = %v, want 0.15", raw)
	}
	if len(factors) == 0 || factors[0] != "Address pattern: possible exchange address" {
		t.Errorf("factors = %v, want address label first with prefix", factors)
	}
}
