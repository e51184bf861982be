package rules

import (
	"context"
	"math"
	"testing"

	"github.com/secureflow/riskd/internal/domain"
)

func testFeatures() map[string]float64 {
	return map[string]float64{
		"amount":               2500,
		"hour_of_day":          3,
		"day_of_week":          2,
		"tx_count_24h":         7,
		"amount_mean_24h":      500,
		"amount_std_24h":       120,
		"amount_max_24h":       900,
		"hours_since_last_tx":  0.5,
		"tx_per_hour":          0.29,
		"tx_per_day":           7,
		"amount_to_mean_ratio": 5,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "rule-001",
		Name:       "Large amount",
		Expression: "amount > 100.0",
		Weight:     0.2,
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "invalid-rule",
		Name:       "Invalid Rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Errorf("expected error for invalid expression")
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "rule-002",
		Name:       "Night velocity",
		Expression: "hour_of_day < 6.0 && tx_count_24h > 5.0",
		Weight:     0.3,
		Enabled:    true,
	}

	if err := engine.ValidateRule(rule); err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("validate must not load rules, count = %d", engine.RulesCount())
	}
}

func TestEvaluateBooleanRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "rule-bool",
		Name:       "ratio spike",
		Expression: "amount_to_mean_ratio > 4.0",
		Weight:     0.25,
		Enabled:    true,
	})

	total, descs, err := engine.Evaluate(context.Background(), testFeatures(), "acct-1")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if math.Abs(total-0.25) > 1e-9 {
		t.Errorf("contribution = %v, want weight 0.25", total)
	}
	if len(descs) != 1 || descs[0] != "Custom rule: ratio spike" {
		t.Errorf("descriptions = %v", descs)
	}
}

func TestEvaluateNumericRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "rule-num",
		Name:       "scaled deviation",
		Expression: "amount_to_mean_ratio / 10.0",
		Weight:     0.2,
		Enabled:    true,
	})

	total, _, err := engine.Evaluate(context.Background(), testFeatures(), "acct-1")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	// value 0.5 times weight 0.2
	if math.Abs(total-0.1) > 1e-9 {
		t.Errorf("contribution = %v, want 0.1", total)
	}
}

func TestEvaluateUntriggeredRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "rule-quiet",
		Name:       "huge amount",
		Expression: "amount > 1000000.0",
		Weight:     0.5,
		Enabled:    true,
	})

	total, descs, err := engine.Evaluate(context.Background(), testFeatures(), "acct-1")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if total != 0 || len(descs) != 0 {
		t.Errorf("untriggered rule contributed %v %v", total, descs)
	}
}

func TestEvaluateFeaturesMapAccess(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "rule-extra",
		Name:       "merchant age",
		Expression: `"merchant_age" in features && features["merchant_age"] < 1.0`,
		Weight:     0.15,
		Enabled:    true,
	})

	features := testFeatures()
	features["merchant_age"] = 0.2

	total, _, err := engine.Evaluate(context.Background(), features, "acct-1")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if math.Abs(total-0.15) > 1e-9 {
		t.Errorf("contribution = %v, want 0.15", total)
	}
}

func TestEvaluateRecipientRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "rule-recipient",
		Name:       "exchange hot wallet",
		Expression: `recipient.contains("binance")`,
		Weight:     0.5,
		Enabled:    true,
	})

	total, descs, err := engine.Evaluate(context.Background(), testFeatures(), "binance-hot-wallet")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if math.Abs(total-0.5) > 1e-9 {
		t.Errorf("contribution = %v, want weight 0.5", total)
	}
	if len(descs) != 1 || descs[0] != "Custom rule: exchange hot wallet" {
		t.Errorf("descriptions = %v", descs)
	}

	total, _, err = engine.Evaluate(context.Background(), testFeatures(), "acct-1")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if total != 0 {
		t.Errorf("contribution = %v for non-matching recipient, want 0", total)
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "rule-old",
		Name:       "old",
		Expression: "amount > 1.0",
		Weight:     0.1,
		Enabled:    true,
	})

	err := engine.ReloadRules([]*domain.RuleConfig{
		{ID: "rule-new", Name: "new", Expression: "tx_count_24h > 3.0", Weight: 0.2, Enabled: true},
		{ID: "rule-off", Name: "off", Expression: "amount > 1.0", Weight: 0.2, Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
	loaded := engine.GetLoadedRules()
	if len(loaded) != 1 || loaded[0].ID != "rule-new" {
		t.Errorf("loaded rules = %v", loaded)
	}
}

func TestEvaluateAllStableOrder(t *testing.T) {
	engine, _ := NewEngine(2)
	defer engine.Close()

	engine.LoadRules([]*domain.RuleConfig{
		{ID: "b-rule", Name: "b", Expression: "amount > 1.0", Weight: 0.1, Enabled: true},
		{ID: "a-rule", Name: "a", Expression: "amount > 1.0", Weight: 0.1, Enabled: true},
		{ID: "c-rule", Name: "c", Expression: "amount > 1.0", Weight: 0.1, Enabled: true},
	})

	results, err := engine.EvaluateAll(context.Background(), testFeatures(), "acct-1")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"a-rule", "b-rule", "c-rule"} {
		if results[i].RuleID != want {
			t.Errorf("results[%d] = %q, want %q", i, results[i].RuleID, want)
		}
	}
}
