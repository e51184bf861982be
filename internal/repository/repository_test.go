package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/secureflow/riskd/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "riskd-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		tx := &domain.Transaction{
			ID:        "tx-001",
			Amount:    1250.50,
			Recipient: "0xabc123abc123abc123abc123abc123abc123abcd",
			Timestamp: time.Now().UTC(),
			CreatedAt: time.Now().UTC(),
			Features:  map[string]float64{"merchant_age": 2.5},
		}

		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		retrieved, err := repo.GetTransaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}

		if retrieved.ID != tx.ID {
			t.Errorf("expected ID %s, got %s", tx.ID, retrieved.ID)
		}
		if retrieved.Amount != tx.Amount {
			t.Errorf("expected Amount %.2f, got %.2f", tx.Amount, retrieved.Amount)
		}
		if retrieved.Recipient != tx.Recipient {
			t.Errorf("expected Recipient %s, got %s", tx.Recipient, retrieved.Recipient)
		}
		if retrieved.Features["merchant_age"] != 2.5 {
			t.Errorf("features round-trip failed: %v", retrieved.Features)
		}
	})

	t.Run("GetTransactionNotFound", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListTransactionsSince", func(t *testing.T) {
		now := time.Now().UTC()
		old := &domain.Transaction{
			ID: "tx-old", Amount: 10, Recipient: "acct-1",
			Timestamp: now.Add(-48 * time.Hour), CreatedAt: now,
		}
		recent := &domain.Transaction{
			ID: "tx-recent", Amount: 20, Recipient: "acct-2",
			Timestamp: now.Add(-time.Hour), CreatedAt: now,
		}
		for _, tx := range []*domain.Transaction{old, recent} {
			if err := repo.SaveTransaction(ctx, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		txs, err := repo.ListTransactionsSince(ctx, now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("ListTransactionsSince failed: %v", err)
		}

		for _, tx := range txs {
			if tx.ID == "tx-old" {
				t.Errorf("stale transaction returned")
			}
		}
		found := false
		for _, tx := range txs {
			if tx.ID == "tx-recent" {
				found = true
			}
		}
		if !found {
			t.Errorf("recent transaction missing from %d results", len(txs))
		}
	})

	t.Run("SaveAndGetVerdict", func(t *testing.T) {
		v := &domain.Verdict{
			ID:            "verdict-001",
			TxID:          "tx-001",
			Score:         0.75,
			Level:         domain.LevelHigh,
			Confidence:    "95%",
			IsLikelyFraud: true,
			RiskFactors:   []string{"Large transaction amount"},
			Suggestions:   []string{"Consider manual review by security team"},
			Metrics: domain.AnalysisMetrics{
				VelocityScore: 6,
				PatternMatch:  "Anomalous",
				TimeBasedRisk: 0.8,
			},
			Category:  "High-Risk-Blockchain",
			Timestamp: time.Now().UTC(),
		}

		if err := repo.SaveVerdict(ctx, v); err != nil {
			t.Fatalf("SaveVerdict failed: %v", err)
		}

		retrieved, err := repo.GetVerdict(ctx, v.ID)
		if err != nil {
			t.Fatalf("GetVerdict failed: %v", err)
		}

		if retrieved.Score != v.Score {
			t.Errorf("expected score %v, got %v", v.Score, retrieved.Score)
		}
		if !retrieved.IsLikelyFraud {
			t.Errorf("fraud flag lost in round trip")
		}
		if len(retrieved.RiskFactors) != 1 || retrieved.RiskFactors[0] != v.RiskFactors[0] {
			t.Errorf("risk factors = %v", retrieved.RiskFactors)
		}
		if retrieved.Metrics.PatternMatch != "Anomalous" {
			t.Errorf("metrics round-trip failed: %+v", retrieved.Metrics)
		}
		if retrieved.Category != v.Category {
			t.Errorf("expected category %s, got %s", v.Category, retrieved.Category)
		}
	})

	t.Run("VerdictNotFound", func(t *testing.T) {
		_, err := repo.GetVerdict(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRuleConfigCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.RuleConfig{
		ID:          "rule-001",
		Name:        "Night velocity",
		Description: "High frequency during off-hours",
		Expression:  "hour_of_day < 6.0 && tx_count_24h > 5.0",
		Weight:      0.3,
		Enabled:     true,
	}

	if err := repo.SaveRuleConfig(ctx, rule); err != nil {
		t.Fatalf("SaveRuleConfig failed: %v", err)
	}

	retrieved, err := repo.GetRuleConfig(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetRuleConfig failed: %v", err)
	}
	if retrieved.Expression != rule.Expression {
		t.Errorf("expression = %q, want %q", retrieved.Expression, rule.Expression)
	}
	if !retrieved.Enabled {
		t.Errorf("enabled flag lost")
	}

	// Upsert replaces in place.
	rule.Weight = 0.5
	rule.Enabled = false
	if err := repo.SaveRuleConfig(ctx, rule); err != nil {
		t.Fatalf("SaveRuleConfig upsert failed: %v", err)
	}
	retrieved, err = repo.GetRuleConfig(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetRuleConfig after upsert failed: %v", err)
	}
	if retrieved.Weight != 0.5 || retrieved.Enabled {
		t.Errorf("upsert not applied: weight=%v enabled=%v", retrieved.Weight, retrieved.Enabled)
	}

	list, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		t.Fatalf("ListRuleConfigs failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list length = %d, want 1", len(list))
	}

	if err := repo.DeleteRuleConfig(ctx, rule.ID); err != nil {
		t.Fatalf("DeleteRuleConfig failed: %v", err)
	}
	if err := repo.DeleteRuleConfig(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
