package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/secureflow/riskd/internal/bus"
	"github.com/secureflow/riskd/internal/cache"
	"github.com/secureflow/riskd/internal/domain"
	"github.com/secureflow/riskd/internal/history"
	"github.com/secureflow/riskd/internal/repository"
	"github.com/secureflow/riskd/internal/risk"
	"github.com/secureflow/riskd/internal/rules"
)

// createTestServer creates a fully wired server over a temp SQLite file.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "riskd_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	c, err := cache.New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	b := bus.NewChannelBus(domain.EventBusConfig{ChannelBufferSize: 16})
	t.Cleanup(func() { _ = b.Close() })

	engine, err := rules.NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Pin the clock to mid-afternoon so the unusual-hour rule stays quiet
	// regardless of when the tests run.
	at := time.Now().UTC().Truncate(24 * time.Hour).Add(14 * time.Hour)
	pipeline := risk.NewPipeline(history.NewMemoryStore(), logger,
		risk.WithRules(engine),
		risk.WithClock(func() time.Time { return at }),
	)

	return NewServer(cfg, pipeline, repo, c, b, engine, nil, "test-v1")
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestPredictEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulPrediction", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/predict", domain.PredictRequest{
			Amount:           50,
			RecipientAddress: "acct-regular-77",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp domain.PredictResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.PredictionID == "" || resp.TransactionID == "" {
			t.Error("prediction and transaction IDs should be set")
		}
		if resp.RiskLevel != domain.LevelLow {
			t.Errorf("riskLevel = %q, want %q", resp.RiskLevel, domain.LevelLow)
		}
		if resp.FraudDetection.IsLikelyFraud {
			t.Error("small transaction should not be flagged as fraud")
		}
		if !resp.ShouldSaveToBlockchain {
			t.Error("shouldSaveToBlockchain should be true")
		}
		if _, ok := resp.ModelPredictions["rule_based"]; !ok {
			t.Error("modelPredictions should contain rule_based")
		}
	})

	t.Run("HighRiskPrediction", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/predict", domain.PredictRequest{
			Amount:           12000,
			RecipientAddress: "acct-regular-88",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp domain.PredictResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		// The amount ladder plus the deviation from the small prior
		// transaction pushes this well past the High threshold.
		if resp.RiskLevel != domain.LevelHigh {
			t.Errorf("riskLevel = %q, want %q", resp.RiskLevel, domain.LevelHigh)
		}
		if !resp.FraudDetection.IsLikelyFraud {
			t.Error("expected fraud flag for high risk score")
		}
		if len(resp.RiskFactors) == 0 {
			t.Error("risk factors should be populated")
		}
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/predict", domain.PredictRequest{
			Amount:           -5,
			RecipientAddress: "acct-1",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("MissingRecipient", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/predict", domain.PredictRequest{
			Amount: 100,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestPredictionRetrieval(t *testing.T) {
	server := createTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/predict", domain.PredictRequest{
		Amount:           250,
		RecipientAddress: "acct-retrieve-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d", rec.Code)
	}

	var created domain.PredictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	t.Run("Found", func(t *testing.T) {
		get := doRequest(t, server, http.MethodGet, "/api/predictions/"+created.PredictionID, nil)
		if get.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", get.Code, get.Body.String())
		}
		var fetched domain.PredictResponse
		if err := json.Unmarshal(get.Body.Bytes(), &fetched); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if fetched.PredictionID != created.PredictionID {
			t.Errorf("predictionId = %q, want %q", fetched.PredictionID, created.PredictionID)
		}
		if fetched.TransactionID != created.TransactionID {
			t.Errorf("transactionId = %q, want %q", fetched.TransactionID, created.TransactionID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		get := doRequest(t, server, http.MethodGet, "/api/predictions/no-such-id", nil)
		if get.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", get.Code)
		}
	})

	t.Run("Transaction", func(t *testing.T) {
		get := doRequest(t, server, http.MethodGet, "/api/transactions/"+created.TransactionID, nil)
		if get.Code != http.StatusOK {
			t.Fatalf("status = %d", get.Code)
		}
		var tx domain.Transaction
		if err := json.Unmarshal(get.Body.Bytes(), &tx); err != nil {
			t.Fatalf("failed to decode transaction: %v", err)
		}
		if tx.Amount != 250 {
			t.Errorf("amount = %v, want 250", tx.Amount)
		}
	})

	t.Run("TransactionList", func(t *testing.T) {
		get := doRequest(t, server, http.MethodGet, "/api/transactions", nil)
		if get.Code != http.StatusOK {
			t.Fatalf("status = %d", get.Code)
		}
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(get.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if body.Count < 1 {
			t.Errorf("count = %d, want at least 1", body.Count)
		}
	})

	t.Run("TransactionListBadSince", func(t *testing.T) {
		get := doRequest(t, server, http.MethodGet, "/api/transactions?since=yesterday", nil)
		if get.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", get.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateRule", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/rules", CreateRuleRequest{
			ID:         "velocity-spike",
			Name:       "Velocity spike",
			Expression: "tx_per_hour > 4.0",
			Weight:     0.2,
			Enabled:    true,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("CreateRuleInvalidExpression", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/rules", CreateRuleRequest{
			ID:         "bad-rule",
			Name:       "Bad",
			Expression: "amount >>> 1",
			Weight:     0.1,
			Enabled:    true,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("CreateRuleMissingFields", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/rules", CreateRuleRequest{
			ID: "half-baked",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("ListRules", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/rules", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if body.Count != 1 {
			t.Errorf("count = %d, want 1", body.Count)
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/rules/velocity-spike", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("GetRuleNotFound", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/api/rules/missing", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("ReloadRules", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/rules/reload", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("DeleteRule", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodDelete, "/api/rules/velocity-spike", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		rec = doRequest(t, server, http.MethodDelete, "/api/rules/velocity-spike", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("second delete status = %d, want 404", rec.Code)
		}
	})
}

func TestPredictWithRecipientRule(t *testing.T) {
	server := createTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/rules", CreateRuleRequest{
		ID:         "exchange-recipient",
		Name:       "Exchange hot wallet",
		Expression: `recipient.contains("binance")`,
		Weight:     0.5,
		Enabled:    true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, server, http.MethodPost, "/api/predict", domain.PredictRequest{
		Amount:           50,
		RecipientAddress: "binance-hot-wallet",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp domain.PredictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	found := false
	for _, f := range resp.RiskFactors {
		if f == "Custom rule: Exchange hot wallet" {
			found = true
		}
	}
	if !found {
		t.Errorf("riskFactors %v missing recipient rule trigger", resp.RiskFactors)
	}

	rec = doRequest(t, server, http.MethodPost, "/api/predict", domain.PredictRequest{
		Amount:           50,
		RecipientAddress: "acct-other-9",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d", rec.Code)
	}
	resp = domain.PredictResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, f := range resp.RiskFactors {
		if f == "Custom rule: Exchange hot wallet" {
			t.Errorf("rule triggered for non-matching recipient: %v", resp.RiskFactors)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode health body: %v", err)
		}
		if body["status"] != "healthy" {
			t.Errorf("status = %q, want healthy", body["status"])
		}
		if body["version"] != "test-v1" {
			t.Errorf("version = %q", body["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/ready", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/metrics", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
