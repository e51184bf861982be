package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secureflow/riskd/internal/domain"
)

// RuleEvaluator evaluates operator-defined rules over the flattened
// feature map and the recipient identifier. It returns the total score
// contribution and one description per triggered rule.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, features map[string]float64, recipient string) (float64, []string, error)
}

// Pipeline orchestrates derive, analyze, score, classify, then history
// append. It owns no I/O beyond the injected history store.
type Pipeline struct {
	deriver    *FeatureDeriver
	analyzer   *AddressPatternAnalyzer
	scorer     *RiskScorer
	classifier *VerdictClassifier

	history   domain.HistoryStore
	rules     RuleEvaluator // optional
	addrCache domain.Cache  // optional
	logger    *slog.Logger

	// now is injected for deterministic tests.
	now func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRules attaches a custom rules evaluator.
func WithRules(r RuleEvaluator) PipelineOption {
	return func(p *Pipeline) { p.rules = r }
}

// WithClock overrides the pipeline clock.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithAddressCache memoizes address pattern analyses in the given cache.
func WithAddressCache(c domain.Cache) PipelineOption {
	return func(p *Pipeline) { p.addrCache = c }
}

// NewPipeline creates a Pipeline over the given history store.
func NewPipeline(history domain.HistoryStore, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		deriver:    NewFeatureDeriver(),
		analyzer:   NewAddressPatternAnalyzer(),
		scorer:     NewRiskScorer(),
		classifier: NewVerdictClassifier(),
		history:    history,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict scores one request end to end. Validation failures return an
// error with a nil verdict. Internal faults degrade to the fallback
// verdict alongside the error, so the caller can still answer with a
// structured body. The transaction is appended to history only after a
// verdict exists.
func (p *Pipeline) Predict(ctx context.Context, req *domain.PredictRequest) (verdict *domain.Verdict, tx *domain.Transaction, err error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	now := p.now()
	tx = req.ToTransaction(now)
	tx.ID = uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic recovered", "panic", r, "tx_id", tx.ID)
			verdict = p.fallback(tx, now)
			err = fmt.Errorf("pipeline failure: %v", r)
		}
	}()

	history := p.history.Snapshot(now)

	rec, err := p.deriver.Derive(tx.Amount, tx.Recipient, now, history, req.Features)
	if err != nil {
		return nil, nil, err
	}

	addr := p.analyzeAddress(ctx, tx.Recipient)
	raw, factors := p.scorer.Score(rec, addr)

	if p.rules != nil {
		contrib, descs, rerr := p.rules.Evaluate(ctx, rec.ToMap(), tx.Recipient)
		if rerr != nil {
			p.logger.Warn("custom rule evaluation failed", "error", rerr, "tx_id", tx.ID)
		} else {
			raw += contrib
			factors = append(factors, descs...)
		}
	}

	score := Clamp01(raw)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		p.logger.Error("non-finite risk score", "raw", raw, "tx_id", tx.ID)
		return p.fallback(tx, now), tx, fmt.Errorf("non-finite risk score")
	}

	verdict = p.classifier.Classify(score, rec, addr, factors, now)
	verdict.ID = uuid.NewString()
	verdict.TxID = tx.ID

	p.history.Append(tx)
	return verdict, tx, nil
}

const addressCacheTTL = 5 * time.Minute

// analyzeAddress runs the pattern catalogue, memoized per recipient when
// a cache is attached. Cache failures fall back to a fresh analysis.
func (p *Pipeline) analyzeAddress(ctx context.Context, recipient string) *AddressAnalysis {
	if p.addrCache == nil {
		return p.analyzer.Analyze(recipient)
	}

	key := "addr:" + strings.ToLower(recipient)
	if data, err := p.addrCache.Get(ctx, key); err == nil && data != nil {
		var cached AddressAnalysis
		if json.Unmarshal(data, &cached) == nil {
			return &cached
		}
	}

	addr := p.analyzer.Analyze(recipient)
	if data, err := json.Marshal(addr); err == nil {
		if err := p.addrCache.Set(ctx, key, data, addressCacheTTL); err != nil {
			p.logger.Warn("address analysis cache write failed", "error", err)
		}
	}
	return addr
}

func (p *Pipeline) fallback(tx *domain.Transaction, now time.Time) *domain.Verdict {
	v := domain.FallbackVerdict(tx.ID, now)
	v.ID = uuid.NewString()
	return v
}
