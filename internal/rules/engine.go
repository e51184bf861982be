// Package rules provides the CEL-Go based custom rule engine. Operator
// rules run over the derived feature record after the built-in catalogue
// and contribute to the risk score before clamping.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/secureflow/riskd/internal/domain"
)

// featureVariables are the snake_case feature names bound as top-level
// CEL variables. They mirror FeatureRecord.ToMap.
var featureVariables = []string{
	"amount",
	"hour_of_day",
	"day_of_week",
	"tx_count_24h",
	"amount_mean_24h",
	"amount_std_24h",
	"amount_max_24h",
	"hours_since_last_tx",
	"tx_per_hour",
	"tx_per_day",
	"amount_to_mean_ratio",
}

// Engine is the CEL-based rule evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	opts := []cel.EnvOption{
		cel.Variable("features", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("recipient", cel.StringType),
	}
	for _, name := range featureVariables {
		opts = append(opts, cel.Variable(name, cel.DoubleType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateAll evaluates all loaded rules in parallel over the flattened
// feature map. Results are ordered by rule ID so output is stable across
// runs.
func (e *Engine) EvaluateAll(ctx context.Context, features map[string]float64, recipient string) ([]domain.RuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})

	activation := map[string]any{
		"features":  features,
		"recipient": recipient,
	}
	for _, name := range featureVariables {
		activation[name] = features[name]
	}

	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// Evaluate sums the contributions of all triggered rules and returns one
// description per trigger. This is the pipeline-facing entry point.
func (e *Engine) Evaluate(ctx context.Context, features map[string]float64, recipient string) (float64, []string, error) {
	results, err := e.EvaluateAll(ctx, features, recipient)
	if err != nil {
		return 0, nil, err
	}

	var total float64
	var descs []string
	for _, r := range results {
		if r.Err != "" || !r.Triggered {
			continue
		}
		total += r.Contribution
		descs = append(descs, "Custom rule: "+r.Name)
	}
	return total, descs, nil
}

// evaluateRule evaluates a single rule and returns the result.
func evaluateRule(rule *CompiledRule, activation map[string]any) domain.RuleResult {
	result := domain.RuleResult{
		RuleID: rule.Config.ID,
		Name:   rule.Config.Name,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	// A boolean result contributes the weight when true; a numeric
	// result contributes value times weight.
	switch v := out.(type) {
	case types.Bool:
		if bool(v) {
			result.Triggered = true
			result.Contribution = rule.Config.Weight
		}
	default:
		value := toFloat(out)
		if value != 0 {
			result.Triggered = true
			result.Contribution = value * rule.Config.Weight
		}
	}

	return result
}

// toFloat converts a numeric CEL value to float64.
func toFloat(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
