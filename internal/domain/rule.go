package domain

// RuleConfig defines an operator-supplied scoring rule. The expression is
// a CEL program evaluated over the derived feature record after the
// built-in catalogue has run.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression. A boolean result contributes Weight when true; a
	// numeric result contributes value × Weight.
	Expression string `json:"expression"`

	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}

// RuleResult is the outcome of evaluating one custom rule.
type RuleResult struct {
	RuleID       string  `json:"ruleId"`
	Name         string  `json:"name"`
	Triggered    bool    `json:"triggered"`
	Contribution float64 `json:"contribution"`
	Err          string  `json:"error,omitempty"`
}
