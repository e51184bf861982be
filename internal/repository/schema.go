package repository

// Schema definitions for the riskd database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount REAL NOT NULL,
    recipient TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    features TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_recipient ON transactions(recipient);
`

const schemaVerdicts = `
CREATE TABLE IF NOT EXISTS verdicts (
    id TEXT PRIMARY KEY,
    tx_id TEXT NOT NULL,
    score REAL NOT NULL,
    level TEXT NOT NULL,
    confidence TEXT NOT NULL,
    is_fraud INTEGER NOT NULL DEFAULT 0,
    risk_factors TEXT NOT NULL,
    suggestions TEXT NOT NULL,
    metrics TEXT NOT NULL,
    category TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_tx ON verdicts(tx_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_level ON verdicts(level);
CREATE INDEX IF NOT EXISTS idx_verdicts_timestamp ON verdicts(timestamp);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaVerdicts,
		schemaRuleConfigs,
	}
}
