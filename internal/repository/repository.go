// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/secureflow/riskd/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a scored transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	features, _ := json.Marshal(tx.Features)

	query := `
		INSERT INTO transactions (
			id, amount, recipient, timestamp, created_at, features
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.Amount, tx.Recipient,
		tx.Timestamp, tx.CreatedAt,
		string(features),
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, amount, recipient, timestamp, created_at, features
		FROM transactions
		WHERE id = ?
	`

	var tx domain.Transaction
	var features string

	err := r.db.QueryRowContext(ctx, r.rebind(query), txID).Scan(
		&tx.ID, &tx.Amount, &tx.Recipient,
		&tx.Timestamp, &tx.CreatedAt,
		&features,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if features != "" && features != "null" {
		json.Unmarshal([]byte(features), &tx.Features)
	}

	return &tx, nil
}

// ListTransactionsSince retrieves transactions scored at or after the
// given instant, newest first.
func (r *SQLRepository) ListTransactionsSince(ctx context.Context, since time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT id, amount, recipient, timestamp, created_at, features
		FROM transactions
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var features string

		if err := rows.Scan(
			&tx.ID, &tx.Amount, &tx.Recipient,
			&tx.Timestamp, &tx.CreatedAt,
			&features,
		); err != nil {
			return nil, err
		}

		if features != "" && features != "null" {
			json.Unmarshal([]byte(features), &tx.Features)
		}

		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}

// SaveVerdict stores a verdict.
func (r *SQLRepository) SaveVerdict(ctx context.Context, v *domain.Verdict) error {
	if v.ID == "" {
		return fmt.Errorf("%w: verdict id is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(v.RiskFactors)
	suggestions, _ := json.Marshal(v.Suggestions)
	metrics, _ := json.Marshal(v.Metrics)

	fraud := 0
	if v.IsLikelyFraud {
		fraud = 1
	}

	query := `
		INSERT INTO verdicts (
			id, tx_id, score, level, confidence, is_fraud,
			risk_factors, suggestions, metrics, category, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.ID, v.TxID, v.Score, v.Level, v.Confidence, fraud,
		string(factors), string(suggestions), string(metrics),
		v.Category, v.Timestamp,
	)
	return err
}

// GetVerdict retrieves a verdict by ID.
func (r *SQLRepository) GetVerdict(ctx context.Context, verdictID string) (*domain.Verdict, error) {
	query := `
		SELECT id, tx_id, score, level, confidence, is_fraud,
			   risk_factors, suggestions, metrics, category, timestamp
		FROM verdicts
		WHERE id = ?
	`

	var v domain.Verdict
	var factors, suggestions, metrics string
	var fraud int

	err := r.db.QueryRowContext(ctx, r.rebind(query), verdictID).Scan(
		&v.ID, &v.TxID, &v.Score, &v.Level, &v.Confidence, &fraud,
		&factors, &suggestions, &metrics, &v.Category, &v.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	v.IsLikelyFraud = fraud == 1
	json.Unmarshal([]byte(factors), &v.RiskFactors)
	json.Unmarshal([]byte(suggestions), &v.Suggestions)
	json.Unmarshal([]byte(metrics), &v.Metrics)

	return &v, nil
}

// SaveRuleConfig stores a rule configuration, replacing any previous
// version with the same ID.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, expression, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Expression, rule.Weight, enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves a rule configuration by ID.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, expression, weight, enabled
		FROM rule_configs
		WHERE id = ?
	`

	var cfg domain.RuleConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description,
		&cfg.Expression, &cfg.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListRuleConfigs retrieves all rule configurations ordered by name.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, expression, weight, enabled
		FROM rule_configs
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description,
			&cfg.Expression, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteRuleConfig removes a rule configuration.
func (r *SQLRepository) DeleteRuleConfig(ctx context.Context, ruleID string) error {
	query := `DELETE FROM rule_configs WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
