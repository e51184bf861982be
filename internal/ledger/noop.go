package ledger

import (
	"context"

	"github.com/secureflow/riskd/internal/domain"
)

// NoopLedger is the ledger used when no RPC endpoint is configured.
// Submissions return an empty hash without error.
type NoopLedger struct{}

var _ domain.Ledger = (*NoopLedger)(nil)

// NewNoopLedger creates a disabled ledger.
func NewNoopLedger() *NoopLedger {
	return &NoopLedger{}
}

// Submit does nothing.
func (l *NoopLedger) Submit(ctx context.Context, rec *domain.LedgerRecord) (string, error) {
	return "", nil
}

// Enabled reports that submissions are disabled.
func (l *NoopLedger) Enabled() bool {
	return false
}

// Close does nothing.
func (l *NoopLedger) Close() error {
	return nil
}

// New creates a ledger from config. An empty RPC URL disables submission.
func New(cfg domain.LedgerConfig) (domain.Ledger, error) {
	if cfg.RPCURL == "" {
		return NewNoopLedger(), nil
	}
	return NewEthLedger(cfg)
}
