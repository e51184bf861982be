package domain

import "context"

// LedgerRecord is the subset of a verdict written to the external ledger.
type LedgerRecord struct {
	TxID      string
	Amount    float64
	Recipient string
	RiskLevel string
}

// Ledger submits verdict records to an append-only external ledger.
// Submission failures never roll back an already-returned verdict.
type Ledger interface {
	// Submit records the verdict and returns the ledger transaction hash.
	Submit(ctx context.Context, rec *LedgerRecord) (string, error)

	// Enabled reports whether submissions are actually performed.
	Enabled() bool

	// Lifecycle
	Close() error
}

// LedgerConfig holds configuration for ledger initialization.
type LedgerConfig struct {
	// RPCURL is the EVM node endpoint. Empty disables submission.
	RPCURL string

	// ContractAddress is the deployed verdict-registry contract.
	ContractAddress string

	// PrivateKey is the hex-encoded signing key.
	PrivateKey string

	// ChainID of the target network.
	ChainID int64

	// ReceiptTimeout bounds the receipt poll, in seconds.
	ReceiptTimeout int
}
