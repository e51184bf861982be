// Package ledger submits scored verdicts to an append-only EVM contract.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/secureflow/riskd/internal/domain"
)

// registryABI is the minimal ABI of the verdict registry contract.
const registryABI = `[
	{"constant":false,"inputs":[{"name":"amountWei","type":"uint256"},{"name":"recipient","type":"string"},{"name":"riskLevel","type":"string"}],"name":"recordVerdict","outputs":[],"type":"function"}
]`

const (
	// DefaultGasLimit for recordVerdict calls when estimation fails.
	DefaultGasLimit = uint64(200000)

	// DefaultReceiptTimeout bounds the receipt poll.
	DefaultReceiptTimeout = 30 * time.Second

	// ReceiptPollInterval between receipt checks.
	ReceiptPollInterval = 2 * time.Second

	// weiPerUnit converts the amount into the contract's fixed-point
	// representation (18 decimals).
	weiPerUnit = 1e18
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrRPCConnection     = errors.New("rpc connection failed")
	ErrReceiptTimeout    = errors.New("timed out waiting for receipt")
)

// SubmissionError wraps a failure at a specific step of submission.
type SubmissionError struct {
	Op     string
	TxHash string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger %s failed for tx %s: %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// EthClient abstracts the go-ethereum client for testing.
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// EthLedger submits verdict records to an EVM contract.
type EthLedger struct {
	client         EthClient
	privateKey     *ecdsa.PrivateKey
	address        common.Address
	chainID        *big.Int
	contract       common.Address
	abi            abi.ABI
	receiptTimeout time.Duration
}

var _ domain.Ledger = (*EthLedger)(nil)

// Option customizes ledger construction.
type Option func(*EthLedger)

// WithClient injects a client, bypassing the RPC dial.
func WithClient(c EthClient) Option {
	return func(l *EthLedger) { l.client = c }
}

// NewEthLedger creates a ledger backed by the configured EVM node.
func NewEthLedger(cfg domain.LedgerConfig, opts ...Option) (*EthLedger, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: failed to derive public key", ErrInvalidPrivateKey)
	}

	parsedABI, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	receiptTimeout := DefaultReceiptTimeout
	if cfg.ReceiptTimeout > 0 {
		receiptTimeout = time.Duration(cfg.ReceiptTimeout) * time.Second
	}

	l := &EthLedger{
		privateKey:     privateKey,
		address:        crypto.PubkeyToAddress(*publicKey),
		chainID:        big.NewInt(cfg.ChainID),
		contract:       common.HexToAddress(cfg.ContractAddress),
		abi:            parsedABI,
		receiptTimeout: receiptTimeout,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.client == nil {
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
		}
		l.client = client
	}

	return l, nil
}

func validateConfig(cfg domain.LedgerConfig) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("%w: RPC URL required", ErrRPCConnection)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("%w: private key required", ErrInvalidPrivateKey)
	}
	key := strings.TrimPrefix(cfg.PrivateKey, "0x")
	if len(key) != 64 {
		return fmt.Errorf("%w: must be 64 hex characters", ErrInvalidPrivateKey)
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain ID required")
	}
	if cfg.ContractAddress == "" {
		return fmt.Errorf("contract address required")
	}
	return nil
}

// Enabled reports that this ledger performs real submissions.
func (l *EthLedger) Enabled() bool {
	return true
}

// Address returns the submitting account's address.
func (l *EthLedger) Address() string {
	return l.address.Hex()
}

// Submit records a verdict on chain and waits for the receipt.
func (l *EthLedger) Submit(ctx context.Context, rec *domain.LedgerRecord) (string, error) {
	amountWei := amountToWei(rec.Amount)

	data, err := l.abi.Pack("recordVerdict", amountWei, rec.Recipient, rec.RiskLevel)
	if err != nil {
		return "", &SubmissionError{Op: "pack", Err: err}
	}

	nonce, err := l.client.PendingNonceAt(ctx, l.address)
	if err != nil {
		return "", &SubmissionError{Op: "nonce", Err: err}
	}

	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", &SubmissionError{Op: "gas_price", Err: err}
	}

	gasLimit, err := l.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  l.address,
		To:    &l.contract,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		gasLimit = DefaultGasLimit
	}

	tx := types.NewTransaction(nonce, l.contract, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(l.chainID), l.privateKey)
	if err != nil {
		return "", &SubmissionError{Op: "sign", Err: err}
	}

	if err := l.client.SendTransaction(ctx, signedTx); err != nil {
		return "", &SubmissionError{Op: "send", TxHash: signedTx.Hash().Hex(), Err: err}
	}

	hash := signedTx.Hash()
	if err := l.waitForReceipt(ctx, hash); err != nil {
		return hash.Hex(), &SubmissionError{Op: "receipt", TxHash: hash.Hex(), Err: err}
	}

	return hash.Hex(), nil
}

// waitForReceipt polls until the transaction is mined or the timeout expires.
func (l *EthLedger) waitForReceipt(ctx context.Context, hash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, l.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction reverted in block %d", receipt.BlockNumber)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrReceiptTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the RPC connection.
func (l *EthLedger) Close() error {
	l.client.Close()
	return nil
}

// amountToWei converts an amount to the contract's 18-decimal representation.
func amountToWei(amount float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(weiPerUnit)).Int(nil)
	return wei
}
