package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/secureflow/riskd/internal/domain"
	"github.com/secureflow/riskd/internal/metrics"
)

// submitTimeout bounds a single ledger submission end to end.
const submitTimeout = 2 * time.Minute

// Worker consumes scored-transaction events and submits eligible
// verdicts to the ledger. Submission failures are logged and counted
// but never surface to the scoring path.
type Worker struct {
	bus    domain.EventBus
	ledger domain.Ledger
	logger *slog.Logger

	subscription domain.Subscription
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorker creates a ledger submission worker.
func NewWorker(bus domain.EventBus, ledger domain.Ledger, logger *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		ledger: ledger,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to scored-transaction events.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionScored, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	w.subscription = sub

	w.logger.Info("ledger worker started",
		"topic", domain.TopicTransactionScored,
		"ledger_enabled", w.ledger.Enabled(),
	)
	return nil
}

// Stop unsubscribes and cancels in-flight submissions.
func (w *Worker) Stop() {
	w.cancel()
	if w.subscription != nil {
		_ = w.subscription.Unsubscribe()
	}
	w.logger.Info("ledger worker stopped")
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var event domain.ScoredEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.logger.Error("failed to unmarshal scored event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if !event.Submit {
		metrics.LedgerSubmissionsTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if !w.ledger.Enabled() {
		metrics.LedgerSubmissionsTotal.WithLabelValues("disabled").Inc()
		return nil
	}

	submitCtx, cancel := context.WithTimeout(w.ctx, submitTimeout)
	defer cancel()

	rec := &domain.LedgerRecord{
		TxID:      event.TxID,
		Amount:    event.Amount,
		Recipient: event.Recipient,
		RiskLevel: event.Level,
	}

	hash, err := w.ledger.Submit(submitCtx, rec)
	if err != nil {
		metrics.LedgerSubmissionsTotal.WithLabelValues("error").Inc()
		w.logger.Error("ledger submission failed",
			"tx_id", event.TxID,
			"verdict_id", event.VerdictID,
			"ledger_tx_hash", hash,
			"error", err,
		)
		return err
	}

	metrics.LedgerSubmissionsTotal.WithLabelValues("ok").Inc()
	w.logger.Info("verdict recorded on ledger",
		"tx_id", event.TxID,
		"verdict_id", event.VerdictID,
		"risk_level", event.Level,
		"ledger_tx_hash", hash,
	)
	return nil
}
