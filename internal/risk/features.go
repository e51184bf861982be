// Package risk implements the transaction risk scoring pipeline:
// feature derivation, address pattern analysis, additive rule scoring,
// and verdict classification.
package risk

import (
	"math"
	"time"

	"github.com/secureflow/riskd/internal/domain"
)

// lookbackWindow is the rolling window driving all 24h aggregates.
const lookbackWindow = 24 * time.Hour

// FeatureDeriver turns a transaction plus its recent history into a
// fixed-shape feature record.
type FeatureDeriver struct{}

// NewFeatureDeriver creates a FeatureDeriver.
func NewFeatureDeriver() *FeatureDeriver {
	return &FeatureDeriver{}
}

// Derive computes the feature record for one request. The history slice
// is the full (unfiltered) snapshot; the 24h aggregates use only the
// entries inside the lookback window. Extras are merged last and may
// overwrite derived fields of the same name.
func (d *FeatureDeriver) Derive(amount float64, recipient string, now time.Time, history []*domain.Transaction, extras map[string]float64) (*domain.FeatureRecord, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	recent := filterWindow(history, now, lookbackWindow)

	mean, std, max := amount, 0.0, amount
	if len(recent) > 0 {
		mean, std, max = amountStats(recent)
	}

	ratio := 1.0
	if mean > 0 {
		ratio = amount / mean
	}

	hoursSinceLast := 24.0
	if last, ok := lastTimestamp(history); ok {
		hoursSinceLast = now.Sub(last).Hours()
		if hoursSinceLast < 0 {
			hoursSinceLast = 0
		}
	}

	count := len(recent)
	rec := &domain.FeatureRecord{
		Amount:                amount,
		Recipient:             recipient,
		HourOfDay:             now.Hour(),
		DayOfWeek:             int(now.Weekday()),
		TxCount24h:            count,
		AmountMean24h:         mean,
		AmountStd24h:          std,
		AmountMax24h:          max,
		HoursSinceLastTx:      hoursSinceLast,
		TxPerHour:             float64(count) / 24.0,
		TxPerDay:              float64(count),
		AmountToMeanRatio:     ratio,
		HasKnownPrefixPattern: hasPaymentToken(recipient),
		HasHexAddressPattern:  hasHexPrefix(recipient),
	}

	applyExtras(rec, extras)
	return rec, nil
}

// filterWindow returns the entries with now - timestamp < window. The
// history is scanned in full so out-of-order timestamps are handled.
func filterWindow(history []*domain.Transaction, now time.Time, window time.Duration) []*domain.Transaction {
	var out []*domain.Transaction
	for _, tx := range history {
		age := now.Sub(tx.Timestamp)
		if age >= 0 && age < window {
			out = append(out, tx)
		}
	}
	return out
}

func amountStats(txs []*domain.Transaction) (mean, std, max float64) {
	var sum float64
	for _, tx := range txs {
		sum += tx.Amount
		if tx.Amount > max {
			max = tx.Amount
		}
	}
	mean = sum / float64(len(txs))

	var sq float64
	for _, tx := range txs {
		d := tx.Amount - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(txs)))
	return mean, std, max
}

func lastTimestamp(history []*domain.Transaction) (time.Time, bool) {
	var last time.Time
	found := false
	for _, tx := range history {
		if !found || tx.Timestamp.After(last) {
			last = tx.Timestamp
			found = true
		}
	}
	return last, found
}

// applyExtras merges caller-supplied features into the record. Keys that
// name a derived field overwrite it; the rest land in Extras.
func applyExtras(rec *domain.FeatureRecord, extras map[string]float64) {
	if len(extras) == 0 {
		return
	}
	rec.Extras = make(map[string]float64, len(extras))
	for k, v := range extras {
		switch k {
		case "amount":
			rec.Amount = v
		case "hour_of_day":
			rec.HourOfDay = int(v)
		case "day_of_week":
			rec.DayOfWeek = int(v)
		case "tx_count_24h":
			rec.TxCount24h = int(v)
		case "amount_mean_24h":
			rec.AmountMean24h = v
		case "amount_std_24h":
			rec.AmountStd24h = v
		case "amount_max_24h":
			rec.AmountMax24h = v
		case "hours_since_last_tx":
			rec.HoursSinceLastTx = v
		case "tx_per_hour":
			rec.TxPerHour = v
		case "tx_per_day":
			rec.TxPerDay = v
		case "amount_to_mean_ratio":
			rec.AmountToMeanRatio = v
		}
		rec.Extras[k] = v
	}
}
