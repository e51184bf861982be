package domain

import "time"

// HistoryStore is the rolling window of past transactions consumed by
// feature derivation. Append happens once per completed request, after a
// verdict exists.
type HistoryStore interface {
	// Append records a scored transaction.
	Append(tx *Transaction)

	// Snapshot returns a consistent copy of the retained history as of
	// now. Callers filter by time range, never by position.
	Snapshot(now time.Time) []*Transaction
}
