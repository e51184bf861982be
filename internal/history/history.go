// Package history provides the rolling transaction window consumed by
// feature derivation.
package history

import (
	"sync"
	"time"

	"github.com/secureflow/riskd/internal/domain"
)

// defaultRetention bounds how long entries stay in the in-memory store.
// The scoring window is 24h; the extra headroom keeps the
// hours-since-last-transaction signal meaningful across quiet days.
const defaultRetention = 7 * 24 * time.Hour

// MemoryStore is an append-only, mutex-guarded in-memory history.
// Appends and snapshots serialize on one lock; snapshots are copies, so
// in-flight scoring never observes a concurrent append.
type MemoryStore struct {
	mu        sync.Mutex
	entries   []*domain.Transaction
	retention time.Duration
}

// NewMemoryStore creates a MemoryStore with the default retention.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{retention: defaultRetention}
}

// Append records a scored transaction and prunes entries past retention.
func (s *MemoryStore) Append(tx *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, tx)
	s.prune(tx.Timestamp)
}

// Snapshot returns a copy of the retained history.
func (s *MemoryStore) Snapshot(now time.Time) []*domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Transaction, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the number of retained entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// prune drops entries older than retention relative to now. Entries are
// checked individually because timestamps are not assumed ordered.
func (s *MemoryStore) prune(now time.Time) {
	cutoff := now.Add(-s.retention)
	kept := s.entries[:0]
	for _, tx := range s.entries {
		if tx.Timestamp.After(cutoff) {
			kept = append(kept, tx)
		}
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
}
