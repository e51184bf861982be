package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/secureflow/riskd/internal/domain"
)

// snapshotWindow bounds the repository scan backing a durable snapshot.
const snapshotWindow = 7 * 24 * time.Hour

// RepoStore is a repository-backed history. It reads the window from the
// database, so history survives restarts. Appends are a no-op here: the
// serving layer persists every transaction after scoring, and re-saving
// from the store would duplicate rows.
type RepoStore struct {
	repo    domain.Repository
	logger  *slog.Logger
	timeout time.Duration
}

// NewRepoStore creates a RepoStore over the given repository.
func NewRepoStore(repo domain.Repository, logger *slog.Logger) *RepoStore {
	return &RepoStore{repo: repo, logger: logger, timeout: 5 * time.Second}
}

// Append is a no-op; see the type comment.
func (s *RepoStore) Append(tx *domain.Transaction) {}

// Snapshot loads recent transactions from the repository. When the
// repository errors, scoring proceeds with an empty snapshot rather than
// failing the request.
func (s *RepoStore) Snapshot(now time.Time) []*domain.Transaction {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	txs, err := s.repo.ListTransactionsSince(ctx, now.Add(-snapshotWindow))
	if err != nil {
		s.logger.Warn("history snapshot unavailable, scoring with empty history", "error", err)
		return nil
	}
	return txs
}
