package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/models"
	"github.com/noah-isme/eleven-api/pkg/jobs"
)

// RankingJobType identifies ranking recompute jobs on the queue.
const RankingJobType = "client_rankings.recompute"

const rankingJobKey = "client-rankings"

// RankingNotifier is told when the building portfolio changed in a way that affects client revenue.
type RankingNotifier interface {
	PortfolioChanged(ctx context.Context, reason string)
}

type rankingRecomputer interface {
	UpdateClientRankings(ctx context.Context) ([]models.ClientRanking, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (bool, error)
}

// QueuedRankingNotifier schedules a recompute on the job queue. Bursts of changes
// collapse into one pending job.
type QueuedRankingNotifier struct {
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewQueuedRankingNotifier constructs a queue backed notifier.
func NewQueuedRankingNotifier(queue jobEnqueuer, logger *zap.Logger) *QueuedRankingNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuedRankingNotifier{queue: queue, logger: logger}
}

// PortfolioChanged enqueues a recompute. Failures are logged; the next change retries.
func (n *QueuedRankingNotifier) PortfolioChanged(_ context.Context, reason string) {
	accepted, err := n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Key:     rankingJobKey,
		Type:    RankingJobType,
		Payload: reason,
	})
	if err != nil {
		n.logger.Warn("ranking recompute not scheduled", zap.String("reason", reason), zap.Error(err))
		return
	}
	if !accepted {
		n.logger.Debug("ranking recompute already pending", zap.String("reason", reason))
	}
}

// SyncRankingNotifier recomputes inline. Used by the CLI where no queue runs.
type SyncRankingNotifier struct {
	ranking rankingRecomputer
	logger  *zap.Logger
}

// NewSyncRankingNotifier constructs an inline notifier.
func NewSyncRankingNotifier(ranking rankingRecomputer, logger *zap.Logger) *SyncRankingNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncRankingNotifier{ranking: ranking, logger: logger}
}

// PortfolioChanged runs the recompute and logs failures.
func (n *SyncRankingNotifier) PortfolioChanged(ctx context.Context, reason string) {
	if _, err := n.ranking.UpdateClientRankings(ctx); err != nil {
		n.logger.Warn("ranking recompute failed", zap.String("reason", reason), zap.Error(err))
	}
}

// RankingJobHandler adapts the ranking recompute to the job queue.
func RankingJobHandler(ranking rankingRecomputer) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != RankingJobType {
			return fmt.Errorf("unexpected job type %q", job.Type)
		}
		_, err := ranking.UpdateClientRankings(ctx)
		return err
	}
}
