package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atlas-crm/atlas-crm/internal/jobs"
)

// SessionSweeper removes expired login sessions.
type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweepJob prunes the login_sessions table on a schedule. Tokens past
// their expiry are already rejected at verification; the sweep keeps the
// table from growing without bound.
type SessionSweepJob struct {
	sweeper SessionSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionSweepJob constructs the job.
func NewSessionSweepJob(sweeper SessionSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionSweepJob {
	return &SessionSweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes TaskSweepSessions tasks.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskSweepSessions)
	return tracker.End(j.run(ctx))
}

func (j *SessionSweepJob) run(ctx context.Context) error {
	removed, err := j.sweeper.SweepExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("sweep expired sessions", slog.Any("error", err))
		return err
	}
	if removed > 0 {
		j.logger.Info("expired sessions removed", slog.Int64("count", removed))
	}
	return nil
}
