package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atlas-crm/atlas-crm/internal/jobs"
)

// GrantWarmer preloads permission grants for a set of users.
type GrantWarmer interface {
	Warm(ctx context.Context, userIDs []int64)
}

// ActiveUserLister reports users holding an active login session.
type ActiveUserLister interface {
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
}

// PermissionWarmupJob refreshes the permission cache ahead of demand so the
// first request after a cold start does not pay the database round trip.
type PermissionWarmupJob struct {
	warmer  GrantWarmer
	users   ActiveUserLister
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewPermissionWarmupJob constructs the job.
func NewPermissionWarmupJob(warmer GrantWarmer, users ActiveUserLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *PermissionWarmupJob {
	return &PermissionWarmupJob{warmer: warmer, users: users, logger: logger, metrics: metrics}
}

// Handle processes TaskWarmPermissionCache tasks.
func (j *PermissionWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskWarmPermissionCache)
	return tracker.End(j.run(ctx, t))
}

func (j *PermissionWarmupJob) run(ctx context.Context, t *asynq.Task) error {
	var payload WarmPermissionCachePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	userIDs := payload.UserIDs
	if len(userIDs) == 0 {
		ids, err := j.users.ListActiveUserIDs(ctx)
		if err != nil {
			j.logger.Error("list active users for warmup", slog.Any("error", err))
			return err
		}
		userIDs = ids
	}
	if len(userIDs) == 0 {
		return nil
	}

	j.warmer.Warm(ctx, userIDs)
	j.logger.Info("permission cache warmed", slog.Int("users", len(userIDs)))
	return nil
}
