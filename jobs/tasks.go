package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWarmPermissionCache preloads permission grants for active users.
	TaskWarmPermissionCache = "authz:warm_permission_cache"
	// TaskSweepSessions deletes expired login sessions.
	TaskSweepSessions = "auth:sweep_sessions"
)

// WarmPermissionCachePayload selects which users to warm. An empty UserIDs
// slice means every user with an active login session.
type WarmPermissionCachePayload struct {
	UserIDs []int64 `json:"user_ids,omitempty"`
}

// NewWarmPermissionCacheTask constructs an Asynq task.
func NewWarmPermissionCacheTask(payload WarmPermissionCachePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarmPermissionCache, data), nil
}

// NewSweepSessionsTask constructs an Asynq task with an empty payload.
func NewSweepSessionsTask() *asynq.Task {
	return asynq.NewTask(TaskSweepSessions, nil)
}
