package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheWarmup pre-computes effective permission sets for the
	// whole user directory.
	TaskCacheWarmup = "rbac:cache_warmup"
	// TaskAuditPrune deletes audit entries older than the retention window.
	TaskAuditPrune = "audit:prune"
)

// CacheWarmupPayload scopes a warmup run. An empty payload warms every
// active user.
type CacheWarmupPayload struct {
	UserIDs []int64 `json:"userIds,omitempty"`
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}

// AuditPrunePayload optionally overrides the configured retention, in
// seconds.
type AuditPrunePayload struct {
	RetentionSeconds int64 `json:"retentionSeconds,omitempty"`
}

// NewAuditPruneTask constructs an Asynq task.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}
