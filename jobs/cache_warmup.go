package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/clinicore/clinicore/internal/jobs"
	"github.com/clinicore/clinicore/internal/rbac"
	"github.com/clinicore/clinicore/internal/users"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// UserLister yields the directory of users eligible for warmup.
type UserLister interface {
	ListUsers(ctx context.Context) ([]users.User, error)
}

// PermissionResolver resolves and caches one user's effective set.
type PermissionResolver interface {
	Resolve(ctx context.Context, userID int64) (rbac.EffectivePermissionSet, error)
}

// CacheWarmupJob resolves effective permissions for users so the first
// request after a deploy or cache flush does not pay the resolution cost.
type CacheWarmupJob struct {
	Users    UserLister
	Resolver PermissionResolver
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(userSvc UserLister, resolver PermissionResolver, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{
		Users:    userSvc,
		Resolver: resolver,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Resolver == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	started := j.now()

	ids := payload.UserIDs
	if len(ids) == 0 {
		ids, resultErr = j.activeUserIDs(ctx)
		if resultErr != nil {
			logger.Error("load warmup users", slog.Any("error", resultErr))
			return resultErr
		}
	}
	if len(ids) == 0 {
		logger.Info("no users discovered for warmup")
		return resultErr
	}

	warmed := 0
	for _, id := range ids {
		if err := j.warmUser(ctx, id); err != nil {
			if errors.Is(err, rbac.ErrUserNotFound) {
				logger.Warn("skipping unknown user", slog.Int64("user_id", id))
				continue
			}
			resultErr = err
			logger.Error("warm user", slog.Int64("user_id", id), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed cache warmup", slog.Int("users", warmed), slog.Duration("duration", time.Since(started)))
	return resultErr
}

func (j *CacheWarmupJob) warmUser(ctx context.Context, userID int64) error {
	userCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := j.Resolver.Resolve(userCtx, userID)
	return err
}

func (j *CacheWarmupJob) activeUserIDs(ctx context.Context) ([]int64, error) {
	if j.Users == nil {
		return nil, errors.New("cache warmup: user directory not configured")
	}
	all, err := j.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(all))
	for _, u := range all {
		if !u.IsActive {
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
