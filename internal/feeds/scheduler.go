package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKey = "feeds:import:lock"

// releaseLock deletes KEYS[1] only while it still holds ARGV[1].
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Runner is one import pass.
type Runner interface {
	Run(ctx context.Context) (RunStats, error)
}

// Scheduler runs the importer on a cron schedule. When Redis is configured a
// SETNX lock keeps replicas from importing concurrently.
type Scheduler struct {
	runner  Runner
	expr    *cronexpr.Expression
	rdb     redis.Cmdable
	lockTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewScheduler(runner Runner, schedule string, rdb redis.Cmdable, lockTTL time.Duration, logger *zap.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse feed schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Scheduler{runner: runner, expr: expr, rdb: rdb, lockTTL: lockTTL, logger: logger, now: time.Now}, nil
}

// Next returns the first scheduled time strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.expr.Next(t)
}

// Start blocks, running the importer at every scheduled time until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := s.Next(s.now())
		if next.IsZero() {
			s.logger.Warn("feed schedule has no future runs")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if _, _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scheduled feed import", zap.Error(err))
		}
	}
}

// RunOnce runs the importer if the lock is free. ran is false when another
// replica holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context) (stats RunStats, ran bool, err error) {
	release, ok, err := s.acquire(ctx)
	if err != nil {
		return RunStats{}, false, err
	}
	if !ok {
		s.logger.Debug("feed import already running elsewhere")
		return RunStats{}, false, nil
	}
	defer release()

	stats, err = s.runner.Run(ctx)
	return stats, true, err
}

func (s *Scheduler) acquire(ctx context.Context) (release func(), ok bool, err error) {
	if s.rdb == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err = s.rdb.SetNX(ctx, lockKey, token, s.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire feed lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// The lock may have expired and been taken by another replica.
		if err := releaseLock.Run(context.Background(), s.rdb, []string{lockKey}, token).Err(); err != nil {
			s.logger.Warn("release feed lock", zap.Error(err))
		}
	}, true, nil
}
