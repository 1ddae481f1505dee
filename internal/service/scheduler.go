package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go-inventory-insights/internal/metrics"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRefreshInterval = 5 * time.Minute
	refreshLockKey         = "insights:lock:refresh"
)

// ErrLockHeld is returned by a Locker when another holder owns the key.
var ErrLockHeld = errors.New("lock held elsewhere")

// Locker serializes a job across instances.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type redisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLocker{client: redislock.New(rdb)}
}

func (l *redisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// Job is one refresh pass.
type Job func(ctx context.Context) error

// Scheduler runs a job on start and then at a fixed interval. Runs never
// overlap: a tick that arrives while the previous run is still going is
// skipped, and with a Locker the same holds across instances.
type Scheduler struct {
	interval time.Duration
	job      Job
	locker   Locker

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewScheduler(interval time.Duration, job Job, locker Locker) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{interval: interval, job: job, locker: locker}
}

// RefreshJob warms predictions and purges expired notifications.
func RefreshJob(predictions PredictionService, notifications NotificationService) Job {
	return func(ctx context.Context) error {
		warmErr := predictions.Warmup(ctx)
		if _, err := notifications.PurgeExpired(ctx); err != nil {
			log.Warn().Err(err).Msg("purge expired notifications")
		}
		return warmErr
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Trigger(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Trigger(ctx)
			}
		}
	}()
	log.Info().Dur("interval", s.interval).Msg("refresh scheduler started")
}

// Stop cancels the running job and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	log.Info().Msg("refresh scheduler stopped")
}

// Trigger starts a run in the background unless one is in progress. It
// reports whether a run was started.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SchedulerRuns.WithLabelValues("skipped_busy").Inc()
		log.Debug().Msg("refresh still running, tick skipped")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run(ctx)
	}()
	return true
}

func (s *Scheduler) run(ctx context.Context) {
	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, refreshLockKey, s.interval)
		if errors.Is(err, ErrLockHeld) {
			metrics.SchedulerRuns.WithLabelValues("skipped_locked").Inc()
			log.Debug().Msg("refresh running on another instance, tick skipped")
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("refresh lock unavailable, running unlocked")
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn().Err(err).Msg("release refresh lock")
				}
			}()
		}
	}

	start := time.Now()
	if err := s.job(ctx); err != nil {
		metrics.SchedulerRuns.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("scheduled refresh failed")
		return
	}
	metrics.SchedulerRuns.WithLabelValues("ran").Inc()
	log.Info().Dur("took", time.Since(start)).Msg("scheduled refresh finished")
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}
