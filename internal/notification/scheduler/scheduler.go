package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/usecase"
	"ipo-reminder-backend/pkg/lock"
	"ipo-reminder-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrTickInProgress is returned when a tick is requested while one is running
var ErrTickInProgress = errors.New("tick already in progress")

// State of the scheduler loop
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateDispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

// TickResult summarizes one scan and dispatch cycle
type TickResult struct {
	TickID      string        `json:"tick_id"`
	Now         time.Time     `json:"now"`
	Due         int           `json:"due"`
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Deactivated int           `json:"deactivated"`
	Duration    time.Duration `json:"duration"`
}

type scanner interface {
	Scan(ctx context.Context, now time.Time) ([]usecase.Due, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, ipo domain.IPO, token domain.FCMToken, typ domain.NotificationType, now time.Time) (usecase.Outcome, error)
}

// Config tunes the scheduler loop
type Config struct {
	Interval time.Duration
	Workers  int
}

// NotificationScheduler periodically scans for due IPO notifications and
// dispatches them
type NotificationScheduler struct {
	scanner    scanner
	dispatcher dispatcher
	interval   time.Duration
	workers    int
	local      *lock.LocalLocker
	shared     lock.Locker
	clock      func() time.Time
	state      atomic.Int32
	stopChan   chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger
}

// NewNotificationScheduler creates a new scheduler
func NewNotificationScheduler(scanner scanner, dispatcher dispatcher, cfg Config, logger *zap.Logger) *NotificationScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &NotificationScheduler{
		scanner:    scanner,
		dispatcher: dispatcher,
		interval:   cfg.Interval,
		workers:    cfg.Workers,
		local:      lock.NewLocalLocker(),
		clock:      time.Now,
		stopChan:   make(chan struct{}),
		logger:     logger,
	}
}

// SetSharedLock adds a cross-replica lock taken after the local one
func (s *NotificationScheduler) SetSharedLock(l lock.Locker) {
	s.shared = l
}

// SetClock replaces the clock used to snapshot the evaluation time
func (s *NotificationScheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *NotificationScheduler) State() State {
	return State(s.state.Load())
}

// Start begins the scheduler loop
func (s *NotificationScheduler) Start(ctx context.Context) {
	s.logger.Info("starting notification scheduler", zap.Duration("interval", s.interval), zap.Int("workers", s.workers))

	go func() {
		// Run immediately on start
		s.runScheduled(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runScheduled(ctx)
			case <-ctx.Done():
				s.logger.Info("scheduler stopped", zap.Error(ctx.Err()))
				return
			case <-s.stopChan:
				s.logger.Info("scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler loop. A tick in progress finishes.
func (s *NotificationScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *NotificationScheduler) runScheduled(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.logger.Info("previous tick still running, skipping")
	case err != nil:
		s.logger.Error("tick failed, will retry next interval", zap.String("tick_id", result.TickID), zap.Error(err))
	case result.Due > 0:
		s.logger.Info("tick finished",
			zap.String("tick_id", result.TickID),
			zap.Int("due", result.Due),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
			zap.Duration("duration", result.Duration))
	}
}

// RunOnce performs one scan and dispatch cycle. It returns ErrTickInProgress
// without doing anything if another tick holds the lock.
func (s *NotificationScheduler) RunOnce(ctx context.Context) (TickResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			metrics.SchedulerTicksTotal.WithLabelValues("skipped").Inc()
			return TickResult{}, ErrTickInProgress
		}
		metrics.SchedulerTicksTotal.WithLabelValues("error").Inc()
		return TickResult{}, err
	}
	defer release()
	defer s.state.Store(int32(StateIdle))

	start := time.Now()
	result := TickResult{TickID: uuid.New().String(), Now: s.clock()}
	log := s.logger.With(zap.String("tick_id", result.TickID))

	s.state.Store(int32(StateScanning))
	due, err := s.scanner.Scan(ctx, result.Now)
	if err != nil {
		metrics.SchedulerTicksTotal.WithLabelValues("error").Inc()
		return result, fmt.Errorf("scan: %w", err)
	}
	result.Due = len(due)
	metrics.SchedulerDuePairs.Set(float64(len(due)))
	log.Debug("scan finished", zap.Int("due", len(due)), zap.Time("now", result.Now))

	s.state.Store(int32(StateDispatching))
	err = s.dispatchAll(ctx, due, &result)
	result.Duration = time.Since(start)
	metrics.SchedulerTickDuration.Observe(result.Duration.Seconds())
	if err != nil {
		metrics.SchedulerTicksTotal.WithLabelValues("error").Inc()
		return result, fmt.Errorf("dispatch: %w", err)
	}
	metrics.SchedulerTicksTotal.WithLabelValues("ok").Inc()
	return result, nil
}

func (s *NotificationScheduler) acquire(ctx context.Context) (func(), error) {
	if s.shared == nil {
		return s.local.TryLock(ctx)
	}
	return lock.Chain{s.local, s.shared}.TryLock(ctx)
}

// dispatchAll fans due pairs out to the worker pool. The first persistence
// error stops new dispatches; those already running complete.
func (s *NotificationScheduler) dispatchAll(ctx context.Context, due []usecase.Due, result *TickResult) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, d := range due {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcome, err := s.dispatcher.Dispatch(gctx, d.IPO, d.Token, d.Type, result.Now)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Key(), err)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.Skipped:
				result.Skipped++
			case outcome.Success:
				result.Sent++
			default:
				result.Failed++
			}
			if outcome.TokenDeactivated {
				result.Deactivated++
			}
			return nil
		})
	}
	return g.Wait()
}
