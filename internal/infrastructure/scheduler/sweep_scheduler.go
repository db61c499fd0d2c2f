package scheduler

import (
	"context"
	"sync"
	"time"

	appescrow "github.com/peertrade/backend/internal/application/escrow"
	"go.uber.org/zap"
)

// ExpirySweeper finds escrow orders past their deadline and expires them.
// Implemented by the escrow ExpirationService.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (*appescrow.ExpiredOrderStats, error)
}

// LeaderLock gates the sweep so only one instance runs it at a time.
// Acquire returns true when this instance holds the lock for the pass.
type LeaderLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SweepSchedulerConfig holds configuration for the expiry sweep scheduler
type SweepSchedulerConfig struct {
	// Enabled indicates if the sweep scheduler is enabled
	Enabled bool
	// Interval is how often the sweep runs
	Interval time.Duration
	// SweepTimeout is the maximum time a single sweep pass can run
	SweepTimeout time.Duration
}

// DefaultSweepSchedulerConfig returns default sweep scheduler configuration
func DefaultSweepSchedulerConfig() SweepSchedulerConfig {
	return SweepSchedulerConfig{
		Enabled:      true,
		Interval:     30 * time.Second,
		SweepTimeout: 2 * time.Minute,
	}
}

// Validate checks the configuration
func (c SweepSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.SweepTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SweepScheduler periodically expires escrow orders whose payment window
// has elapsed. A leader lock keeps the sweep single-flight across
// instances; without one every instance sweeps, which is safe but noisy
// because losers of the status race skip the order.
type SweepScheduler struct {
	config  SweepSchedulerConfig
	sweeper ExpirySweeper
	lock    LeaderLock
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt *time.Time
	lastStats *appescrow.ExpiredOrderStats
}

// NewSweepScheduler creates a new expiry sweep scheduler.
// lock may be nil, in which case every pass runs unconditionally.
func NewSweepScheduler(
	config SweepSchedulerConfig,
	sweeper ExpirySweeper,
	lock LeaderLock,
	logger *zap.Logger,
) *SweepScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepScheduler{
		config:  config,
		sweeper: sweeper,
		lock:    lock,
		logger:  logger,
	}
}

// Start starts the sweep loop
func (s *SweepScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Expiry sweep scheduler is disabled")
		return nil
	}
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.sweepLoop(ctx)

	s.logger.Info("Expiry sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("sweep_timeout", s.config.SweepTimeout),
	)

	return nil
}

// Stop stops the sweep loop and waits for an in-flight pass to finish
func (s *SweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Expiry sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Expiry sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// sweepLoop runs the main ticker loop
func (s *SweepScheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep runs a single sweep pass under the leader lock
func (s *SweepScheduler) runSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			s.logger.Warn("Failed to acquire sweep leader lock", zap.Error(err))
			return
		}
		if !acquired {
			s.logger.Debug("Another instance holds the sweep leader lock")
			return
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				s.logger.Warn("Failed to release sweep leader lock", zap.Error(err))
			}
		}()
	}

	now := time.Now()
	stats, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("Expiry sweep pass failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastRunAt = &now
	s.lastStats = stats
	s.mu.Unlock()
}

// TriggerManualRun triggers a sweep pass outside the regular interval.
// Uses a background context so the pass outlives the caller's request.
func (s *SweepScheduler) TriggerManualRun(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	go s.runSweep(context.Background())
	return nil
}

// GetStatus returns the current status of the sweep scheduler
func (s *SweepScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]any{
		"enabled":     s.config.Enabled,
		"is_running":  s.isRunning,
		"interval":    s.config.Interval.String(),
		"last_run_at": s.lastRunAt,
	}
	if s.lastStats != nil {
		status["last_total"] = s.lastStats.TotalExpired
		status["last_expired"] = s.lastStats.SuccessExpired
		status["last_failed"] = s.lastStats.FailedExpiries
	}
	return status
}

// GetLastRunAt returns when the last sweep pass completed
func (s *SweepScheduler) GetLastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}
