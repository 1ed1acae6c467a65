package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/lock"
	"github.com/tacops-cl/community-server/internal/metrics"
	"github.com/tacops-cl/community-server/internal/repository"
)

// SessionSweeper periodically removes expired session rows. It is an
// optional optimization: lazy detection on access remains the
// authoritative expiry mechanism, the sweeper just keeps the table
// small. A zero interval disables it entirely.
type SessionSweeper struct {
	sessions repository.SessionRepository
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewSessionSweeper creates a new session sweeper. metrics may be nil.
func NewSessionSweeper(
	sessions repository.SessionRepository,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	interval time.Duration,
) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		locker:   locker,
		metrics:  m,
		logger:   logger.With().Str("service", "session_sweeper").Logger(),
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the sweep scheduler. A zero or negative interval is a
// no-op.
func (sw *SessionSweeper) Start() {
	if sw.interval <= 0 {
		sw.logger.Info().Msg("session sweeper disabled")
		return
	}

	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = true
	sw.mu.Unlock()

	sw.logger.Info().
		Dur("interval", sw.interval).
		Msg("starting session sweeper")

	go sw.runLoop()
}

// Stop stops the sweep scheduler and waits for the loop to exit.
func (sw *SessionSweeper) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.stopChan)
	<-sw.doneChan

	sw.logger.Info().Msg("session sweeper stopped")
}

func (sw *SessionSweeper) runLoop() {
	defer close(sw.doneChan)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.RunOnce(context.Background())
		case <-sw.stopChan:
			return
		}
	}
}

// RunOnce executes a single sweep. The lock keeps multi-instance
// deployments from sweeping concurrently.
func (sw *SessionSweeper) RunOnce(ctx context.Context) {
	acquired, err := sw.locker.Acquire(ctx, lock.Keys.SessionSweep(), sw.interval)
	if err != nil {
		sw.logger.Error().Err(err).Msg("failed to acquire sweep lock")
		return
	}
	if !acquired {
		sw.logger.Debug().Msg("sweep already running elsewhere")
		return
	}
	defer func() {
		if _, err := sw.locker.Release(ctx, lock.Keys.SessionSweep()); err != nil {
			sw.logger.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}()

	removed, err := sw.sessions.DeleteExpired(ctx)
	if err != nil {
		sw.logger.Error().Err(err).Msg("sweep failed")
		return
	}

	if sw.metrics != nil {
		sw.metrics.SweepLastRunTime.SetToCurrentTime()
		sw.metrics.SweptSessionsTotal.Add(float64(removed))

		if count, err := sw.sessions.Count(ctx); err == nil {
			sw.metrics.SessionsActive.Set(float64(count))
		}
	}

	if removed > 0 {
		sw.logger.Info().Int64("removed", removed).Msg("swept expired sessions")
	}
}
