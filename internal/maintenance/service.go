// Package maintenance runs scheduled housekeeping for activable: the session
// retention sweep and planner statistics refresh.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/thebtf/activable/internal/config"
	"github.com/thebtf/activable/internal/db"
	dbgorm "github.com/thebtf/activable/internal/db/gorm"
)

// Service handles scheduled maintenance tasks.
type Service struct {
	log             zerolog.Logger
	lastRunTime     time.Time
	now             func() time.Time
	store           *dbgorm.Store
	sessions        db.SessionSweeper
	config          *config.Config
	stopCh          chan struct{}
	doneCh          chan struct{}
	initialDelay    time.Duration
	lastRunDuration time.Duration
	totalRemoved    int64
	totalOptimize   int64
	mu              sync.Mutex
	running         bool
	stopped         bool
}

// NewService creates a new maintenance service.
func NewService(store *dbgorm.Store, sessions db.SessionSweeper, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		store:        store,
		sessions:     sessions,
		config:       cfg,
		now:          time.Now,
		initialDelay: 5 * time.Minute,
		log:          log.With().Str("component", "maintenance").Logger(),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start runs the maintenance loop until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	if !s.config.MaintenanceEnabled {
		s.log.Info().Msg("Maintenance disabled, not starting scheduler")
		return
	}

	interval := max(time.Duration(s.config.MaintenanceIntervalHours)*time.Hour, time.Hour)

	s.log.Info().
		Dur("interval", interval).
		Int("retention_days", s.config.SessionRetentionDays).
		Msg("Starting maintenance scheduler")

	// Let the system settle before the first run
	select {
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	case <-time.After(s.initialDelay):
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Maintenance shutting down due to context cancellation")
			return
		case <-s.stopCh:
			s.log.Info().Msg("Maintenance shutting down due to stop signal")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop signals the maintenance loop to stop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// Wait waits for the maintenance loop to finish.
func (s *Service) Wait() {
	<-s.doneCh
}

// RunOnce executes every maintenance task and returns the number of sessions
// removed by the retention sweep.
func (s *Service) RunOnce(ctx context.Context) int {
	start := time.Now()
	s.log.Debug().Msg("Starting maintenance run")

	removed := 0
	if s.config.SessionRetentionDays > 0 {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to remove expired sessions")
		} else {
			removed = n
			s.log.Info().Int("removed", n).Msg("Removed expired sessions")
		}
	}

	optimized := true
	if err := s.store.Optimize(ctx); err != nil {
		optimized = false
		s.log.Error().Err(err).Msg("Failed to optimize database")
	}

	s.mu.Lock()
	s.lastRunTime = time.Now()
	s.lastRunDuration = time.Since(start)
	s.totalRemoved += int64(removed)
	if optimized {
		s.totalOptimize++
	}
	s.mu.Unlock()

	s.log.Info().
		Dur("duration", time.Since(start)).
		Int("sessions_removed", removed).
		Msg("Maintenance run completed")
	return removed
}

// Sweep removes finished sessions older than the retention period in one
// transaction, cascading to their observations. A vetoed removal rolls the
// whole sweep back and is returned. Sweep does nothing when retention is
// disabled.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.config.SessionRetentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -s.config.SessionRetentionDays)

	var removed int
	err := s.store.TransactionWithTimeout(ctx, dbgorm.SlowQueryTimeout, func(tx *gorm.DB) error {
		n, err := s.sessions.RemoveFinishedBefore(tx.Statement.Context, tx, cutoff)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Stats returns maintenance statistics.
func (s *Service) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":          s.config.MaintenanceEnabled,
		"interval_hours":   s.config.MaintenanceIntervalHours,
		"retention_days":   s.config.SessionRetentionDays,
		"last_run":         s.lastRunTime,
		"last_duration_ms": s.lastRunDuration.Milliseconds(),
		"total_removed":    s.totalRemoved,
		"total_optimizes":  s.totalOptimize,
		"running":          s.running,
	}
}
