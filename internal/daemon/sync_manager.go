package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stitch/internal/api"
	"stitch/internal/config"
	"stitch/internal/logging"
	"stitch/internal/notifications"
)

// SyncManager periodically refreshes stale mappings so profiles keep tracking
// upstream changes without operator involvement. Only mappings with sync
// enabled and an active or failed status are swept; explicit profile syncs go
// through the engine directly and ignore the pause flag.
type SyncManager struct {
	cfg      *config.Config
	engine   *api.Engine
	logger   *slog.Logger
	notifier notifications.Service
	interval time.Duration

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastSweep  time.Time
	lastSynced int
	lastFailed int
	sweeps     int64
}

// SyncStatus is a snapshot of the sync loop for status displays.
type SyncStatus struct {
	Enabled    bool
	Running    bool
	Interval   time.Duration
	LastSweep  time.Time
	LastSynced int
	LastFailed int
	Sweeps     int64
	LastError  string
}

// NewSyncManager constructs the background sync loop.
func NewSyncManager(cfg *config.Config, engine *api.Engine, logger *slog.Logger, notifier notifications.Service) *SyncManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Sync.Interval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncManager{
		cfg:      cfg,
		engine:   engine,
		logger:   logging.NewComponentLogger(logger, "sync"),
		notifier: notifier,
		interval: interval,
	}
}

// Start begins the periodic sweep. A disabled sync config is not an error;
// the manager simply stays idle and reports Enabled=false in its status.
func (s *SyncManager) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("sync manager already running")
	}
	if !s.cfg.Sync.Enabled {
		s.mu.Unlock()
		s.logger.Info("background sync disabled by configuration")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	s.logger.Info("background sync started", logging.Duration("interval", s.interval))
	return nil
}

// Stop terminates the sweep loop and waits for an in-flight sweep to finish.
func (s *SyncManager) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *SyncManager) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.Sweep(ctx)
	}
}

// Sweep refreshes every mapping whose last sync predates one interval. It
// returns the synced/failed counts so tests and manual triggers can assert
// on them.
func (s *SyncManager) Sweep(ctx context.Context) (synced, failed int) {
	cutoff := time.Now().Add(-s.interval)
	due, err := s.engine.Store().ListSyncable(ctx, cutoff)
	if err != nil {
		s.recordSweep(0, 0, err)
		logging.ErrorWithContext(s.logger, "sync sweep failed", "sync_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check mapping database access"))
		return 0, 0
	}
	if len(due) == 0 {
		s.recordSweep(0, 0, nil)
		return 0, 0
	}

	outcomes := s.engine.RefreshMappings(ctx, due)
	for _, outcome := range outcomes {
		if outcome.Synced {
			synced++
			continue
		}
		failed++
		if err := s.notifier.NotifySyncFailure(ctx, outcome.CentralUserID, outcome.ServiceName, outcome.Error); err != nil {
			s.logger.Warn("sync failure notification failed", logging.Error(err))
		}
	}
	s.recordSweep(synced, failed, nil)

	s.logger.Info("sync sweep completed",
		logging.Int("due", len(due)),
		logging.Int("synced", synced),
		logging.Int("failed", failed))
	return synced, failed
}

// Status returns a snapshot of the loop's recent activity.
func (s *SyncManager) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SyncStatus{
		Enabled:    s.cfg.Sync.Enabled,
		Running:    s.running,
		Interval:   s.interval,
		LastSweep:  s.lastSweep,
		LastSynced: s.lastSynced,
		LastFailed: s.lastFailed,
		Sweeps:     s.sweeps,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *SyncManager) recordSweep(synced, failed int, err error) {
	s.mu.Lock()
	s.lastSweep = time.Now()
	s.lastSynced = synced
	s.lastFailed = failed
	s.lastErr = err
	s.sweeps++
	s.mu.Unlock()
}
