package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"stitch/internal/api"
	"stitch/internal/config"
	"stitch/internal/logging"
	"stitch/internal/mapping"
	"stitch/internal/notifications"
	"stitch/internal/preflight"
	"stitch/internal/services"
)

const lockFileName = "stitchd.lock"

// Daemon coordinates the background sync loop and the HTTP API, and enforces
// single-instance execution via a lock file in the state directory.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	engine      *api.Engine
	directories []services.Directory
	notifier    notifications.Service
	syncer      *SyncManager

	lockPath string
	lock     *flock.Flock

	apiSrv *apiServer

	running   atomic.Bool
	startedAt time.Time
	checks    []preflight.Result
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	DatabasePath string
	LockFilePath string
	Sync         SyncStatus
	Mappings     mapping.Stats
	Checks       []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, engine *api.Engine, directories []services.Directory, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("daemon requires config and engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := notifications.NewService(cfg)
	lockPath := filepath.Join(cfg.Paths.StateDir, lockFileName)
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		engine:      engine,
		directories: directories,
		notifier:    notifier,
		syncer:      NewSyncManager(cfg, engine, logger, notifier),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted syncs, runs preflight,
// and launches the sync loop and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stitch daemon instance is already running")
	}

	// A crash mid-refresh leaves mappings stuck in syncing; release them
	// before anything else reads the store.
	released, err := d.engine.Store().ReleaseStuckSyncing(ctx, "daemon restarted during sync")
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("release stuck syncs: %w", err)
	}
	if released > 0 {
		logging.WarnWithContext(d.logger, "released interrupted syncs", "stuck_sync_released",
			logging.Int64("mappings", released),
			logging.String(logging.FieldErrorHint, "previous daemon run did not shut down cleanly"),
			logging.String(logging.FieldImpact, "affected mappings are marked failed and will retry on the next sweep"))
	}

	d.checks = preflight.RunAll(ctx, d.cfg, d.directories)
	for _, check := range d.checks {
		if check.Passed {
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldErrorHint, "fix the service or path and restart, or expect sync failures"),
			logging.String(logging.FieldImpact, "operations touching this dependency will fail"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.syncer.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start sync manager: %w", err)
	}
	if err := d.apiSrv.start(runCtx); err != nil {
		d.syncer.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("stitch daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.engine.Store().Path()),
		logging.Int("services", len(d.directories)))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.syncer.Stop()
	d.apiSrv.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("stitch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.engine.Store().Close()
}

// APIAddr reports the bound API listen address, empty until Start succeeds.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.engine.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read mapping stats", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		DatabasePath: d.engine.Store().Path(),
		LockFilePath: d.lockPath,
		Sync:         d.syncer.Status(),
		Mappings:     stats,
		Checks:       d.checks,
	}
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
