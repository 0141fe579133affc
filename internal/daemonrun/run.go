package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"stitch/internal/api"
	"stitch/internal/config"
	"stitch/internal/daemon"
	"stitch/internal/logging"
	"stitch/internal/logs"
	"stitch/internal/mapping"
	"stitch/internal/services/registry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the stitch daemon runtime loop: per-run log file, pid file,
// mapping store, service adapters, engine, and the daemon itself. It blocks
// until the context is canceled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("stitch-%s.log", runID))

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update stitch.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logs.RunFilePattern, Exclude: []string{logPath}},
	)

	pidPath := PIDFilePath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := mapping.Open(cfg)
	if err != nil {
		logger.Error("open mapping store", logging.Error(err))
		return err
	}

	directories, err := registry.Build(cfg)
	if err != nil {
		store.Close()
		logger.Error("build service directories", logging.Error(err))
		return err
	}

	engine := api.New(cfg, store, directories, logger)
	d, err := daemon.New(cfg, engine, directories, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("stitch daemon shutting down")
	return nil
}

// PIDFilePath returns where the running daemon records its process id.
func PIDFilePath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "stitchd.pid")
	}
	return filepath.Join(cfg.Paths.LogDir, "stitchd.pid")
}

// ensureCurrentLogPointer keeps stitch.log pointing at the newest per-run
// log file so `tail -f` style workflows survive restarts.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logs.CurrentPointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err == nil {
		return nil
	}
	return fmt.Errorf("link log pointer %s", current)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
