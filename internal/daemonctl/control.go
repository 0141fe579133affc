package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"stitch/internal/api"
	"stitch/internal/daemonclient"
)

// ErrDaemonNotRunning indicates no stitchd process could be found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Status   *api.DaemonStatus
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached daemon process via the hidden `daemon` command.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForStatus polls the daemon API until it reports running or the timeout
// elapses.
func WaitForStatus(ctx context.Context, client *daemonclient.Client, timeout time.Duration) (*api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status, err := client.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("daemon answering but not running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one is already answering on the
// configured API bind.
func EnsureStarted(ctx context.Context, client *daemonclient.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client == nil {
		return StartResult{}, fmt.Errorf("daemon api is not configured; set paths.api_bind")
	}

	status, err := client.Status(ctx)
	if err == nil {
		if !status.Running {
			return StartResult{}, fmt.Errorf("daemon is shutting down; retry in a moment")
		}
		return StartResult{State: StartStateAlreadyRunning, Status: status}, nil
	}
	if !daemonclient.IsUnavailable(err) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err = WaitForStatus(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, Status: status}, nil
}

// StopAndTerminate signals the daemon to shut down and waits for the process
// to exit, escalating to SIGKILL after the grace period. The daemon PID comes
// from the API when it answers, else from the pid file.
func StopAndTerminate(ctx context.Context, client *daemonclient.Client, pidPath string, gracePeriod time.Duration) (StopResult, error) {
	pid := 0
	if client != nil {
		status, err := client.Status(ctx)
		switch {
		case err == nil:
			pid = status.PID
		case !daemonclient.IsUnavailable(err):
			return StopResult{}, err
		}
	}
	if pid <= 0 {
		filePID, err := readPIDFile(pidPath)
		if err != nil {
			return StopResult{}, err
		}
		pid = filePID
	}
	if pid <= 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to stop current process (pid %d)", pid)
	}
	if !processAlive(pid) {
		removeStalePIDFile(pidPath, pid)
		return StopResult{}, ErrDaemonNotRunning
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(ctx, pid, gracePeriod) {
		return StopResult{PID: pid}, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return StopResult{}, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	waitForExit(ctx, pid, 2*time.Second)
	removeStalePIDFile(pidPath, pid)
	return StopResult{PID: pid, ForcedKill: true}, nil
}

// ProcessInfo reads the pid file and reports whether that process is alive.
func ProcessInfo(pidPath string) (bool, int, error) {
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return false, 0, err
	}
	if pid <= 0 {
		return false, 0, nil
	}
	if !processAlive(pid) {
		return false, pid, nil
	}
	return true, pid, nil
}

func readPIDFile(path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q contains %q", path, raw)
	}
	return pid, nil
}

// processAlive probes with signal 0. EPERM still means the process exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func waitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		if !processAlive(pid) {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return !processAlive(pid)
}

// removeStalePIDFile clears the pid file only when it still names the process
// we dealt with, so a freshly started daemon's file survives.
func removeStalePIDFile(path string, pid int) {
	current, err := readPIDFile(path)
	if err != nil || current != pid {
		return
	}
	_ = os.Remove(path)
}
