package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"stitch/internal/testsupport"
)

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pidPath := PIDFilePath(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{LogLevel: "error"})
	}()

	waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(pidPath)
		return err == nil
	})

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file contains %q, want current pid", strings.TrimSpace(string(data)))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not exit after cancel")
	}

	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed after shutdown, stat err: %v", err)
	}
}

func TestPIDFilePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	want := filepath.Join(cfg.Paths.LogDir, "stitchd.pid")
	if got := PIDFilePath(cfg); got != want {
		t.Fatalf("PIDFilePath = %q, want %q", got, want)
	}
	if got := PIDFilePath(nil); got != "stitchd.pid" {
		t.Fatalf("PIDFilePath(nil) = %q, want %q", got, "stitchd.pid")
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "stitch-first.log")
	second := filepath.Join(dir, "stitch-second.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	pointer := filepath.Join(dir, "stitch.log")
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}
	assertPointerContent(t, pointer, "stitch-first.log")

	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("ensureCurrentLogPointer replace: %v", err)
	}
	assertPointerContent(t, pointer, "stitch-second.log")
}

func assertPointerContent(t *testing.T, pointer, want string) {
	t.Helper()
	data, err := os.ReadFile(pointer)
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if strings.TrimSpace(string(data)) != want {
		t.Fatalf("pointer resolves to %q, want %q", strings.TrimSpace(string(data)), want)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}
