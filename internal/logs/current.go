package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// CurrentPointerName is the stable name the daemon repoints at its
	// newest per-run log file.
	CurrentPointerName = "stitch.log"
	// RunFilePattern matches the per-run log files in a log directory.
	RunFilePattern = "stitch-*.log"
)

// CurrentPath resolves the log file to tail. The stitch.log pointer wins
// when present; otherwise the newest run file is used. Run ids are UTC
// timestamps, so the lexically greatest name is the newest. An empty path
// with a nil error means no log exists yet.
func CurrentPath(logDir string) (string, error) {
	if logDir == "" {
		return "", nil
	}
	pointer := filepath.Join(logDir, CurrentPointerName)
	if _, err := os.Stat(pointer); err == nil {
		return pointer, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat log pointer: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(logDir, RunFilePattern))
	if err != nil {
		return "", fmt.Errorf("scan log directory: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
