package preflight

import (
	"context"

	"stitch/internal/config"
	"stitch/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Directory adapters are supplied by the caller so the same checks serve
// both the daemon boot path and the CLI status command.
func RunAll(ctx context.Context, cfg *config.Config, directories []services.Directory) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// State directory (always checked; the mapping database lives there)
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// Log directory (when configured)
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	// One reachability probe per configured service
	for _, directory := range directories {
		results = append(results, CheckService(ctx, directory))
	}

	return results
}

// Passed reports whether every check in the set succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
