package api

import (
	"context"
	"log/slog"
	"time"

	"stitch/internal/config"
	"stitch/internal/detect"
	"stitch/internal/logging"
	"stitch/internal/mapping"
	"stitch/internal/services"
)

// defaultServiceTimeout backstops refresh calls when the service has no
// configured budget.
const defaultServiceTimeout = 15 * time.Second

// Engine coordinates detection, mapping persistence, and profile refresh for
// every consumer: CLI commands, the HTTP API, and the background scheduler.
type Engine struct {
	cfg         *config.Config
	store       *mapping.Store
	directories map[int64]services.Directory
	detector    *detect.Detector
	logger      *slog.Logger
}

// New assembles an Engine. The directory set is fixed at construction; use
// registry.Build to derive it from configuration.
func New(cfg *config.Config, store *mapping.Store, directories []services.Directory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	byID := make(map[int64]services.Directory, len(directories))
	for _, directory := range directories {
		byID[directory.ServiceConfigID()] = directory
	}
	return &Engine{
		cfg:         cfg,
		store:       store,
		directories: byID,
		detector:    detect.NewFromConfig(cfg, directories, logger),
		logger:      logging.NewComponentLogger(logger, "engine"),
	}
}

// Store exposes the underlying mapping store for diagnostics.
func (e *Engine) Store() *mapping.Store {
	return e.store
}

// EnumerateUsers queries every configured service for its current user list.
// Read-only: nothing is persisted and failures are recorded per service.
func (e *Engine) EnumerateUsers(ctx context.Context) *EnumerationResult {
	return FromEnumeration(e.detector.Enumerate(ctx))
}

// DetectMappings runs a full detection pass and returns the suggestions and
// clustered identities for operator review. Nothing is persisted until a
// candidate is approved.
func (e *Engine) DetectMappings(ctx context.Context) *DetectionResult {
	return FromDetection(e.detector.Run(ctx))
}

// Stats reports aggregate mapping counts.
func (e *Engine) Stats(ctx context.Context) (mapping.Stats, error) {
	return e.store.Stats(ctx)
}

// CheckHealth reports mapping database diagnostics.
func (e *Engine) CheckHealth(ctx context.Context) (mapping.DatabaseHealth, error) {
	return e.store.CheckHealth(ctx)
}

// directoryFor resolves the adapter for a service config id.
func (e *Engine) directoryFor(serviceConfigID int64) (services.Directory, bool) {
	directory, ok := e.directories[serviceConfigID]
	return directory, ok
}

// serviceTimeout returns the per-call budget for one external service call.
func (e *Engine) serviceTimeout(serviceConfigID int64) time.Duration {
	if e.cfg == nil {
		return defaultServiceTimeout
	}
	if svc, ok := e.cfg.ServiceByID(serviceConfigID); ok {
		if timeout := e.cfg.ServiceCallTimeout(svc); timeout > 0 {
			return timeout
		}
	}
	return defaultServiceTimeout
}
