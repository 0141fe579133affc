package testsupport

import (
	"path/filepath"
	"testing"

	"stitch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithService appends a service block to the test config.
func WithService(svc config.Service) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Services = append(b.cfg.Services, svc)
	}
}

// WithDetection overrides the detection settings on the test config.
func WithDetection(concurrency, timeoutSeconds int, minConfidence float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.Concurrency = concurrency
		b.cfg.Detection.ServiceTimeout = timeoutSeconds
		b.cfg.Detection.MinConfidence = minConfidence
	}
}

// WithAPIToken sets the daemon API bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}
