package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"stitch/internal/api"
	"stitch/internal/config"
	"stitch/internal/daemonclient"
	"stitch/internal/logging"
	"stitch/internal/mapping"
	"stitch/internal/services/registry"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// commandLogger returns a terse stderr logger for engine operations so
// stdout stays clean for tables and JSON.
func (c *commandContext) commandLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		level := "warn"
		if c.config != nil && strings.EqualFold(strings.TrimSpace(c.config.Logging.Level), "debug") {
			level = "debug"
		}
		logger, err := logging.New(logging.Options{
			Level:            level,
			Format:           "console",
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		})
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// withEngine opens the mapping store, builds the configured service
// adapters, and hands a ready engine to fn. The store closes when fn
// returns.
func (c *commandContext) withEngine(fn func(*api.Engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := mapping.Open(cfg)
	if err != nil {
		return fmt.Errorf("open mapping store: %w", err)
	}
	defer store.Close()

	directories, err := registry.Build(cfg)
	if err != nil {
		return fmt.Errorf("build service adapters: %w", err)
	}

	return fn(api.New(cfg, store, directories, c.commandLogger()))
}

// apiClient returns a daemon API client, nil when api_bind is not set.
func (c *commandContext) apiClient() (*daemonclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonclient.New(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// serviceLabel names a service config id for display, falling back to the
// raw id when the service is no longer configured.
func serviceLabel(cfg *config.Config, id int64) string {
	if cfg != nil {
		if svc, ok := cfg.ServiceByID(id); ok {
			return svc.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}
