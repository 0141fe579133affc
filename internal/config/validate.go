package config

import (
	"errors"
	"fmt"
	"strings"
)

// knownServiceTypes mirrors the adapter registry. Validation rejects unknown
// types early so a typo surfaces at load time, not mid-detection.
var knownServiceTypes = map[string]struct{}{
	"plex":      {},
	"jellyfin":  {},
	"emby":      {},
	"overseerr": {},
	"authentik": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateServices() error {
	seenIDs := make(map[int64]string, len(c.Services))
	for i, svc := range c.Services {
		label := svc.Name
		if label == "" {
			label = fmt.Sprintf("services[%d]", i)
		}
		if svc.ID <= 0 {
			return fmt.Errorf("%s: id must be a positive integer", label)
		}
		if prev, ok := seenIDs[svc.ID]; ok {
			return fmt.Errorf("%s: id %d already used by %s", label, svc.ID, prev)
		}
		seenIDs[svc.ID] = label
		if _, ok := knownServiceTypes[svc.Type]; !ok {
			return fmt.Errorf("%s: unknown service type %q", label, svc.Type)
		}
		if !svc.Enabled {
			continue
		}
		if svc.URL == "" {
			return fmt.Errorf("%s: url must be set when enabled", label)
		}
		if svc.APIKey == "" {
			return fmt.Errorf("%s: api_key must be set when enabled", label)
		}
		if svc.Timeout < 0 {
			return fmt.Errorf("%s: timeout must not be negative", label)
		}
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.Concurrency <= 0 {
		return errors.New("detection.concurrency must be positive")
	}
	if c.Detection.ServiceTimeout <= 0 {
		return errors.New("detection.service_timeout must be positive (seconds)")
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return errors.New("detection.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive (seconds) when sync.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
