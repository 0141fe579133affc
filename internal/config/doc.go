// Package config loads, normalizes, and validates stitch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STITCH_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need, from the state directory to the per-service directory credentials
// declared in [[services]] blocks.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
