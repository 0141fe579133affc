// Package daemonclient is the thin HTTP client the CLI uses to ask a running
// stitchd for its status. Every other CLI operation opens the store directly;
// only daemon runtime state (sync loop activity, uptime, startup checks) has
// to come from the process itself.
package daemonclient
