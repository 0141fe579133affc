// Package daemon coordinates the long-running stitchd process and its
// integration points.
//
// It wires configuration, the mapping store, the reconciliation engine, the
// background sync manager, and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon owns
// notifications triggered by detection and approval events and releases
// mappings stranded mid-sync by a previous crash.
//
// Keep orchestration logic here: detection, matching, and persistence live in
// their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
