// Package services defines the user-directory abstraction shared by every
// service adapter plus the utilities the engine consumes around them.
//
// Key responsibilities:
//   - The Directory interface: one enabled service configuration bound to the
//     protocol client that lists its user accounts.
//   - Structured error markers plus the Wrap helper so adapter failures carry
//     the service and operation they came from and stay classifiable.
//   - Context helpers that stamp detection run IDs, service names, and
//     correlation identifiers for logging.
//
// Concrete protocol clients live in the per-service subpackages (plex,
// jellyfin, overseerr, authentik); Build binds them to their configurations.
package services
