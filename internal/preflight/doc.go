// Package preflight provides readiness checks for external services
// and filesystem paths that Stitch depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure before it
//     begins serving, so a dead service is visible immediately instead of
//     on the first detection run.
//   - The CLI "stitch status" command uses the same checks plus
//     ProbeDatabase to display health when the daemon is down.
//
// A failed check never aborts startup on its own; services come and go, and
// the sync state machine records per-mapping failures as they happen.
package preflight
