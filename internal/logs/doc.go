// Package logs locates and tails the daemon's log files.
//
// Each daemon run writes its own stitch-<runID>.log and repoints stitch.log
// at it, so CurrentPath resolves the pointer first and falls back to the
// newest run file. Tail reads with bounded memory, supports a negative
// offset for "last N lines", and polls for new lines in follow mode until
// the caller's context ends.
package logs
