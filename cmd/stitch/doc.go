// Package main hosts the stitch CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into engine
// operations: user enumeration across configured services, mapping detection
// and approval, mapping maintenance, profile inspection and sync, daemon
// process control, and configuration scaffolding. It centralizes
// configuration resolution and store lifecycle so subcommands can focus on
// user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
