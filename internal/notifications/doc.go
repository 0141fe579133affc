// Package notifications delivers engine events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set. The
// per-event booleans in the notifications config block suppress individual
// notifications without tearing down the channel, so operators can keep sync
// failure alerts while muting routine detection summaries.
//
// Extend this package if you need alternative transports; daemon and engine
// code depend only on the simple Service interface.
package notifications
