// Package mapping persists approved user mappings in SQLite and exposes
// helpers for driving their sync lifecycle.
//
// The Store manages database connections, schema initialization, CRUD over
// mappings, stats queries, and the status transitions that mirror the public
// sync enum. A mapping links one central identity to one account on one
// service; the pair (central_user_id, service_config_id) is unique so a
// central user can hold at most one mapping per service.
//
// Attribute values observed for a central user (emails, usernames, display
// names) are recorded append-only in a side table so profiles keep every
// historically seen value even after a service stops reporting it.
//
// Treat this package as the single source of truth for mapping semantics;
// when you add new statuses or columns, update schema.sql and bump
// schemaVersion.
package mapping
