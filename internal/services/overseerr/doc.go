// Package overseerr lists the accounts known to an Overseerr request
// manager, walking its paginated user API. Overseerr has no disabled flag,
// so every record reports as active.
package overseerr
