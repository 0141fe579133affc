// Package plex lists the accounts in a Plex Home via the plex.tv API.
//
// The home-users endpoint lives on the account service rather than on a
// media server, so the configured URL is normally https://plex.tv. Managed
// (restricted) accounts come back without a username or email; their title
// still provides a display name for matching.
package plex
