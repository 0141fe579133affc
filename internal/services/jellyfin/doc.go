// Package jellyfin lists the accounts on a Jellyfin server.
//
// Emby servers expose the same /Users surface and accept the same
// X-Emby-Token header, so this client serves both service types. Neither
// server publishes email addresses; records carry username and display name
// only.
package jellyfin
