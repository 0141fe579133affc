// Package authentik lists the users of an Authentik identity provider via
// its core users API. Authentik is often the system of record for emails,
// which makes its records strong anchors for canonical identity selection.
package authentik
