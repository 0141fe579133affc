// Package detect orchestrates a detection run: enumerate users from every
// configured directory, compare all cross-service pairs with the attribute
// matcher, and cluster the resulting candidates into identity suggestions.
//
// Enumeration and pair comparison fan out over a bounded worker pool; the
// matcher and clustering are pure computations over already-fetched data.
// A run tolerates per-service failures and cancellation, returning whatever
// it completed along with the failures it saw.
package detect
