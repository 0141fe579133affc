// Package identity defines the service user record shared across enumeration,
// matching, and mapping, plus derivation of the central user identifier that
// links accounts for the same person across services.
package identity
