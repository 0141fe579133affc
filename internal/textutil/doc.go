// Package textutil provides text normalization and similarity utilities for
// comparing user identity attributes across services.
//
// The primary use cases are:
//   - Folding names and emails into canonical comparison forms
//   - Computing normalized Levenshtein similarity between short strings
//   - Deriving comparison keys from display names and usernames
//
// Folding lowercases text, strips diacritical marks via Unicode NFD
// decomposition, and collapses interior whitespace so that "José García" and
// "jose garcia" compare equal.
package textutil
