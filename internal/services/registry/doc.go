// Package registry turns enabled service config blocks into bound Directory
// values. Callers receive the Directory interface only; which client backs a
// given service type is decided here and nowhere else.
package registry
