// Package match compares user records from different services and scores how
// likely they belong to the same person.
//
// Each comparison evaluates a fixed ladder of attribute checks from most to
// least trustworthy. Every check that passes is recorded on the candidate, and
// the combined confidence follows the noisy-or rule: each matched attribute
// independently raises confidence toward 1 without ever exceeding it.
package match
