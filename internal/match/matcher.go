package match

import (
	"strings"
	"unicode"

	"stitch/internal/identity"
	"stitch/internal/textutil"
)

// Candidate links two user records from different services with the evidence
// that connected them. Attributes lists every passed check in descending trust
// order.
type Candidate struct {
	A          identity.Record `json:"user_a"`
	B          identity.Record `json:"user_b"`
	Attributes []Attribute     `json:"matching_attributes"`
	Confidence float64         `json:"confidence_score"`
}

// Bucket places the candidate's confidence into its bucket.
func (c *Candidate) Bucket() Bucket {
	return BucketFor(c.Confidence)
}

// Match compares two user records and returns a candidate carrying every
// attribute check that passed, or nil when none did.
func Match(a, b identity.Record) *Candidate {
	attrs := matchedAttributes(a, b)
	if len(attrs) == 0 {
		return nil
	}
	return &Candidate{
		A:          a,
		B:          b,
		Attributes: attrs,
		Confidence: CombineWeights(attrs),
	}
}

// CombineWeights folds attribute weights into one confidence with the
// noisy-or rule 1 - Π(1 - w): each matched attribute independently raises
// confidence toward 1. Result is clamped to [0, 1].
func CombineWeights(attrs []Attribute) float64 {
	remainder := 1.0
	for _, attr := range attrs {
		remainder *= 1 - attr.Weight()
	}
	confidence := 1 - remainder
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func matchedAttributes(a, b identity.Record) []Attribute {
	idA := strings.TrimSpace(a.NativeID)
	idB := strings.TrimSpace(b.NativeID)
	usernameA, usernameB := a.CanonicalUsername(), b.CanonicalUsername()
	emailA, emailB := a.CanonicalEmail(), b.CanonicalEmail()
	nameA, nameB := a.CanonicalDisplayName(), b.CanonicalDisplayName()

	usernameExact := usernameA != "" && usernameA == usernameB
	emailExact := emailA != "" && emailA == emailB
	nameExact := nameA != "" && nameA == nameB

	var attrs []Attribute
	if idA != "" && idA == idB {
		attrs = append(attrs, AttributeIDExact)
	}
	if usernameExact {
		attrs = append(attrs, AttributeUsernameExact)
	}
	if emailExact {
		attrs = append(attrs, AttributeEmailExact)
	}
	if nameExact {
		attrs = append(attrs, AttributeFriendlyNameExact)
	}
	if (usernameA != "" && usernameA == nameB) || (usernameB != "" && usernameB == nameA) {
		attrs = append(attrs, AttributeUsernameFriendlyMatch)
	}
	if !usernameExact && usernameA != "" && usernameB != "" &&
		textutil.SimilarityRatio(usernameA, usernameB) >= fuzzyThreshold {
		attrs = append(attrs, AttributeUsernameFuzzy)
	}
	if !emailExact && emailLocalsSimilar(emailA, emailB) {
		attrs = append(attrs, AttributeEmailFuzzy)
	}
	if !nameExact && nameKeysSimilar(a, b) {
		attrs = append(attrs, AttributeNameFuzzy)
	}
	return attrs
}

// emailLocalsSimilar compares the punctuation-stripped local parts of two
// emails, so "alice.smith@x.com" and "alicesmith@y.com" still connect.
func emailLocalsSimilar(emailA, emailB string) bool {
	if emailA == "" || emailB == "" {
		return false
	}
	localA := emailLocalKey(emailA)
	localB := emailLocalKey(emailB)
	if localA == "" || localB == "" {
		return false
	}
	return textutil.SimilarityRatio(localA, localB) >= fuzzyThreshold
}

// nameKeysSimilar reports whether any derived name key of one record is
// fuzzy-similar to any of the other's. Records without a display name fall
// back to their username as the name source.
func nameKeysSimilar(a, b identity.Record) bool {
	keysA := textutil.NameKeys(a.DisplayName, a.Username)
	keysB := textutil.NameKeys(b.DisplayName, b.Username)
	for _, keyA := range keysA {
		for _, keyB := range keysB {
			if textutil.SimilarityRatio(keyA, keyB) >= fuzzyThreshold {
				return true
			}
		}
	}
	return false
}

func emailLocalKey(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range local {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
