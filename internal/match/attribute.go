package match

import "strings"

// Attribute identifies one attribute check that linked two user records.
type Attribute string

const (
	AttributeIDExact               Attribute = "id_exact"
	AttributeUsernameExact         Attribute = "username_exact"
	AttributeEmailExact            Attribute = "email_exact"
	AttributeFriendlyNameExact     Attribute = "friendly_name_exact"
	AttributeUsernameFriendlyMatch Attribute = "username_friendly_match"
	AttributeUsernameFuzzy         Attribute = "username_fuzzy"
	AttributeEmailFuzzy            Attribute = "email_fuzzy"
	AttributeNameFuzzy             Attribute = "name_fuzzy"
)

// allAttributes orders attributes by descending trust. Match evaluates and
// records attributes in this order.
var allAttributes = []Attribute{
	AttributeIDExact,
	AttributeUsernameExact,
	AttributeEmailExact,
	AttributeFriendlyNameExact,
	AttributeUsernameFriendlyMatch,
	AttributeUsernameFuzzy,
	AttributeEmailFuzzy,
	AttributeNameFuzzy,
}

var attributeSet = func() map[Attribute]struct{} {
	set := make(map[Attribute]struct{}, len(allAttributes))
	for _, attr := range allAttributes {
		set[attr] = struct{}{}
	}
	return set
}()

// attributeWeights holds the per-attribute contribution to combined
// confidence. Exact checks sit at or above 0.9; fuzzy checks contribute far
// less so that a lone fuzzy hit stays in the low bucket.
var attributeWeights = map[Attribute]float64{
	AttributeIDExact:               0.95,
	AttributeUsernameExact:         0.92,
	AttributeEmailExact:            0.95,
	AttributeFriendlyNameExact:     0.90,
	AttributeUsernameFriendlyMatch: 0.90,
	AttributeUsernameFuzzy:         0.60,
	AttributeEmailFuzzy:            0.55,
	AttributeNameFuzzy:             0.40,
}

// fuzzyThreshold is the minimum normalized Levenshtein ratio for the fuzzy
// attribute checks.
const fuzzyThreshold = 0.85

// AllAttributes returns the attribute ladder in descending trust order.
func AllAttributes() []Attribute {
	cp := make([]Attribute, len(allAttributes))
	copy(cp, allAttributes)
	return cp
}

// ParseAttribute converts a string into a known Attribute.
func ParseAttribute(value string) (Attribute, bool) {
	normalized := Attribute(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := attributeSet[normalized]
	return normalized, ok
}

// Weight returns the confidence contribution of the attribute, or 0 for an
// unknown attribute.
func (a Attribute) Weight() float64 {
	return attributeWeights[a]
}
