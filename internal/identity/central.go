package identity

import (
	"strings"

	"github.com/google/uuid"

	"stitch/internal/textutil"
)

// syntheticPrefix marks central ids minted for records that carry neither an
// email nor a username.
const syntheticPrefix = "user-"

// CentralID derives the canonical central user id for a single record:
// the folded email when present, otherwise the folded username, otherwise a
// freshly synthesized id unique within the run.
func CentralID(r Record) string {
	if email := r.CanonicalEmail(); email != "" {
		return email
	}
	if username := r.CanonicalUsername(); username != "" {
		return username
	}
	return SynthesizeID()
}

// SynthesizeID mints a central id for records with no usable identifier.
func SynthesizeID() string {
	return syntheticPrefix + uuid.NewString()
}

// CanonicalCentralID folds an operator-supplied central id the same way
// detection derives them, so manually created mappings land in the same
// group as detected ones. Synthesized ids pass through untouched.
func CanonicalCentralID(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, syntheticPrefix) {
		return trimmed
	}
	if strings.Contains(trimmed, "@") {
		return textutil.FoldEmail(trimmed)
	}
	return textutil.Fold(trimmed)
}

// CentralIDForCluster derives the shared central id for a group of records
// believed to be the same person. Emails take precedence over usernames; ties
// resolve to the lexicographically smallest candidate so the result is stable
// across runs regardless of record order.
func CentralIDForCluster(records []Record) string {
	if best := smallestNonEmpty(records, Record.CanonicalEmail); best != "" {
		return best
	}
	if best := smallestNonEmpty(records, Record.CanonicalUsername); best != "" {
		return best
	}
	return SynthesizeID()
}

func smallestNonEmpty(records []Record, extract func(Record) string) string {
	best := ""
	for _, r := range records {
		value := extract(r)
		if value == "" {
			continue
		}
		if best == "" || value < best {
			best = value
		}
	}
	return best
}
