package identity

import (
	"fmt"
	"strings"

	"stitch/internal/textutil"
)

// Record is a user account as reported by a single service. Metadata is an
// opaque passthrough of service-specific fields; the engine stores it but
// never interprets it.
type Record struct {
	ServiceConfigID int64             `json:"service_config_id"`
	Service         string            `json:"service"`
	NativeID        string            `json:"native_id"`
	Username        string            `json:"username"`
	Email           string            `json:"email"`
	DisplayName     string            `json:"display_name"`
	IsAdmin         bool              `json:"is_admin"`
	IsActive        bool              `json:"is_active"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Identifiable reports whether the record carries at least one usable
// identifier. Records that fail this check are discarded at normalization
// time; they can never be matched or mapped.
func (r Record) Identifiable() bool {
	return strings.TrimSpace(r.NativeID) != "" ||
		strings.TrimSpace(r.Username) != "" ||
		strings.TrimSpace(r.Email) != ""
}

// CanonicalEmail returns the folded email, or "" when the record has none.
func (r Record) CanonicalEmail() string {
	return textutil.FoldEmail(r.Email)
}

// CanonicalUsername returns the folded username, or "" when the record has none.
func (r Record) CanonicalUsername() string {
	return textutil.Fold(r.Username)
}

// CanonicalDisplayName returns the folded display name, or "" when the record
// has none.
func (r Record) CanonicalDisplayName() string {
	return textutil.Fold(r.DisplayName)
}

// Label returns the best human-readable name for the record, preferring the
// display name, then username, then email, then the native id.
func (r Record) Label() string {
	for _, candidate := range []string{r.DisplayName, r.Username, r.Email} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return r.NativeID
}

// Key uniquely identifies the record within a detection run. Records without
// a native id key on their folded username or email instead, so identifiable
// records from the same service never collide.
func (r Record) Key() string {
	if id := strings.TrimSpace(r.NativeID); id != "" {
		return fmt.Sprintf("%d:id:%s", r.ServiceConfigID, id)
	}
	if username := r.CanonicalUsername(); username != "" {
		return fmt.Sprintf("%d:u:%s", r.ServiceConfigID, username)
	}
	return fmt.Sprintf("%d:e:%s", r.ServiceConfigID, r.CanonicalEmail())
}
