package mapping

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the sync lifecycle of a mapping.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusActive,
	StatusSyncing,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Role records the privilege level the mapped account holds on its service.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case RoleAdmin, RoleUser:
		return normalized, true
	default:
		return "", false
	}
}

// UserMapping links one central identity to one account on one external
// service. Rows are mutated by the sync scheduler (status and sync fields)
// and by operator edits; deletion is a hard delete that never touches
// sibling mappings for the same central user.
type UserMapping struct {
	ID              int64             `json:"id"`
	CentralUserID   string            `json:"central_user_id"`
	CentralUsername string            `json:"central_username"`
	CentralEmail    string            `json:"central_email,omitempty"`
	ServiceConfigID int64             `json:"service_config_id"`
	ServiceUserID   string            `json:"service_user_id"`
	ServiceUsername string            `json:"service_username"`
	ServiceEmail    string            `json:"service_email,omitempty"`
	Role            Role              `json:"role"`
	Status          Status            `json:"status"`
	SyncEnabled     bool              `json:"sync_enabled"`
	SyncAttempts    int               `json:"sync_attempts"`
	LastSyncAt      *time.Time        `json:"last_sync_at,omitempty"`
	LastSyncSuccess *bool             `json:"last_sync_success,omitempty"`
	LastSyncError   string            `json:"last_sync_error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Syncable reports whether the scheduler may start a sync attempt.
func (m UserMapping) Syncable() bool {
	if !m.SyncEnabled {
		return false
	}
	return m.Status == StatusActive || m.Status == StatusFailed
}

// NewMappingRequest carries the fields required to create a mapping.
type NewMappingRequest struct {
	CentralUserID   string            `json:"central_user_id"`
	CentralUsername string            `json:"central_username"`
	CentralEmail    string            `json:"central_email,omitempty"`
	ServiceConfigID int64             `json:"service_config_id"`
	ServiceUserID   string            `json:"service_user_id,omitempty"`
	ServiceUsername string            `json:"service_username,omitempty"`
	ServiceEmail    string            `json:"service_email,omitempty"`
	Role            Role              `json:"role,omitempty"`
	SyncEnabled     bool              `json:"sync_enabled"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Validate checks the request before any write is attempted. The service
// account must carry at least one identifying attribute; a mapping that
// cannot be re-located on its service is useless.
func (r NewMappingRequest) Validate() error {
	if strings.TrimSpace(r.CentralUserID) == "" {
		return fmt.Errorf("%w: central user id is required", ErrValidation)
	}
	if strings.TrimSpace(r.CentralUsername) == "" {
		return fmt.Errorf("%w: central username is required", ErrValidation)
	}
	if r.ServiceConfigID <= 0 {
		return fmt.Errorf("%w: service config id is required", ErrValidation)
	}
	if strings.TrimSpace(r.ServiceUserID) == "" &&
		strings.TrimSpace(r.ServiceUsername) == "" &&
		strings.TrimSpace(r.ServiceEmail) == "" {
		return fmt.Errorf("%w: at least one of service user id, username, or email is required", ErrValidation)
	}
	if r.Role != "" {
		if _, ok := ParseRole(string(r.Role)); !ok {
			return fmt.Errorf("%w: unknown role %q", ErrValidation, r.Role)
		}
	}
	return nil
}

// UpdateRequest carries optional field changes for an existing mapping.
// Nil fields are left untouched.
type UpdateRequest struct {
	CentralUsername *string `json:"central_username,omitempty"`
	CentralEmail    *string `json:"central_email,omitempty"`
	ServiceUsername *string `json:"service_username,omitempty"`
	ServiceEmail    *string `json:"service_email,omitempty"`
	Role            *Role   `json:"role,omitempty"`
	Status          *Status `json:"status,omitempty"`
	SyncEnabled     *bool   `json:"sync_enabled,omitempty"`
}

func (r UpdateRequest) validate() error {
	if r.CentralUsername != nil && strings.TrimSpace(*r.CentralUsername) == "" {
		return fmt.Errorf("%w: central username cannot be cleared", ErrValidation)
	}
	if r.Role != nil {
		if _, ok := ParseRole(string(*r.Role)); !ok {
			return fmt.Errorf("%w: unknown role %q", ErrValidation, *r.Role)
		}
	}
	if r.Status != nil {
		if _, ok := ParseStatus(string(*r.Status)); !ok {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, *r.Status)
		}
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status          Status
	ServiceConfigID int64
	CentralUserID   string
}

func (f Filter) clauses() (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.ServiceConfigID > 0 {
		conds = append(conds, "service_config_id = ?")
		args = append(args, f.ServiceConfigID)
	}
	if f.CentralUserID != "" {
		conds = append(conds, "central_user_id = ?")
		args = append(args, f.CentralUserID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const (
	// DefaultPageLimit applies when a caller requests a page without a size.
	DefaultPageLimit = 50
	// MaxPageLimit caps a single List page.
	MaxPageLimit = 500
)

// Page bounds List results. A zero Limit requests the default page size.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// CentralUser summarizes one central identity and its mapped services.
type CentralUser struct {
	CentralUserID   string `json:"central_user_id"`
	CentralUsername string `json:"central_username"`
	CentralEmail    string `json:"central_email,omitempty"`
	Mappings        int    `json:"mappings"`
}

// Stats aggregates mapping counts for diagnostics and status output.
type Stats struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	CentralUsers int            `json:"central_users"`
	Services     int            `json:"services"`
	SyncEnabled  int            `json:"sync_enabled"`
}

// DatabaseHealth captures diagnostic information about the mapping database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present,omitempty"`
	MissingColumns   []string `json:"missing_columns,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalMappings    int      `json:"total_mappings"`
	Error            string   `json:"error,omitempty"`
}
