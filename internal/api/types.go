package api

import (
	"stitch/internal/identity"
	"stitch/internal/mapping"
	"stitch/internal/match"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ServiceUsers carries one service's enumerated user list.
type ServiceUsers struct {
	ServiceConfigID int64             `json:"service_config_id"`
	ServiceName     string            `json:"service_name"`
	ServiceType     string            `json:"service_type"`
	Users           []identity.Record `json:"users"`
	Skipped         int               `json:"skipped,omitempty"`
}

// EnumerationResult is the read-only answer to "who exists where".
type EnumerationResult struct {
	TotalServices   int            `json:"total_services"`
	ServicesScanned int            `json:"services_scanned"`
	TotalUsers      int            `json:"total_users"`
	Services        []ServiceUsers `json:"services"`
	Errors          []string       `json:"errors,omitempty"`
}

// Suggestion is one pairwise match candidate annotated with the central id
// of the identity cluster it belongs to.
type Suggestion struct {
	CentralUserID string            `json:"central_user_id"`
	UserA         identity.Record   `json:"user_a"`
	UserB         identity.Record   `json:"user_b"`
	Attributes    []match.Attribute `json:"matching_attributes"`
	Confidence    float64           `json:"confidence_score"`
	Bucket        match.Bucket      `json:"confidence_bucket"`
}

// CandidateIdentity is a transitively clustered group of records believed to
// be one person, presented for operator approval.
type CandidateIdentity struct {
	CentralUserID string            `json:"central_user_id"`
	Members       []identity.Record `json:"members"`
	Attributes    []match.Attribute `json:"matching_attributes"`
	AvgConfidence float64           `json:"avg_confidence"`
	Bucket        match.Bucket      `json:"confidence_bucket"`
}

// ServiceCombination reports one compared service pair.
type ServiceCombination struct {
	Service1         string `json:"service_1"`
	Service2         string `json:"service_2"`
	SuggestionsFound int    `json:"suggestions_found"`
}

// DetectionResult summarizes one detection run.
type DetectionResult struct {
	RunID               string               `json:"run_id"`
	TotalServices       int                  `json:"total_services"`
	ServicesScanned     int                  `json:"services_scanned"`
	TotalUsers          int                  `json:"total_users"`
	Suggestions         []Suggestion         `json:"suggestions"`
	HighConfidence      int                  `json:"high_confidence_suggestions"`
	MediumConfidence    int                  `json:"medium_confidence_suggestions"`
	LowConfidence       int                  `json:"low_confidence_suggestions"`
	Identities          []CandidateIdentity  `json:"candidate_identities"`
	ServiceCombinations []ServiceCombination `json:"service_combinations"`
	Errors              []string             `json:"errors,omitempty"`
	StartedAt           string               `json:"started_at"`
	CompletedAt         string               `json:"completed_at"`
	Incomplete          bool                 `json:"incomplete,omitempty"`
}

// ApprovalResult reports how many mappings a batch approval created and
// which candidates were rejected.
type ApprovalResult struct {
	CreatedMappings int      `json:"created_mappings"`
	Errors          []string `json:"errors,omitempty"`
}

// MappingList wraps a filtered mapping page with the unpaginated total.
type MappingList struct {
	Mappings []*mapping.UserMapping `json:"mappings"`
	Total    int                    `json:"total"`
}

// SyncOutcome reports one mapping's refresh result within a profile sync.
type SyncOutcome struct {
	MappingID       int64          `json:"mapping_id"`
	CentralUserID   string         `json:"central_user_id"`
	ServiceConfigID int64          `json:"service_config_id"`
	ServiceName     string         `json:"service_name,omitempty"`
	Synced          bool           `json:"synced"`
	Status          mapping.Status `json:"status"`
	Error           string         `json:"error,omitempty"`
}

// DaemonStatus reports daemon runtime information for the status endpoint.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	StartedAt    string        `json:"started_at,omitempty"`
	DatabasePath string        `json:"database_path"`
	LockFilePath string        `json:"lock_file_path"`
	Sync         SyncStatus    `json:"sync"`
	Mappings     mapping.Stats `json:"mappings"`
	Checks       []CheckResult `json:"startup_checks,omitempty"`
}

// SyncStatus summarizes the background sync loop.
type SyncStatus struct {
	Enabled         bool   `json:"enabled"`
	Running         bool   `json:"running"`
	IntervalSeconds int    `json:"interval_seconds"`
	LastSweepAt     string `json:"last_sweep_at,omitempty"`
	LastSynced      int    `json:"last_synced"`
	LastFailed      int    `json:"last_failed"`
	Sweeps          int64  `json:"sweeps"`
	LastError       string `json:"last_error,omitempty"`
}

// CheckResult is one preflight check outcome in a status payload.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ApproveSuggestionsRequest is the body for bulk suggestion approval.
type ApproveSuggestionsRequest struct {
	Suggestions               []Suggestion `json:"suggestions"`
	AutoApproveHighConfidence bool         `json:"auto_approve_high_confidence"`
}

// TestNotificationResult reports the outcome of a notification test.
type TestNotificationResult struct {
	Sent   bool   `json:"sent"`
	Detail string `json:"detail,omitempty"`
}

// DeleteResult reports how many rows a delete removed.
type DeleteResult struct {
	Removed int64 `json:"removed"`
}
