package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stitch/internal/identity"
	"stitch/internal/textutil"
)

const (
	valueKindUsername    = "username"
	valueKindEmail       = "email"
	valueKindDisplayName = "display_name"
)

// Profile aggregates every mapping for one central user into a read-only
// view. It is rebuilt on demand and never stored; the mapping rows and the
// observed value history are the sources of truth.
type Profile struct {
	CentralUserID   string                    `json:"central_user_id"`
	CentralUsername string                    `json:"central_username"`
	Emails          []string                  `json:"emails"`
	Usernames       []string                  `json:"usernames"`
	DisplayNames    []string                  `json:"display_names"`
	ServiceData     map[int64]identity.Record `json:"service_data"`
	Roles           map[int64]Role            `json:"roles"`
	IsAdminAnywhere bool                      `json:"is_admin_anywhere"`
	LastUpdated     time.Time                 `json:"last_updated"`
	Mappings        []*UserMapping            `json:"mappings"`
}

// ObserveRecord folds a freshly fetched service record into a mapping: the
// last-known snapshot is replaced and newly seen attribute values join the
// central user's history. Mapping fields themselves are not rewritten here;
// only operator edits change them.
func (s *Store) ObserveRecord(ctx context.Context, mappingID int64, record identity.Record) (*UserMapping, error) {
	m, err := s.GetByID(ctx, mappingID)
	if err != nil {
		return nil, err
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record snapshot: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE user_mappings SET last_record_json = ?, updated_at = ? WHERE id = ?`,
		string(recordJSON),
		now,
		mappingID,
	); err != nil {
		return nil, fmt.Errorf("store record snapshot: %w", err)
	}

	if err := s.recordValues(ctx, m.CentralUserID, valueKindUsername, record.Username); err != nil {
		return nil, err
	}
	if err := s.recordValues(ctx, m.CentralUserID, valueKindEmail, record.Email); err != nil {
		return nil, err
	}
	if err := s.recordValues(ctx, m.CentralUserID, valueKindDisplayName, record.DisplayName); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, mappingID)
}

// GetProfile assembles the centralized view for a central user from its
// mappings, their last-known service records, and the observed value history.
// Values accumulate across refreshes; a service dropping an attribute never
// removes it from the profile.
func (s *Store) GetProfile(ctx context.Context, centralUserID string) (*Profile, error) {
	mappings, err := s.ByCentralUser(ctx, centralUserID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("central user %q: %w", centralUserID, ErrNotFound)
	}

	profile := &Profile{
		CentralUserID:   centralUserID,
		CentralUsername: mappings[0].CentralUsername,
		ServiceData:     make(map[int64]identity.Record, len(mappings)),
		Roles:           make(map[int64]Role, len(mappings)),
		Mappings:        mappings,
	}

	usernames := newValueList(valueKindUsername)
	emails := newValueList(valueKindEmail)
	displayNames := newValueList(valueKindDisplayName)
	if err := s.loadValues(ctx, centralUserID, usernames, emails, displayNames); err != nil {
		return nil, err
	}

	snapshots, err := s.recordSnapshots(ctx, centralUserID)
	if err != nil {
		return nil, err
	}

	for _, m := range mappings {
		usernames.add(m.CentralUsername, m.ServiceUsername)
		emails.add(m.CentralEmail, m.ServiceEmail)

		record, ok := snapshots[m.ID]
		if !ok {
			// No refresh has run yet; synthesize a snapshot from the
			// creation-time fields.
			record = identity.Record{
				ServiceConfigID: m.ServiceConfigID,
				NativeID:        m.ServiceUserID,
				Username:        m.ServiceUsername,
				Email:           m.ServiceEmail,
				IsAdmin:         m.Role == RoleAdmin,
				IsActive:        true,
			}
		}
		usernames.add(record.Username)
		emails.add(record.Email)
		displayNames.add(record.DisplayName)

		profile.ServiceData[m.ServiceConfigID] = record
		profile.Roles[m.ServiceConfigID] = m.Role
		if m.Role == RoleAdmin || record.IsAdmin {
			profile.IsAdminAnywhere = true
		}
		if m.UpdatedAt.After(profile.LastUpdated) {
			profile.LastUpdated = m.UpdatedAt
		}
	}

	profile.Usernames = usernames.values
	profile.Emails = emails.values
	profile.DisplayNames = displayNames.values
	return profile, nil
}

// recordValues appends attribute values to a central user's observed history.
// Values are keyed by their folded form so case and diacritic variants
// collapse into one entry; the first seen spelling is kept for display.
func (s *Store) recordValues(ctx context.Context, centralUserID, kind string, values ...string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized := normalizeValue(kind, trimmed)
		if normalized == "" {
			continue
		}
		if err := s.execWithoutResultRetry(
			ctx,
			`INSERT OR IGNORE INTO profile_values (central_user_id, kind, normalized, value, first_seen_at)
             VALUES (?, ?, ?, ?, ?)`,
			centralUserID,
			kind,
			normalized,
			trimmed,
			now,
		); err != nil {
			return fmt.Errorf("record %s value: %w", kind, err)
		}
	}
	return nil
}

func (s *Store) loadValues(ctx context.Context, centralUserID string, lists ...*valueList) error {
	byKind := make(map[string]*valueList, len(lists))
	for _, list := range lists {
		byKind[list.kind] = list
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT kind, value FROM profile_values WHERE central_user_id = ? ORDER BY first_seen_at, rowid`,
		centralUserID,
	)
	if err != nil {
		return fmt.Errorf("load profile values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return err
		}
		if list, ok := byKind[kind]; ok {
			list.add(value)
		}
	}
	return rows.Err()
}

func (s *Store) recordSnapshots(ctx context.Context, centralUserID string) (map[int64]identity.Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, last_record_json FROM user_mappings WHERE central_user_id = ? AND last_record_json IS NOT NULL`,
		centralUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("load record snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[int64]identity.Record)
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var record identity.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		snapshots[id] = record
	}
	return snapshots, rows.Err()
}

// valueList keeps attribute values unique by folded form while preserving
// first-seen order.
type valueList struct {
	kind   string
	seen   map[string]struct{}
	values []string
}

func newValueList(kind string) *valueList {
	return &valueList{kind: kind, seen: make(map[string]struct{}), values: []string{}}
}

func (l *valueList) add(values ...string) {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized := normalizeValue(l.kind, trimmed)
		if normalized == "" {
			continue
		}
		if _, ok := l.seen[normalized]; ok {
			continue
		}
		l.seen[normalized] = struct{}{}
		l.values = append(l.values, trimmed)
	}
}

func normalizeValue(kind, value string) string {
	if kind == valueKindEmail {
		return textutil.FoldEmail(value)
	}
	return textutil.Fold(value)
}
