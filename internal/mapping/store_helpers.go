package mapping

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const mappingColumns = "id, central_user_id, central_username, central_email, service_config_id, service_user_id, service_username, service_email, role, status, sync_enabled, sync_attempts, last_sync_at, last_sync_success, last_sync_error, metadata_json, created_at, updated_at"

func scanMapping(scanner interface{ Scan(dest ...any) error }) (*UserMapping, error) {
	var (
		id              int64
		centralUserID   string
		centralUsername sql.NullString
		centralEmail    sql.NullString
		serviceConfigID int64
		serviceUserID   sql.NullString
		serviceUsername sql.NullString
		serviceEmail    sql.NullString
		roleStr         string
		statusStr       string
		syncEnabled     sql.NullInt64
		syncAttempts    sql.NullInt64
		lastSyncRaw     sql.NullString
		lastSyncSuccess sql.NullInt64
		lastSyncError   sql.NullString
		metadataRaw     sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&centralUserID,
		&centralUsername,
		&centralEmail,
		&serviceConfigID,
		&serviceUserID,
		&serviceUsername,
		&serviceEmail,
		&roleStr,
		&statusStr,
		&syncEnabled,
		&syncAttempts,
		&lastSyncRaw,
		&lastSyncSuccess,
		&lastSyncError,
		&metadataRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	m := &UserMapping{
		ID:              id,
		CentralUserID:   centralUserID,
		CentralUsername: centralUsername.String,
		CentralEmail:    centralEmail.String,
		ServiceConfigID: serviceConfigID,
		ServiceUserID:   serviceUserID.String,
		ServiceUsername: serviceUsername.String,
		ServiceEmail:    serviceEmail.String,
		Role:            Role(roleStr),
		Status:          Status(statusStr),
		LastSyncError:   lastSyncError.String,
	}
	if syncEnabled.Valid {
		m.SyncEnabled = syncEnabled.Int64 != 0
	}
	if syncAttempts.Valid {
		m.SyncAttempts = int(syncAttempts.Int64)
	}
	if lastSyncSuccess.Valid {
		success := lastSyncSuccess.Int64 != 0
		m.LastSyncSuccess = &success
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metadataRaw.String), &meta); err == nil && len(meta) > 0 {
			m.Metadata = meta
		}
	}

	if lastSyncRaw.Valid {
		if syncedAt, err := parseTimeString(lastSyncRaw.String); err == nil {
			m.LastSyncAt = &syncedAt
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		m.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		m.UpdatedAt = updated
	}
	return m, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func marshalJSONColumn(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" || string(data) == "{}" {
		return nil, nil
	}
	return string(data), nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
