package mapping

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BeginSync moves a mapping into the syncing state. Only active or failed
// mappings may enter a sync attempt; anything else is a state conflict.
func (s *Store) BeginSync(ctx context.Context, id int64) (*UserMapping, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE user_mappings SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusSyncing,
		now,
		id,
		StatusActive,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("begin sync: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: mapping %d is %s, cannot start sync", ErrConflict, id, current.Status)
	}
	return s.GetByID(ctx, id)
}

// CompleteSync finalizes a sync attempt. Success returns the mapping to
// active with the attempt counter reset; failure moves it to failed with the
// error recorded and the counter incremented. The mapping must be syncing.
func (s *Store) CompleteSync(ctx context.Context, id int64, success bool, syncErr string) (*UserMapping, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var (
		res     sql.Result
		execErr error
	)
	if success {
		res, execErr = s.execWithRetry(
			ctx,
			`UPDATE user_mappings
             SET status = ?, sync_attempts = 0, last_sync_at = ?, last_sync_success = 1,
                 last_sync_error = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusActive,
			now,
			now,
			id,
			StatusSyncing,
		)
	} else {
		res, execErr = s.execWithRetry(
			ctx,
			`UPDATE user_mappings
             SET status = ?, sync_attempts = sync_attempts + 1, last_sync_at = ?, last_sync_success = 0,
                 last_sync_error = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusFailed,
			now,
			nullableString(syncErr),
			now,
			id,
			StatusSyncing,
		)
	}
	if execErr != nil {
		return nil, fmt.Errorf("complete sync: %w", execErr)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: mapping %d is %s, no sync in flight", ErrConflict, id, current.Status)
	}
	return s.GetByID(ctx, id)
}

// ListSyncable returns the sync-enabled mappings eligible for a sync sweep:
// active or failed, and either never synced or last synced before staleBefore.
// A zero staleBefore returns every eligible mapping regardless of age.
func (s *Store) ListSyncable(ctx context.Context, staleBefore time.Time) ([]*UserMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM user_mappings
        WHERE sync_enabled = 1 AND status IN (?, ?)`
	args := []any{StatusActive, StatusFailed}
	if !staleBefore.IsZero() {
		query += ` AND (last_sync_at IS NULL OR last_sync_at < ?)`
		args = append(args, staleBefore.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY central_user_id, service_config_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list syncable: %w", err)
	}
	defer rows.Close()

	var mappings []*UserMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// ReleaseStuckSyncing returns mappings stuck in syncing to the failed state.
// Used at daemon startup so a crash mid-sync never wedges a mapping.
func (s *Store) ReleaseStuckSyncing(ctx context.Context, reason string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE user_mappings
         SET status = ?, sync_attempts = sync_attempts + 1, last_sync_success = 0,
             last_sync_error = ?, updated_at = ?
         WHERE status = ?`,
		StatusFailed,
		nullableString(reason),
		now,
		StatusSyncing,
	)
	if err != nil {
		return 0, fmt.Errorf("release stuck syncing: %w", err)
	}
	return res.RowsAffected()
}
