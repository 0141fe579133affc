package mapping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Create inserts a new mapping in the active state. The creation-time
// attribute values are recorded into the central user's observed history so
// later edits never erase them.
func (s *Store) Create(ctx context.Context, req NewMappingRequest) (*UserMapping, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = RoleUser
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	metadataJSON, err := marshalJSONColumn(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO user_mappings (
            central_user_id, central_username, central_email,
            service_config_id, service_user_id, service_username, service_email,
            role, status, sync_enabled, sync_attempts, metadata_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.CentralUserID,
		req.CentralUsername,
		nullableString(req.CentralEmail),
		req.ServiceConfigID,
		nullableString(req.ServiceUserID),
		nullableString(req.ServiceUsername),
		nullableString(req.ServiceEmail),
		role,
		StatusActive,
		boolToInt(req.SyncEnabled),
		0,
		metadataJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: central user %q already has a mapping for service %d",
				ErrConflict, req.CentralUserID, req.ServiceConfigID)
		}
		return nil, fmt.Errorf("insert mapping: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := s.recordValues(ctx, req.CentralUserID, valueKindUsername, req.CentralUsername, req.ServiceUsername); err != nil {
		return nil, err
	}
	if err := s.recordValues(ctx, req.CentralUserID, valueKindEmail, req.CentralEmail, req.ServiceEmail); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a mapping by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*UserMapping, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mappingColumns+` FROM user_mappings WHERE id = ?`, id)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mapping %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	return m, nil
}

// GetByPair fetches the mapping for a (central user, service) pair.
func (s *Store) GetByPair(ctx context.Context, centralUserID string, serviceConfigID int64) (*UserMapping, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+mappingColumns+` FROM user_mappings WHERE central_user_id = ? AND service_config_id = ?`,
		centralUserID,
		serviceConfigID,
	)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("central user %q on service %d: %w", centralUserID, serviceConfigID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping by pair: %w", err)
	}
	return m, nil
}

// ByCentralUser returns every mapping for a central user ordered by service.
func (s *Store) ByCentralUser(ctx context.Context, centralUserID string) ([]*UserMapping, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+mappingColumns+` FROM user_mappings WHERE central_user_id = ? ORDER BY service_config_id`,
		centralUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("query by central user: %w", err)
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

// List returns mappings matching the filter plus the total match count
// before pagination.
func (s *Store) List(ctx context.Context, filter Filter, page Page) ([]*UserMapping, int, error) {
	where, args := filter.clauses()
	page = page.normalized()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM user_mappings`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count mappings: %w", err)
	}

	query := `SELECT ` + mappingColumns + ` FROM user_mappings` + where +
		` ORDER BY central_user_id, service_config_id LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*UserMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, 0, err
		}
		mappings = append(mappings, m)
	}
	return mappings, total, rows.Err()
}

// Update applies the non-nil fields of req to an existing mapping and
// returns the stored result. Newly introduced attribute values join the
// observed history alongside the ones they replace.
func (s *Store) Update(ctx context.Context, id int64, req UpdateRequest) (*UserMapping, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	m, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CentralUsername != nil {
		m.CentralUsername = *req.CentralUsername
	}
	if req.CentralEmail != nil {
		m.CentralEmail = *req.CentralEmail
	}
	if req.ServiceUsername != nil {
		m.ServiceUsername = *req.ServiceUsername
	}
	if req.ServiceEmail != nil {
		m.ServiceEmail = *req.ServiceEmail
	}
	if req.Role != nil {
		m.Role = *req.Role
	}
	if req.Status != nil {
		m.Status = *req.Status
	}
	if req.SyncEnabled != nil {
		m.SyncEnabled = *req.SyncEnabled
	}
	m.UpdatedAt = time.Now().UTC()

	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE user_mappings
         SET central_username = ?, central_email = ?, service_username = ?, service_email = ?,
             role = ?, status = ?, sync_enabled = ?, updated_at = ?
         WHERE id = ?`,
		m.CentralUsername,
		nullableString(m.CentralEmail),
		nullableString(m.ServiceUsername),
		nullableString(m.ServiceEmail),
		m.Role,
		m.Status,
		boolToInt(m.SyncEnabled),
		m.UpdatedAt.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return nil, fmt.Errorf("update mapping: %w", err)
	}

	if err := s.recordValues(ctx, m.CentralUserID, valueKindUsername, m.CentralUsername, m.ServiceUsername); err != nil {
		return nil, err
	}
	if err := s.recordValues(ctx, m.CentralUserID, valueKindEmail, m.CentralEmail, m.ServiceEmail); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// Delete removes a single mapping. Sibling mappings for the same central
// user and the observed value history are left untouched.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM user_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mapping %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteCentralUser removes every mapping for a central user along with its
// observed value history. Returns the number of mappings removed.
func (s *Store) DeleteCentralUser(ctx context.Context, centralUserID string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM user_mappings WHERE central_user_id = ?`, centralUserID)
	if err != nil {
		return 0, fmt.Errorf("delete central user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("central user %q: %w", centralUserID, ErrNotFound)
	}
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM profile_values WHERE central_user_id = ?`, centralUserID); err != nil {
		return affected, fmt.Errorf("delete profile values: %w", err)
	}
	return affected, nil
}
