package mapping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Stats returns aggregate mapping counts grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM user_mappings GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("mapping stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT central_user_id), COUNT(DISTINCT service_config_id), COALESCE(SUM(sync_enabled), 0) FROM user_mappings`)
	if err := row.Scan(&stats.CentralUsers, &stats.Services, &stats.SyncEnabled); err != nil {
		return Stats{}, fmt.Errorf("mapping aggregates: %w", err)
	}

	return stats, nil
}

// CentralUsers lists the distinct central identities with mapping counts,
// ordered by central user id.
func (s *Store) CentralUsers(ctx context.Context) ([]CentralUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT central_user_id, MIN(central_username), COALESCE(MIN(central_email), ''), COUNT(1)
         FROM user_mappings GROUP BY central_user_id ORDER BY central_user_id`)
	if err != nil {
		return nil, fmt.Errorf("list central users: %w", err)
	}
	defer rows.Close()

	var users []CentralUser
	for rows.Next() {
		var user CentralUser
		if err := rows.Scan(&user.CentralUserID, &user.CentralUsername, &user.CentralEmail, &user.Mappings); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CheckHealth returns diagnostic information about the mapping database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: strconv.Itoa(schemaVersion),
	}

	if s.path == "" {
		return health, errors.New("mapping database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat mapping database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("mapping database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("mapping database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping mapping database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'user_mappings'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		colsRows, err := s.db.QueryContext(connCtx, "PRAGMA table_info(user_mappings)")
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("table info: %w", err)
		}
		defer colsRows.Close()

		var columns []string
		for colsRows.Next() {
			var (
				cid     int
				name    string
				typeStr string
				notNull int
				dflt    any
				pk      int
			)
			if err := colsRows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
				health.Error = err.Error()
				return health, fmt.Errorf("scan table info: %w", err)
			}
			columns = append(columns, name)
		}
		if err := colsRows.Err(); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("iterate table info: %w", err)
		}
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)

		expected := []string{
			"id",
			"central_user_id",
			"central_username",
			"central_email",
			"service_config_id",
			"service_user_id",
			"service_username",
			"service_email",
			"role",
			"status",
			"sync_enabled",
			"sync_attempts",
			"last_sync_at",
			"last_sync_success",
			"last_sync_error",
			"metadata_json",
			"last_record_json",
			"created_at",
			"updated_at",
		}
		present := make(map[string]struct{}, len(columns))
		for _, name := range columns {
			present[name] = struct{}{}
		}
		for _, name := range expected {
			if _, ok := present[name]; !ok {
				health.MissingColumns = append(health.MissingColumns, name)
			}
		}

		var integrity string
		if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("integrity check: %w", err)
		}
		health.IntegrityCheck = integrity == "ok"

		var total int
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM user_mappings").Scan(&total); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count mappings: %w", err)
		}
		health.TotalMappings = total
	}

	return health, nil
}
