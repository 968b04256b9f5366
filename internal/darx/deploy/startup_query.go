package deploy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/platform/database"
)

// ListDeployedTenants returns every env_id with at least one deployment,
// the startup loader's (§4.L) enumeration step.
func (s *Store) ListDeployedTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT DISTINCT env_id FROM deploys`)
	if err != nil {
		return nil, fmt.Errorf("list deployed tenants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var envID string
		if err := rows.Scan(&envID); err != nil {
			return nil, fmt.Errorf("scan env_id: %w", err)
		}
		out = append(out, envID)
	}
	return out, rows.Err()
}

// HeadDeployment returns envID's current (highest deploy_seq)
// deployment's full content, including the codes ListCode omits
// (__registry.js) — the startup loader rematerializes from the exact
// persisted record, not the list_code projection.
func (s *Store) HeadDeployment(ctx context.Context, envID string) (deploySeq int64, codes []models.Code, routes []models.Route, found bool, err error) {
	var seq sql.NullInt64
	err = s.db.QueryRowxContext(ctx, database.ConvertPlaceholders(
		`SELECT MAX(deploy_seq) FROM deploys WHERE env_id = ?`), envID).Scan(&seq)
	if err != nil {
		return 0, nil, nil, false, fmt.Errorf("find head deploy for %q: %w", envID, err)
	}
	if !seq.Valid {
		return 0, nil, nil, false, nil
	}

	allCodes, err := allCodesForDeploy(ctx, s.db, envID, seq.Int64)
	if err != nil {
		return 0, nil, nil, false, err
	}
	routes, err = routesForDeploy(ctx, s.db, envID, seq.Int64)
	if err != nil {
		return 0, nil, nil, false, err
	}
	return seq.Int64, allCodes, routes, true, nil
}

// allCodesForDeploy is codesForDeploy without the registry-file filter:
// the startup loader needs every persisted file, not the list_code
// client-facing projection.
func allCodesForDeploy(ctx context.Context, db *sqlx.DB, envID string, deploySeq int64) ([]models.Code, error) {
	rows, err := db.QueryxContext(ctx, database.ConvertPlaceholders(
		`SELECT fs_path, content, size FROM codes WHERE env_id = ? AND deploy_seq = ? ORDER BY ord`),
		envID, deploySeq)
	if err != nil {
		return nil, fmt.Errorf("list all codes for %s/%d: %w", envID, deploySeq, err)
	}
	defer rows.Close()

	var out []models.Code
	for rows.Next() {
		var c models.Code
		if err := rows.Scan(&c.FsPath, &c.Content, &c.Size); err != nil {
			return nil, fmt.Errorf("scan code row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListPlugins returns every registered plugin, the startup loader's
// plugin-registry rebuild source.
func (s *Store) ListPlugins(ctx context.Context) ([]models.Plugin, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT name, owning_env_id, created_at FROM plugins`)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	defer rows.Close()

	var out []models.Plugin
	for rows.Next() {
		var p models.Plugin
		if err := rows.Scan(&p.Name, &p.OwningEnvID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plugin row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
