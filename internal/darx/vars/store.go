// Package vars implements the variable store: persistent tenant- and
// deployment-scoped key/value bindings, surfaced to guest code by the
// executor as a read-only object.
//
// Follows the sqlx-against-a-*sql.DB persistence style used throughout
// this codebase, with queries run through internal/platform/database's
// cross-driver placeholder conversion, since there is no single file
// elsewhere with a direct analogue to a tenant key/value store.
package vars

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/platform/database"
)

// DeploymentScopeDeleteError is returned when a caller asks to delete a
// deployment-scoped variable: deployment-scope records are a
// write-once historical snapshot and can never be deleted, only
// superseded by a later deployment.
type DeploymentScopeDeleteError struct {
	OwnerID string
}

func (e *DeploymentScopeDeleteError) Error() string {
	return fmt.Sprintf("deployment-scoped variables for %q cannot be deleted", e.OwnerID)
}

// Store is the persistent variable table
// (variables(scope, owner_id, key, value, deleted, updated_at)).
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Find returns every non-deleted variable at the given scope for
// ownerID (an env_id for tenant scope, a deploy/var sequence owner id
// for deployment scope), ordered by key.
func (s *Store) Find(ctx context.Context, ownerID string, scope models.VarScope) ([]models.Variable, error) {
	query := database.ConvertPlaceholders(`
		SELECT scope, owner_id, key, value, deleted, updated_at
		FROM variables
		WHERE owner_id = ? AND scope = ? AND deleted = 0
		ORDER BY key`)
	rows, err := s.db.QueryxContext(ctx, query, ownerID, string(scope))
	if err != nil {
		return nil, fmt.Errorf("find variables for %q/%s: %w", ownerID, scope, err)
	}
	defer rows.Close()

	var out []models.Variable
	for rows.Next() {
		var v models.Variable
		if err := rows.Scan(&v.Scope, &v.OwnerID, &v.Key, &v.Value, &v.Deleted, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variable row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// EffectiveTenantVars returns the tenant's currently active (non-deleted)
// variables as a plain map, the shape deploy_var overlays supplied keys
// onto and the executor exposes to guest code.
func (s *Store) EffectiveTenantVars(ctx context.Context, envID string) (map[string]string, error) {
	list, err := s.Find(ctx, envID, models.ScopeTenant)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list))
	for _, v := range list {
		out[v.Key] = v.Value
	}
	return out, nil
}

// Save upserts each variable (scope, owner_id, key) row, un-deleting it
// if it was previously soft-deleted.
func (s *Store) Save(ctx context.Context, varsList []models.Variable) error {
	for _, v := range varsList {
		if err := s.saveOne(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveOne(ctx context.Context, v models.Variable) error {
	now := time.Now().UTC()
	if database.IsSQLite() || database.IsMySQL() {
		query := database.ConvertPlaceholders(`
			INSERT INTO variables (scope, owner_id, key, value, deleted, updated_at)
			VALUES (?, ?, ?, ?, 0, ?)
			ON CONFLICT(scope, owner_id, key) DO UPDATE SET value = excluded.value, deleted = 0, updated_at = excluded.updated_at`)
		if database.IsMySQL() {
			query = `
			INSERT INTO variables (scope, owner_id, key, value, deleted, updated_at)
			VALUES (?, ?, ?, ?, 0, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), deleted = 0, updated_at = VALUES(updated_at)`
		}
		_, err := s.db.ExecContext(ctx, query, string(v.Scope), v.OwnerID, v.Key, v.Value, now)
		if err != nil {
			return fmt.Errorf("save variable %s/%s/%s: %w", v.Scope, v.OwnerID, v.Key, err)
		}
		return nil
	}

	// Postgres.
	query := database.ConvertPlaceholders(`
		INSERT INTO variables (scope, owner_id, key, value, deleted, updated_at)
		VALUES (?, ?, ?, ?, false, ?)
		ON CONFLICT (scope, owner_id, key) DO UPDATE SET value = EXCLUDED.value, deleted = false, updated_at = EXCLUDED.updated_at`)
	_, err := s.db.ExecContext(ctx, query, string(v.Scope), v.OwnerID, v.Key, v.Value, now)
	if err != nil {
		return fmt.Errorf("save variable %s/%s/%s: %w", v.Scope, v.OwnerID, v.Key, err)
	}
	return nil
}

// Delete soft-deletes every tenant-scope variable owned by envID.
// It takes no scope and never touches deployment-scope rows; refusing an
// explicit deployment-scope delete is RejectDeploymentDelete's job.
func (s *Store) Delete(ctx context.Context, envID string) error {
	query := database.ConvertPlaceholders(`
		UPDATE variables SET deleted = 1, updated_at = ?
		WHERE owner_id = ? AND scope = ?`)
	if database.IsPostgreSQL() {
		query = database.ConvertPlaceholders(`
			UPDATE variables SET deleted = true, updated_at = ?
			WHERE owner_id = ? AND scope = ?`)
	}
	_, err := s.db.ExecContext(ctx, query, time.Now().UTC(), envID, string(models.ScopeTenant))
	if err != nil {
		return fmt.Errorf("soft-delete tenant variables for %q: %w", envID, err)
	}
	return nil
}

// RejectDeploymentDelete returns a *DeploymentScopeDeleteError when
// scope is deployment scope and nil otherwise, so a delete request that
// names deployment scope can be refused before Delete is reached. No
// HTTP handler in this repository calls it.
func RejectDeploymentDelete(ownerID string, scope models.VarScope) error {
	if scope == models.ScopeDeployment {
		return &DeploymentScopeDeleteError{OwnerID: ownerID}
	}
	return nil
}
