package vars

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/platform/database"
)

// TenantNotFoundError mirrors deploy.TenantNotFoundError for the
// variable-deployment sequence lock, which follows the same
// lock-row-and-advance-sequence protocol as code deployment.
type TenantNotFoundError struct {
	EnvID string
}

func (e *TenantNotFoundError) Error() string {
	return fmt.Sprintf("tenant %q not found", e.EnvID)
}

// DeployVar allocates a var-deployment sequence number on the tenant
// row, reads the tenant's current effective variable set, overlays the
// supplied keys, and writes the merged snapshot as deployment-scoped,
// write-once variables. Returns the resulting effective map.
func (s *Store) DeployVar(ctx context.Context, envID string, supplied map[string]string, desc *string) (map[string]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin var-deploy transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `SELECT next_var_seq FROM tenants WHERE env_id = ?`
	if !database.IsSQLite() {
		selectQuery += ` FOR UPDATE`
	}
	var varSeq int64
	err = tx.QueryRowxContext(ctx, database.ConvertPlaceholders(selectQuery), envID).Scan(&varSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &TenantNotFoundError{EnvID: envID}
	}
	if err != nil {
		return nil, fmt.Errorf("lock tenant %q: %w", envID, err)
	}
	_, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE tenants SET next_var_seq = ? WHERE env_id = ?`), varSeq+1, envID)
	if err != nil {
		return nil, fmt.Errorf("advance next_var_seq for %q: %w", envID, err)
	}

	effective, err := effectiveTenantVarsTx(ctx, tx, envID)
	if err != nil {
		return nil, err
	}
	for k, v := range supplied {
		effective[k] = v
	}

	ownerID := fmt.Sprintf("%s:%d", envID, varSeq)
	for k, v := range effective {
		if err := saveDeploymentVarTx(ctx, tx, ownerID, k, v); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit var deploy: %w", err)
	}
	return effective, nil
}

func effectiveTenantVarsTx(ctx context.Context, tx *sqlx.Tx, envID string) (map[string]string, error) {
	rows, err := tx.QueryxContext(ctx, database.ConvertPlaceholders(
		`SELECT key, value FROM variables WHERE owner_id = ? AND scope = ? AND deleted = 0`),
		envID, string(models.ScopeTenant))
	if err != nil {
		return nil, fmt.Errorf("read effective tenant vars for %q: %w", envID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan tenant var row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// saveDeploymentVarTx inserts one write-once deployment-scoped variable
// row. Unlike saveOne (tenant scope), this never upserts: each
// deployment sequence gets its own immutable snapshot.
func saveDeploymentVarTx(ctx context.Context, tx *sqlx.Tx, ownerID, key, value string) error {
	_, err := tx.ExecContext(ctx, database.ConvertPlaceholders(
		`INSERT INTO variables (scope, owner_id, key, value, deleted, updated_at) VALUES (?, ?, ?, ?, 0, ?)`),
		string(models.ScopeDeployment), ownerID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save deployment var %s/%s: %w", ownerID, key, err)
	}
	return nil
}
