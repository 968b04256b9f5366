// Package deploy implements the deployment persister: transactionally
// allocate a sequence number, insert code blobs, routes, and the
// registry file. Variable bindings are persisted by internal/darx/vars,
// not here.
//
// Grounded on original_source/crates/core/deploy/control.rs::deploy_code
// (transaction shape, ordering of inserts) and
// internal/repository/*_repository.go (sqlx-against-*sql.DB style,
// adapted through internal/platform/database's cross-driver compat
// layer for multi-driver support instead of Postgres-only repositories).
package deploy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goatkit/darxrun/internal/darx/exports"
	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/darx/registry"
	"github.com/goatkit/darxrun/internal/darx/routebuild"
	"github.com/goatkit/darxrun/internal/platform/database"
)

// TenantNotFoundError is returned when the target tenant row doesn't
// exist.
type TenantNotFoundError struct {
	EnvID string
}

func (e *TenantNotFoundError) Error() string {
	return fmt.Sprintf("tenant %q not found", e.EnvID)
}

// ReservedPathError is returned when an incoming Code uses the reserved
// registry file name, which is injected by the registry generator.
type ReservedPathError struct {
	FsPath string
}

func (e *ReservedPathError) Error() string {
	return fmt.Sprintf("fs_path %q is reserved", e.FsPath)
}

// Store persists deployments, plugin registrations, and exposes the
// list_code / list_api read paths.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Result is what a successful deploy_code/deploy_plugin call returns to
// its caller: the allocated sequence number, the codes including the
// injected registry file, and the routes built from them.
type Result struct {
	DeploySeq int64
	Codes     []models.Code
	Routes    []models.Route
}

// DeployCode persists a new code deployment for envID.
func (s *Store) DeployCode(ctx context.Context, envID string, codes []models.Code, tag, desc *string) (*Result, error) {
	for _, c := range codes {
		if c.FsPath == models.RegistryFileName {
			return nil, &ReservedPathError{FsPath: c.FsPath}
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	deploySeq, err := lockAndAdvanceSeq(ctx, tx, envID)
	if err != nil {
		return nil, err
	}

	var routes []models.Route
	for _, c := range codes {
		if !hasFunctionsPrefix(c.FsPath) {
			continue
		}
		sigs, err := exports.Parse(c.FsPath, c.Content)
		if err != nil {
			return nil, err
		}
		for _, sig := range sigs {
			path, err := routebuild.Build(c.FsPath, sig.ExportName)
			if err != nil {
				return nil, err
			}
			routes = append(routes, models.Route{
				HTTPPath:   path,
				Method:     "POST",
				EntryFile:  c.FsPath,
				ExportName: sig.ExportName,
				Signature: models.Signature{
					Version:    1,
					ExportName: sig.ExportName,
					ParamNames: sig.ParamNames,
				},
			})
		}
	}

	deployID := newNanoID()
	now := time.Now().UTC()
	var tagVal, descVal interface{}
	if tag != nil {
		tagVal = *tag
	}
	if desc != nil {
		descVal = *desc
	}
	_, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
		`INSERT INTO deploys (deploy_id, env_id, deploy_seq, tag, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		deployID, envID, deploySeq, tagVal, descVal, now)
	if err != nil {
		return nil, fmt.Errorf("insert deploy: %w", err)
	}

	finalCodes := make([]models.Code, 0, len(codes)+1)
	for i, c := range codes {
		if err := insertCode(ctx, tx, envID, deploySeq, c, i); err != nil {
			return nil, err
		}
		finalCodes = append(finalCodes, c)
	}

	registrySrc, err := registry.Generate(routes)
	if err != nil {
		return nil, fmt.Errorf("generate registry: %w", err)
	}
	registryCode := models.Code{FsPath: models.RegistryFileName, Content: registrySrc, Size: len(registrySrc)}
	if err := insertCode(ctx, tx, envID, deploySeq, registryCode, len(codes)); err != nil {
		return nil, err
	}
	finalCodes = append(finalCodes, registryCode)

	for _, r := range routes {
		if err := insertRoute(ctx, tx, envID, deploySeq, r); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deploy: %w", err)
	}

	return &Result{DeploySeq: deploySeq, Codes: finalCodes, Routes: routes}, nil
}

// DeployPlugin registers (or reuses) the plugin's owning tenant and then
// deploys code into it, following original_source's deploy_plugin.
func (s *Store) DeployPlugin(ctx context.Context, pluginName, owningEnvID string, codes []models.Code, tag, desc *string) (*Result, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	var existingEnvID string
	row := tx.QueryRowxContext(ctx, database.ConvertPlaceholders(
		`SELECT owning_env_id FROM plugins WHERE name = ?`), pluginName)
	err = row.Scan(&existingEnvID)
	switch {
	case err == nil:
		owningEnvID = existingEnvID
	case errors.Is(err, sql.ErrNoRows):
		if err := ensureTenantLocked(ctx, tx, owningEnvID); err != nil {
			tx.Rollback()
			return nil, err
		}
		_, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
			`INSERT INTO plugins (name, owning_env_id, created_at) VALUES (?, ?, ?)`),
			pluginName, owningEnvID, time.Now().UTC())
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("insert plugin: %w", err)
		}
	default:
		tx.Rollback()
		return nil, fmt.Errorf("lookup plugin %q: %w", pluginName, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit plugin registration: %w", err)
	}

	return s.DeployCode(ctx, owningEnvID, codes, tag, desc)
}

// ListCode returns the current deployment's codes (minus the synthesized
// registry file) and routes, per the /list_code HTTP surface.
func (s *Store) ListCode(ctx context.Context, envID string) ([]models.Code, []models.Route, error) {
	var deploySeq sql.NullInt64
	err := s.db.QueryRowxContext(ctx, database.ConvertPlaceholders(
		`SELECT MAX(deploy_seq) FROM deploys WHERE env_id = ?`), envID).Scan(&deploySeq)
	if err != nil {
		return nil, nil, fmt.Errorf("find head deploy for %q: %w", envID, err)
	}
	if !deploySeq.Valid {
		return nil, nil, nil
	}

	codes, err := codesForDeploy(ctx, s.db, envID, deploySeq.Int64)
	if err != nil {
		return nil, nil, err
	}
	routes, err := routesForDeploy(ctx, s.db, envID, deploySeq.Int64)
	if err != nil {
		return nil, nil, err
	}
	return codes, routes, nil
}

// ListAPI returns a tenant's own routes plus every plugin's routes,
// each re-prefixed "_plugins/<name>/<http_path>".
func (s *Store) ListAPI(ctx context.Context, envID string) ([]models.Route, error) {
	_, routes, err := s.ListCode(ctx, envID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT name, owning_env_id FROM plugins`)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	defer rows.Close()

	type pluginRow struct {
		Name        string `db:"name"`
		OwningEnvID string `db:"owning_env_id"`
	}
	var pluginRows []pluginRow
	for rows.Next() {
		var p pluginRow
		if err := rows.Scan(&p.Name, &p.OwningEnvID); err != nil {
			return nil, fmt.Errorf("scan plugin row: %w", err)
		}
		pluginRows = append(pluginRows, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	rows.Close()

	for _, p := range pluginRows {
		_, pluginRoutes, err := s.ListCode(ctx, p.OwningEnvID)
		if err != nil {
			return nil, err
		}
		for _, r := range pluginRoutes {
			r.HTTPPath = models.PluginRoutePrefix + p.Name + "/" + r.HTTPPath
			routes = append(routes, r)
		}
	}
	return routes, nil
}

func hasFunctionsPrefix(fsPath string) bool {
	return len(fsPath) >= len(models.FunctionsPrefix) && fsPath[:len(models.FunctionsPrefix)] == models.FunctionsPrefix
}

// lockAndAdvanceSeq locks the tenant row, assigns the current
// next_deploy_seq, and advances it: assign-then-increment, so the
// caller's deploy_seq is the value the row held before this call.
func lockAndAdvanceSeq(ctx context.Context, tx *sqlx.Tx, envID string) (int64, error) {
	selectQuery := `SELECT next_deploy_seq FROM tenants WHERE env_id = ?`
	if !database.IsSQLite() {
		selectQuery += ` FOR UPDATE`
	}
	var seq int64
	err := tx.QueryRowxContext(ctx, database.ConvertPlaceholders(selectQuery), envID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &TenantNotFoundError{EnvID: envID}
	}
	if err != nil {
		return 0, fmt.Errorf("lock tenant %q: %w", envID, err)
	}
	_, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE tenants SET next_deploy_seq = ? WHERE env_id = ?`), seq+1, envID)
	if err != nil {
		return 0, fmt.Errorf("advance next_deploy_seq for %q: %w", envID, err)
	}
	return seq, nil
}

// ensureTenantLocked creates the tenant row for a plugin's owning env if
// it doesn't already exist — the plugin-deploy path is the one place
// where a tenant is created from inside the core rather than by
// external provisioning, matching plugin.rs's deploy_system_plugins
// exception to tenants otherwise being created externally.
func ensureTenantLocked(ctx context.Context, tx *sqlx.Tx, envID string) error {
	var exists int
	err := tx.QueryRowxContext(ctx, database.ConvertPlaceholders(
		`SELECT 1 FROM tenants WHERE env_id = ?`), envID).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check tenant %q: %w", envID, err)
	}
	_, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
		`INSERT INTO tenants (env_id, next_deploy_seq, next_var_seq, created_at) VALUES (?, 0, 0, ?)`),
		envID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create tenant %q: %w", envID, err)
	}
	return nil
}

func insertCode(ctx context.Context, tx *sqlx.Tx, envID string, deploySeq int64, c models.Code, ord int) error {
	_, err := tx.ExecContext(ctx, database.ConvertPlaceholders(
		`INSERT INTO codes (env_id, deploy_seq, fs_path, content, size, ord) VALUES (?, ?, ?, ?, ?, ?)`),
		envID, deploySeq, c.FsPath, c.Content, len(c.Content), ord)
	if err != nil {
		return fmt.Errorf("insert code %q: %w", c.FsPath, err)
	}
	return nil
}

func insertRoute(ctx context.Context, tx *sqlx.Tx, envID string, deploySeq int64, r models.Route) error {
	sigJSON, err := marshalSignature(r.Signature)
	if err != nil {
		return fmt.Errorf("marshal signature for %q: %w", r.HTTPPath, err)
	}
	_, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
		`INSERT INTO http_routes (env_id, deploy_seq, http_path, method, entry_file, export_name, signature_json) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		envID, deploySeq, r.HTTPPath, r.Method, r.EntryFile, r.ExportName, sigJSON)
	if err != nil {
		return fmt.Errorf("insert route %q: %w", r.HTTPPath, err)
	}
	return nil
}

func codesForDeploy(ctx context.Context, db *sqlx.DB, envID string, deploySeq int64) ([]models.Code, error) {
	rows, err := db.QueryxContext(ctx, database.ConvertPlaceholders(
		`SELECT fs_path, content, size FROM codes WHERE env_id = ? AND deploy_seq = ? AND fs_path != ? ORDER BY ord`),
		envID, deploySeq, models.RegistryFileName)
	if err != nil {
		return nil, fmt.Errorf("list codes for %s/%d: %w", envID, deploySeq, err)
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

func routesForDeploy(ctx context.Context, db *sqlx.DB, envID string, deploySeq int64) ([]models.Route, error) {
	rows, err := db.QueryxContext(ctx, database.ConvertPlaceholders(
		`SELECT http_path, method, entry_file, export_name, signature_json FROM http_routes WHERE env_id = ? AND deploy_seq = ?`),
		envID, deploySeq)
	if err != nil {
		return nil, fmt.Errorf("list routes for %s/%d: %w", envID, deploySeq, err)
	}
	defer rows.Close()

	var out []models.Route
	for rows.Next() {
		var r models.Route
		var sigJSON string
		if err := rows.Scan(&r.HTTPPath, &r.Method, &r.EntryFile, &r.ExportName, &sigJSON); err != nil {
			return nil, fmt.Errorf("scan route row: %w", err)
		}
		sig, err := unmarshalSignature(sigJSON)
		if err != nil {
			return nil, fmt.Errorf("unmarshal signature for %q: %w", r.HTTPPath, err)
		}
		r.Signature = sig
		out = append(out, r)
	}
	return out, rows.Err()
}
