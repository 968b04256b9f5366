// Package materialize writes a deployment's files into its canonical
// on-disk directory and prepares the execution artifact — a
// precompiled bundle standing in for a V8-style heap snapshot — that
// cold invocations load instead of re-scanning source.
//
// Grounded on original_source/crates/data_plane/deployment.rs
// (setup_bundle_deployment_dir / add_single_bundle_file / add_snapshot):
// same directory layout, same "write snapshot last" ordering invariant.
package materialize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goatkit/darxrun/internal/darx/jsruntime"
	"github.com/goatkit/darxrun/internal/darx/models"
)

// SnapshotFileName is the reserved file the bundle is written to.
const SnapshotFileName = "SNAPSHOT.bin"

// NotAllowedError is returned when a Code's fs_path would resolve
// outside the deployment directory — the module-loader sandboxing
// invariant applied as early as possible, at write time.
type NotAllowedError struct {
	FsPath string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("fs_path %q escapes the deployment directory", e.FsPath)
}

// RouteInserter is satisfied by the router; Materialize calls it after
// the snapshot is durably written, so a reader never observes routes
// for a deployment whose bundle isn't there yet. Declared here rather
// than imported from the router package to avoid a
// materialize<->router import cycle — router.Router implements this
// interface structurally.
type RouteInserter interface {
	Insert(envID string, deploySeq int64, routes []models.Route)
}

// Materializer writes deployments under EnvsRoot and, if Router is set,
// publishes their routes once materialization succeeds.
type Materializer struct {
	EnvsRoot string
	Router   RouteInserter
}

func New(envsRoot string, router RouteInserter) *Materializer {
	return &Materializer{EnvsRoot: envsRoot, Router: router}
}

// DeployDir returns the canonical directory for one deployment:
// <envs_root>/<env_id>/<deploy_seq>.
func (m *Materializer) DeployDir(envID string, deploySeq int64) string {
	return filepath.Join(m.EnvsRoot, envID, strconv.FormatInt(deploySeq, 10))
}

// Materialize writes a deployment's files and bundle to disk, then
// publishes its routes once the bundle is durably written.
func (m *Materializer) Materialize(ctx context.Context, envID string, deploySeq int64, codes []models.Code, routes []models.Route) error {
	deployDir := m.DeployDir(envID, deploySeq)
	if err := os.MkdirAll(deployDir, 0o755); err != nil {
		return fmt.Errorf("create deploy dir %s: %w", deployDir, err)
	}

	for _, c := range codes {
		if c.FsPath == SnapshotFileName {
			continue
		}
		if err := writeConfined(deployDir, c); err != nil {
			return err
		}
	}

	bundle, err := jsruntime.Build(codes, routes)
	if err != nil {
		return fmt.Errorf("build bundle for %s/%d: %w", envID, deploySeq, err)
	}
	data, err := jsruntime.Encode(bundle)
	if err != nil {
		return fmt.Errorf("encode bundle for %s/%d: %w", envID, deploySeq, err)
	}

	// Snapshot is written last: a reader that observes SNAPSHOT.bin must
	// also observe every file it references.
	snapshotPath := filepath.Join(deployDir, SnapshotFileName)
	if err := os.WriteFile(snapshotPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snapshotPath, err)
	}

	if m.Router != nil {
		m.Router.Insert(envID, deploySeq, routes)
	}
	return nil
}

// writeConfined writes one Code file under deployDir, rejecting any
// fs_path that normalizes outside of it.
func writeConfined(deployDir string, c models.Code) error {
	cleaned := filepath.Clean(c.FsPath)
	target := filepath.Join(deployDir, cleaned)
	rel, err := filepath.Rel(deployDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(cleaned) {
		return &NotAllowedError{FsPath: c.FsPath}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", c.FsPath, err)
	}
	if err := os.WriteFile(target, []byte(c.Content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.FsPath, err)
	}
	return nil
}
