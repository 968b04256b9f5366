// Package startup rebuilds every process-local derived structure
// (plugin registry, router, materialized deployment directories) on
// data-plane boot by replaying the persisted store — derived state is
// never itself durable, only recoverable by replay.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goatkit/darxrun/internal/darx/jsruntime"
	"github.com/goatkit/darxrun/internal/darx/materialize"
	"github.com/goatkit/darxrun/internal/darx/models"
)

// DeployLister is the subset of deploy.Store the loader reads from.
type DeployLister interface {
	ListPlugins(ctx context.Context) ([]models.Plugin, error)
	ListDeployedTenants(ctx context.Context) ([]string, error)
	HeadDeployment(ctx context.Context, envID string) (deploySeq int64, codes []models.Code, routes []models.Route, found bool, err error)
}

// PluginRegistrar is satisfied by plugins.Registry.
type PluginRegistrar interface {
	Register(pluginName, owningEnvID string)
}

// RouteInserter is satisfied by router.Router.
type RouteInserter interface {
	Insert(envID string, deploySeq int64, routes []models.Route)
}

// Materializer is the subset of materialize.Materializer the loader uses.
type Materializer interface {
	DeployDir(envID string, deploySeq int64) string
	Materialize(ctx context.Context, envID string, deploySeq int64, codes []models.Code, routes []models.Route) error
}

// Loader wires a store read path to the process-local router, plugin
// registry, and on-disk materializer.
type Loader struct {
	Deploys      DeployLister
	Materializer Materializer
	Router       RouteInserter
	Plugins      PluginRegistrar
	Log          *slog.Logger
}

// Stats summarizes one Run for startup logging.
type Stats struct {
	PluginsLoaded int
	Tenants       int
	Materialized  int
	Skipped       int
}

// Run populates the plugin registry, then for each tenant's head
// deployment, rebuilds the router and either skips rematerializing
// (content unchanged since last boot) or materializes from scratch.
func (l *Loader) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	pluginRows, err := l.Deploys.ListPlugins(ctx)
	if err != nil {
		return stats, fmt.Errorf("load plugins: %w", err)
	}
	for _, p := range pluginRows {
		l.Plugins.Register(p.Name, p.OwningEnvID)
	}
	stats.PluginsLoaded = len(pluginRows)

	tenants, err := l.Deploys.ListDeployedTenants(ctx)
	if err != nil {
		return stats, fmt.Errorf("list deployed tenants: %w", err)
	}
	stats.Tenants = len(tenants)

	for _, envID := range tenants {
		seq, codes, routes, found, err := l.Deploys.HeadDeployment(ctx, envID)
		if err != nil {
			return stats, fmt.Errorf("load head deployment for %q: %w", envID, err)
		}
		if !found {
			continue
		}

		skip, err := l.alreadyMaterialized(envID, seq, codes, routes)
		if err != nil {
			return stats, err
		}
		l.Router.Insert(envID, seq, routes)

		if skip {
			stats.Skipped++
			if l.Log != nil {
				l.Log.Info("skipping unchanged deployment", "env_id", envID, "deploy_seq", seq)
			}
			continue
		}
		if err := l.Materializer.Materialize(ctx, envID, seq, codes, routes); err != nil {
			return stats, fmt.Errorf("materialize %s/%d: %w", envID, seq, err)
		}
		stats.Materialized++
	}

	return stats, nil
}

// alreadyMaterialized compares the content hash of a freshly-built
// bundle against any existing SNAPSHOT.bin on disk, letting Run skip
// the write for deployments that survived a restart untouched.
func (l *Loader) alreadyMaterialized(envID string, deploySeq int64, codes []models.Code, routes []models.Route) (bool, error) {
	fresh, err := jsruntime.Build(codes, routes)
	if err != nil {
		return false, fmt.Errorf("build bundle for %s/%d: %w", envID, deploySeq, err)
	}

	deployDir := l.Materializer.DeployDir(envID, deploySeq)
	existing, err := os.ReadFile(filepath.Join(deployDir, materialize.SnapshotFileName))
	if err != nil {
		return false, nil
	}
	existingBundle, err := jsruntime.Decode(existing)
	if err != nil {
		return false, nil
	}
	return existingBundle.ContentHash == fresh.ContentHash, nil
}
