package vars

import (
	"context"
	"fmt"

	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/platform/database"
)

// HeadDeploymentVars returns the deployment-scope variable snapshot taken
// by the most recent DeployVar call for envID, or an empty map if no
// variable deployment has happened yet. The data plane's invoke handler
// overlays this on top of EffectiveTenantVars to populate a guest's Dx.env.
func (s *Store) HeadDeploymentVars(ctx context.Context, envID string) (map[string]string, error) {
	var nextSeq int64
	err := s.db.QueryRowxContext(ctx, database.ConvertPlaceholders(
		`SELECT next_var_seq FROM tenants WHERE env_id = ?`), envID).Scan(&nextSeq)
	if err != nil {
		return nil, fmt.Errorf("read next_var_seq for %q: %w", envID, err)
	}
	if nextSeq <= 0 {
		return map[string]string{}, nil
	}

	ownerID := fmt.Sprintf("%s:%d", envID, nextSeq-1)
	list, err := s.Find(ctx, ownerID, models.ScopeDeployment)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list))
	for _, v := range list {
		out[v.Key] = v.Value
	}
	return out, nil
}
