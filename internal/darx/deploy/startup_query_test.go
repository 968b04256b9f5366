package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goatkit/darxrun/internal/darx/models"
)

func TestListDeployedTenants_ReturnsDistinctEnvIDs(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "env1")
	createTenant(t, s, "env2")
	ctx := context.Background()

	codes := []models.Code{{FsPath: "functions/a.js", Content: "export function a() { return 1; }"}}
	_, err := s.DeployCode(ctx, "env1", codes, nil, nil)
	require.NoError(t, err)
	_, err = s.DeployCode(ctx, "env1", codes, nil, nil)
	require.NoError(t, err)

	tenants, err := s.ListDeployedTenants(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"env1"}, tenants)
}

func TestHeadDeployment_ReturnsLatestSeqWithRegistryCode(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "env1")
	ctx := context.Background()

	codes := []models.Code{{FsPath: "functions/a.js", Content: "export function a() { return 1; }"}}
	_, err := s.DeployCode(ctx, "env1", codes, nil, nil)
	require.NoError(t, err)
	_, err = s.DeployCode(ctx, "env1", codes, nil, nil)
	require.NoError(t, err)

	seq, gotCodes, routes, found, err := s.HeadDeployment(ctx, "env1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(1), seq)
	require.Len(t, routes, 1)

	var sawRegistry bool
	for _, c := range gotCodes {
		if c.FsPath == models.RegistryFileName {
			sawRegistry = true
		}
	}
	require.True(t, sawRegistry)
}

func TestHeadDeployment_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, _, found, err := s.HeadDeployment(context.Background(), "ghost")
	require.NoError(t, err)
	require.False(t, found)
}

func TestListPlugins_ReturnsRegisteredPlugins(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "owner_env")
	ctx := context.Background()

	codes := []models.Code{{FsPath: "functions/create_table.js", Content: "export default function createTable() { return true; }"}}
	_, err := s.DeployPlugin(ctx, "schema", "owner_env", codes, nil, nil)
	require.NoError(t, err)

	plugins, err := s.ListPlugins(ctx)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	require.Equal(t, "schema", plugins[0].Name)
	require.Equal(t, "owner_env", plugins[0].OwningEnvID)
}
