package deploy

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/platform/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitSchema(db.DB))
	return New(db)
}

func createTenant(t *testing.T, s *Store, envID string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO tenants (env_id, next_deploy_seq, next_var_seq, created_at) VALUES (?, 0, 0, CURRENT_TIMESTAMP)`, envID)
	require.NoError(t, err)
}

func TestDeployCode_SequenceAssignsThenIncrements(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "env1")
	ctx := context.Background()

	codes := []models.Code{{FsPath: "functions/hello.js", Content: "export default function hello() { return 'hi'; }"}}

	r1, err := s.DeployCode(ctx, "env1", codes, nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), r1.DeploySeq)

	r2, err := s.DeployCode(ctx, "env1", codes, nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), r2.DeploySeq)
}

func TestDeployCode_TenantNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DeployCode(context.Background(), "missing", nil, nil, nil)
	require.Error(t, err)
	_, ok := err.(*TenantNotFoundError)
	require.True(t, ok)
}

func TestDeployCode_BuildsRouteAndRegistry(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "env1")
	codes := []models.Code{{FsPath: "functions/hello.js", Content: "export default function hello() { return 'hi'; }"}}

	r, err := s.DeployCode(context.Background(), "env1", codes, nil, nil)
	require.NoError(t, err)
	require.Len(t, r.Routes, 1)
	require.Equal(t, "functions/hello", r.Routes[0].HTTPPath)
	require.Equal(t, "POST", r.Routes[0].Method)

	var sawRegistry bool
	for _, c := range r.Codes {
		if c.FsPath == models.RegistryFileName {
			sawRegistry = true
		}
	}
	require.True(t, sawRegistry, "expected synthesized registry file among persisted codes")
}

func TestDeployCode_RejectsReservedRegistryPath(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "env1")
	codes := []models.Code{{FsPath: models.RegistryFileName, Content: "whatever"}}

	_, err := s.DeployCode(context.Background(), "env1", codes, nil, nil)
	require.Error(t, err)
	_, ok := err.(*ReservedPathError)
	require.True(t, ok)
}

func TestDeployCode_IgnoresNonFunctionsFiles(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "env1")
	codes := []models.Code{
		{FsPath: "README.md", Content: "# hi"},
		{FsPath: "functions/hello.js", Content: "export default function hello() { return 'hi'; }"},
	}

	r, err := s.DeployCode(context.Background(), "env1", codes, nil, nil)
	require.NoError(t, err)
	require.Len(t, r.Routes, 1)
}

func TestListCode_ReturnsHeadDeploymentWithoutRegistry(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "env1")
	codes := []models.Code{{FsPath: "functions/hello.js", Content: "export default function hello() { return 'hi'; }"}}
	_, err := s.DeployCode(context.Background(), "env1", codes, nil, nil)
	require.NoError(t, err)

	listed, routes, err := s.ListCode(context.Background(), "env1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "functions/hello.js", listed[0].FsPath)
	require.Len(t, routes, 1)
}

func TestDeployPlugin_RegistersPluginAndRoutesUnderPrefix(t *testing.T) {
	s := newTestStore(t)
	createTenant(t, s, "tenantA")
	codes := []models.Code{{FsPath: "functions/create.js", Content: "export default function create() { return 1; }"}}

	_, err := s.DeployPlugin(context.Background(), "schema", "pluginEnv", codes, nil, nil)
	require.NoError(t, err)

	apiRoutes, err := s.ListAPI(context.Background(), "tenantA")
	require.NoError(t, err)

	var found bool
	for _, r := range apiRoutes {
		if r.HTTPPath == "_plugins/schema/functions/create" {
			found = true
		}
	}
	require.True(t, found, "expected plugin route reprefixed under _plugins/schema/")
}

func TestDeployPlugin_ReusesExistingPluginTenant(t *testing.T) {
	s := newTestStore(t)
	codes := []models.Code{{FsPath: "functions/create.js", Content: "export default function create() { return 1; }"}}

	r1, err := s.DeployPlugin(context.Background(), "schema", "pluginEnv1", codes, nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), r1.DeploySeq)

	r2, err := s.DeployPlugin(context.Background(), "schema", "pluginEnv2ShouldBeIgnored", codes, nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), r2.DeploySeq, "second deploy should land in the original owning tenant's sequence, not a new one")
}
