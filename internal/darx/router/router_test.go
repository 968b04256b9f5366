package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goatkit/darxrun/internal/darx/models"
)

type fakeResolver struct {
	byName map[string]string
}

func (f *fakeResolver) Resolve(name string) (string, bool) {
	envID, ok := f.byName[name]
	return envID, ok
}

func TestMatchRoute_DirectHit(t *testing.T) {
	r := New(&fakeResolver{})
	r.Insert("env1", 1, []models.Route{{HTTPPath: "hello", Method: "POST", EntryFile: "functions/hello.js", ExportName: "default"}})

	got, ok := r.MatchRoute("env1", "hello", "POST")
	require.True(t, ok)
	require.Equal(t, "env1", got.EffectiveEnvID)
	require.Equal(t, int64(1), got.DeploySeq)
	require.Equal(t, "functions/hello.js", got.Route.EntryFile)
}

func TestMatchRoute_WrongMethodMisses(t *testing.T) {
	r := New(&fakeResolver{})
	r.Insert("env1", 1, []models.Route{{HTTPPath: "hello", Method: "POST"}})

	_, ok := r.MatchRoute("env1", "hello", "GET")
	require.False(t, ok)
}

func TestMatchRoute_HeadAlwaysWins(t *testing.T) {
	r := New(&fakeResolver{})
	r.Insert("env1", 1, []models.Route{{HTTPPath: "hello", Method: "POST", ExportName: "v1"}})
	r.Insert("env1", 2, []models.Route{{HTTPPath: "hello", Method: "POST", ExportName: "v2"}})

	got, ok := r.MatchRoute("env1", "hello", "POST")
	require.True(t, ok)
	require.Equal(t, int64(2), got.DeploySeq)
	require.Equal(t, "v2", got.Route.ExportName)
}

func TestMatchRoute_PluginIndirection(t *testing.T) {
	resolver := &fakeResolver{byName: map[string]string{"schema": "owner_env"}}
	r := New(resolver)
	r.Insert("owner_env", 1, []models.Route{{HTTPPath: "create_table", Method: "POST", ExportName: "default"}})

	got, ok := r.MatchRoute("caller_env", "_plugins/schema/create_table", "POST")
	require.True(t, ok)
	require.Equal(t, "owner_env", got.EffectiveEnvID)
}

func TestMatchRoute_PluginTrailingSlashIsEmptyRest(t *testing.T) {
	resolver := &fakeResolver{byName: map[string]string{"schema": "owner_env"}}
	r := New(resolver)
	r.Insert("owner_env", 1, []models.Route{{HTTPPath: "", Method: "POST", ExportName: "index"}})

	got, ok := r.MatchRoute("caller_env", "_plugins/schema/", "POST")
	require.True(t, ok)
	require.Equal(t, "index", got.Route.ExportName)
}

func TestMatchRoute_PluginAloneOrNameAloneIsInvalid(t *testing.T) {
	resolver := &fakeResolver{byName: map[string]string{"schema": "owner_env"}}
	r := New(resolver)

	_, ok := r.MatchRoute("caller_env", "_plugins", "POST")
	require.False(t, ok)

	_, ok = r.MatchRoute("caller_env", "_plugins/schema", "POST")
	require.False(t, ok)
}

func TestMatchRoute_UnknownPluginNameMisses(t *testing.T) {
	r := New(&fakeResolver{})
	_, ok := r.MatchRoute("caller_env", "_plugins/ghost/x", "POST")
	require.False(t, ok)
}

func TestMatchRoute_UnknownTenantMisses(t *testing.T) {
	r := New(&fakeResolver{})
	_, ok := r.MatchRoute("nobody", "hello", "POST")
	require.False(t, ok)
}
