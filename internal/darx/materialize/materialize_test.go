package materialize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goatkit/darxrun/internal/darx/jsruntime"
	"github.com/goatkit/darxrun/internal/darx/models"
)

type fakeRouter struct {
	envID     string
	deploySeq int64
	routes    []models.Route
	calls     int
}

func (f *fakeRouter) Insert(envID string, deploySeq int64, routes []models.Route) {
	f.envID = envID
	f.deploySeq = deploySeq
	f.routes = routes
	f.calls++
}

func TestMaterialize_WritesFilesAndSnapshotLast(t *testing.T) {
	root := t.TempDir()
	router := &fakeRouter{}
	m := New(root, router)

	codes := []models.Code{
		{FsPath: "functions/hello.js", Content: "export default function hello() { return 'hi'; }"},
		{FsPath: "package.json", Content: `{"name":"x"}`},
	}
	routes := []models.Route{{EntryFile: "functions/hello.js", ExportName: "default"}}

	err := m.Materialize(context.Background(), "env1", 3, codes, routes)
	require.NoError(t, err)

	deployDir := m.DeployDir("env1", 3)
	require.Equal(t, filepath.Join(root, "env1", "3"), deployDir)

	helloBytes, err := os.ReadFile(filepath.Join(deployDir, "functions/hello.js"))
	require.NoError(t, err)
	require.Contains(t, string(helloBytes), "export default function hello()")

	snapBytes, err := os.ReadFile(filepath.Join(deployDir, SnapshotFileName))
	require.NoError(t, err)
	bundle, err := jsruntime.Decode(snapBytes)
	require.NoError(t, err)
	require.Contains(t, bundle.Files, "functions/hello.js")
	require.Contains(t, bundle.Files["functions/hello.js"], "exports.default = function hello(")

	require.Equal(t, 1, router.calls)
	require.Equal(t, "env1", router.envID)
	require.Equal(t, int64(3), router.deploySeq)
	require.Equal(t, routes, router.routes)
}

func TestMaterialize_RejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	m := New(root, nil)

	codes := []models.Code{{FsPath: "../../etc/passwd", Content: "x"}}
	err := m.Materialize(context.Background(), "env1", 1, codes, nil)
	require.Error(t, err)
	_, ok := err.(*NotAllowedError)
	require.True(t, ok)
}

func TestMaterialize_NoRouterIsOptional(t *testing.T) {
	root := t.TempDir()
	m := New(root, nil)

	codes := []models.Code{{FsPath: "functions/a.js", Content: "export function a() { return 1; }"}}
	err := m.Materialize(context.Background(), "env2", 1, codes, nil)
	require.NoError(t, err)
}
