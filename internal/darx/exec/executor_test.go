package exec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goatkit/darxrun/internal/darx/jsruntime"
	"github.com/goatkit/darxrun/internal/darx/materialize"
	"github.com/goatkit/darxrun/internal/darx/models"
)

func writeBundle(t *testing.T, deployDir string, codes []models.Code, routes []models.Route) {
	t.Helper()
	require.NoError(t, os.MkdirAll(deployDir, 0o755))
	bundle, err := jsruntime.Build(codes, routes)
	require.NoError(t, err)
	data, err := jsruntime.Encode(bundle)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(deployDir, materialize.SnapshotFileName), data, 0o644))
}

func TestInvoke_ReturnsSynchronousValue(t *testing.T) {
	deployDir := filepath.Join(t.TempDir(), "env1", "1")
	codes := []models.Code{
		{FsPath: "functions/add.js", Content: "export function add(a, b) { return a + b; }"},
	}
	routes := []models.Route{
		{EntryFile: "functions/add.js", ExportName: "add", Method: "POST",
			Signature: models.Signature{ExportName: "add", ParamNames: []string{"a", "b"}}},
	}
	writeBundle(t, deployDir, codes, routes)

	e := New()
	out, err := e.Invoke(context.Background(), Invocation{
		DeployDir:   deployDir,
		Route:       routes[0],
		RequestBody: map[string]json.RawMessage{"a": json.RawMessage("2"), "b": json.RawMessage("3")},
	})
	require.NoError(t, err)
	require.JSONEq(t, "5", string(out))
}

// TestInvoke_MissingParamCoercesToStringNull mirrors spec.md's worked
// sum() scenario: deploying sum(a, b) and invoking with only "a" set
// must yield "2null" (JS string coercion of 2 + "null"), not "2" (which
// 2 + null, the bare keyword, would numerically coerce to).
func TestInvoke_MissingParamCoercesToStringNull(t *testing.T) {
	deployDir := filepath.Join(t.TempDir(), "env1", "1")
	codes := []models.Code{
		{FsPath: "functions/sum.js", Content: "export default function(a, b) { return a + b; }"},
	}
	routes := []models.Route{
		{EntryFile: "functions/sum.js", ExportName: "default", Method: "POST",
			Signature: models.Signature{ExportName: "default", ParamNames: []string{"a", "b"}}},
	}
	writeBundle(t, deployDir, codes, routes)

	e := New()
	out, err := e.Invoke(context.Background(), Invocation{
		DeployDir:   deployDir,
		Route:       routes[0],
		RequestBody: map[string]json.RawMessage{"a": json.RawMessage("2")},
	})
	require.NoError(t, err)
	require.JSONEq(t, `"2null"`, string(out))
}

func TestInvoke_ResolvesPromise(t *testing.T) {
	deployDir := filepath.Join(t.TempDir(), "env1", "1")
	codes := []models.Code{
		{FsPath: "functions/hello.js", Content: "export default function hello() { return Promise.resolve({ ok: true }); }"},
	}
	routes := []models.Route{{EntryFile: "functions/hello.js", ExportName: "default", Method: "POST"}}
	writeBundle(t, deployDir, codes, routes)

	e := New()
	out, err := e.Invoke(context.Background(), Invocation{
		DeployDir:   deployDir,
		Route:       routes[0],
		RequestBody: map[string]json.RawMessage{},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(out))
}

func TestInvoke_RuntimeErrorOnThrow(t *testing.T) {
	deployDir := filepath.Join(t.TempDir(), "env1", "1")
	codes := []models.Code{
		{FsPath: "functions/boom.js", Content: "export default function boom() { throw new Error('kaboom'); }"},
	}
	routes := []models.Route{{EntryFile: "functions/boom.js", ExportName: "default", Method: "POST"}}
	writeBundle(t, deployDir, codes, routes)

	e := New()
	_, err := e.Invoke(context.Background(), Invocation{DeployDir: deployDir, Route: routes[0]})
	require.Error(t, err)
	_, ok := err.(*RuntimeError)
	require.True(t, ok)
}

func TestInvoke_TimesOut(t *testing.T) {
	deployDir := filepath.Join(t.TempDir(), "env1", "1")
	codes := []models.Code{
		{FsPath: "functions/spin.js", Content: "export default function spin() { while (true) {} }"},
	}
	routes := []models.Route{{EntryFile: "functions/spin.js", ExportName: "default", Method: "POST"}}
	writeBundle(t, deployDir, codes, routes)

	e := New()
	_, err := e.Invoke(context.Background(), Invocation{
		DeployDir: deployDir,
		Route:     routes[0],
		Timeout:   50 * time.Millisecond,
	})
	require.Error(t, err)
	_, ok := err.(*TimeoutError)
	require.True(t, ok)
}

func TestInvoke_DeployNotFound(t *testing.T) {
	e := New()
	_, err := e.Invoke(context.Background(), Invocation{DeployDir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	_, ok := err.(*DeployNotFoundError)
	require.True(t, ok)
}
