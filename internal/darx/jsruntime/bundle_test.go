package jsruntime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goatkit/darxrun/internal/darx/models"
)

func TestBuild_TransformsDefaultExportToCommonJS(t *testing.T) {
	codes := []models.Code{
		{FsPath: "functions/hello.js", Content: "export default function hello() { return 'hi'; }"},
	}
	routes := []models.Route{
		{EntryFile: "functions/hello.js", ExportName: "default"},
	}

	b, err := Build(codes, routes)
	require.NoError(t, err)
	require.Contains(t, b.Files, "functions/hello.js")
	require.Contains(t, b.Files["functions/hello.js"], "exports.default = function hello(")
	require.Contains(t, b.RegistryScript, `require("functions/hello.js").default`)
	require.NotEmpty(t, b.ContentHash)
}

func TestBuild_SkipsNonRoutableAndRegistryFiles(t *testing.T) {
	codes := []models.Code{
		{FsPath: "README.md", Content: "# hi"},
		{FsPath: models.RegistryFileName, Content: "globalThis.x = 1;"},
		{FsPath: "functions/a.js", Content: "export function a(x) { return x; }"},
	}
	b, err := Build(codes, nil)
	require.NoError(t, err)
	require.Len(t, b.Files, 1)
	require.Contains(t, b.Files, "functions/a.js")
}

func TestEncodeDecode_RoundTrips(t *testing.T) {
	codes := []models.Code{{FsPath: "functions/a.js", Content: "export function a() { return 1; }"}}
	routes := []models.Route{{EntryFile: "functions/a.js", ExportName: "a"}}
	b, err := Build(codes, routes)
	require.NoError(t, err)

	data, err := Encode(b)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, b.ContentHash, got.ContentHash)
	require.Equal(t, b.Files, got.Files)
}

func TestContentHash_StableAcrossFileMapOrder(t *testing.T) {
	codes := []models.Code{
		{FsPath: "functions/a.js", Content: "export function a() { return 1; }"},
		{FsPath: "functions/b.js", Content: "export function b() { return 2; }"},
	}
	b1, err := Build(codes, nil)
	require.NoError(t, err)

	reversed := []models.Code{codes[1], codes[0]}
	b2, err := Build(reversed, nil)
	require.NoError(t, err)

	require.Equal(t, b1.ContentHash, b2.ContentHash)
}

func TestBuild_AnonymousDefaultExportGetsSyntheticName(t *testing.T) {
	codes := []models.Code{{FsPath: "functions/anon.js", Content: "export default function(a, b) { return a + b; }"}}
	b, err := Build(codes, nil)
	require.NoError(t, err)
	require.True(t, strings.Contains(b.Files["functions/anon.js"], "exports.default = function __darx_default("))
}
