// Package jsruntime is the shared substrate behind materialization and
// execution: it turns a deployment's routable Code files into the
// artifact the materializer writes as deploy_dir/SNAPSHOT.bin and the
// executor loads back for every invocation.
//
// goja has no ES-module import/export grammar and cannot serialize a
// V8-style heap snapshot. Rather than feeding goja raw source on every
// request, this package precompiles each routable file into a
// CommonJS-shaped module body once, at materialization time, and
// gob-encodes the result as a precompiled bundle artifact standing in
// for a true heap snapshot. Parsing is cheap; this still saves every
// invocation from re-scanning source for export declarations.
package jsruntime

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/goatkit/darxrun/internal/darx/exports"
	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/darx/registry"
)

// Bundle is the precompiled, gob-serializable artifact written to
// SNAPSHOT.bin. It exists iff every Code file it references exists,
// because Build only ever runs after every source file has been
// written to disk.
type Bundle struct {
	// Files maps each routable fs_path to a CommonJS-shaped module body:
	// a function(module, exports, require) { ... } source string.
	Files map[string]string
	// RegistryScript binds every route's unique alias onto the guest
	// global object once the modules above have been required.
	RegistryScript string
	// ContentHash is a content hash of Files+RegistryScript, letting the
	// startup loader skip re-materializing unchanged deployments.
	ContentHash string
}

// Build compiles a deployment's routable codes and routes into a
// Bundle. Non-routable codes (anything outside functions/, plus the
// reserved registry file itself — this package regenerates the
// execution-time registry wiring directly from routes, it does not
// re-parse the persisted __registry.js) are skipped.
func Build(codes []models.Code, routes []models.Route) (*Bundle, error) {
	files := make(map[string]string)
	for _, c := range codes {
		if c.FsPath == models.RegistryFileName {
			continue
		}
		if !strings.HasPrefix(c.FsPath, models.FunctionsPrefix) {
			continue
		}
		body, err := toCommonJS(c.FsPath, c.Content)
		if err != nil {
			return nil, err
		}
		files[c.FsPath] = body
	}

	regScript := buildRegistryScript(routes)

	b := &Bundle{Files: files, RegistryScript: regScript}
	b.ContentHash = contentHash(files, regScript)
	return b, nil
}

// toCommonJS rewrites the two export shapes the exports parser
// recognizes (`export function name(...)`, `export default function
// [name](...)`) into CommonJS assignments, reusing the parser's own
// line matchers so there is exactly one place that understands this
// export grammar.
func toCommonJS(fsPath, source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines)+2)
	out = append(out, "(function(module, exports, require) {")
	for _, line := range lines {
		if rewritten, ok := exports.RewriteNamedExport(line); ok {
			out = append(out, rewritten)
			continue
		}
		if rewritten, ok := exports.RewriteDefaultExport(line); ok {
			out = append(out, rewritten)
			continue
		}
		out = append(out, line)
	}
	out = append(out, "})")
	return strings.Join(out, "\n"), nil
}

// buildRegistryScript emits, for each route, a statement binding the
// route's unique alias to the required export. Order matches route
// order, the same as the persisted __registry.js.
func buildRegistryScript(routes []models.Route) string {
	var sb strings.Builder
	for _, r := range routes {
		alias := registry.UniqueAlias(r.EntryFile, r.ExportName)
		member := "default"
		if r.ExportName != "default" {
			member = r.ExportName
		}
		fmt.Fprintf(&sb, "globalThis.%s = require(%q).%s;\n", alias, r.EntryFile, member)
	}
	return sb.String()
}

func contentHash(files map[string]string, registryScript string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write([]byte(files[p]))
		h.Write([]byte{0})
	}
	h.Write([]byte(registryScript))
	return hex.EncodeToString(h.Sum(nil))
}

// Encode gob-serializes a Bundle for writing to SNAPSHOT.bin.
func Encode(b *Bundle) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode, used by the executor to build a fresh
// interpreter and by the startup loader; the snapshot cache stores the
// encoded bytes and never decodes them.
func Decode(data []byte) (*Bundle, error) {
	var b Bundle
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}
