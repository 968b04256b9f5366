// Package registry implements the registry-module generator: given a
// deployment's route list, emit a single synthesized
// source file (reserved name models.RegistryFileName) that imports every
// exported function under a unique alias and assigns it to a property of
// the global object.
//
// Grounded on original_source/crates/core/deploy/control.rs::registry_code,
// which uses a Handlebars template producing:
//
//	import { {{js_export}} as {{unique_export}} } from "./{{js_entry_point}}";
//	globalThis.{{unique_export}} = {{unique_export}};
//
// text/template (stdlib) plays the same role here that cmd/gk's
// scaffolder uses it for: small code-generation templates, rather than
// reaching for a templating library nothing else in this codebase uses.
package registry

import (
	"strings"
	"text/template"

	"github.com/goatkit/darxrun/internal/darx/models"
)

var lineTmpl = template.Must(template.New("registry-line").Parse(
	`import { {{.ExportName}} as {{.Alias}} } from "./{{.EntryFile}}";` + "\n" +
		`globalThis.{{.Alias}} = {{.Alias}};` + "\n"))

// UniqueAlias builds the global binding name for (entryFile, exportName):
// the entry path with its extension stripped and every "/" and "."
// replaced by an underscore, then "_" + exportName. Pairs that differ
// only in where "/", "." and "_" fall map to the same alias (for example
// "functions/a_b.js" and "functions/a/b.js" with the same export); no
// path is rejected for this.
func UniqueAlias(entryFile, exportName string) string {
	base := entryFile
	for _, suffix := range []string{".js", ".ts", ".mjs"} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	base = strings.NewReplacer("/", "_", ".", "_").Replace(base)
	return base + "_" + exportName
}

// Generate returns the __registry.js source for a deployment's routes,
// in the same order the routes were built.
func Generate(routes []models.Route) (string, error) {
	var sb strings.Builder
	for _, r := range routes {
		alias := UniqueAlias(r.EntryFile, r.ExportName)
		data := struct {
			ExportName string
			Alias      string
			EntryFile  string
		}{ExportName: r.ExportName, Alias: alias, EntryFile: r.EntryFile}
		if err := lineTmpl.Execute(&sb, data); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}
