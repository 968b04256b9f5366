// Package routebuild implements the URL builder: derive a route path
// from (entry_file, export_name).
//
// Grounded on original_source/crates/control_plane/route_builder.rs —
// pure string manipulation, no library need (stdlib strings only).
package routebuild

import (
	"fmt"
	"strings"
)

var stripSuffixes = []string{".js", ".ts", ".mjs"}

// ErrNoRecognizedSuffix is returned when entry_file doesn't end in one
// of .js, .ts, .mjs.
type ErrNoRecognizedSuffix struct {
	EntryFile string
}

func (e *ErrNoRecognizedSuffix) Error() string {
	return fmt.Sprintf("entry file %q has no recognized suffix (.js, .ts, .mjs)", e.EntryFile)
}

// Build derives the HTTP path for one exported function.
//
// Directory separators in the stripped base are preserved as URL path
// separators. For the default export the route is the bare base; for
// named exports the route is base + "." + export_name — the embedded
// "." is intentional and used by clients as the invocation symbol.
func Build(entryFile, exportName string) (string, error) {
	base, ok := stripOneSuffix(entryFile)
	if !ok {
		return "", &ErrNoRecognizedSuffix{EntryFile: entryFile}
	}
	if exportName == "default" {
		return base, nil
	}
	return base + "." + exportName, nil
}

func stripOneSuffix(entryFile string) (string, bool) {
	for _, suffix := range stripSuffixes {
		if strings.HasSuffix(entryFile, suffix) {
			return strings.TrimSuffix(entryFile, suffix), true
		}
	}
	return "", false
}
