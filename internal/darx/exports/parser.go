// Package exports implements the module-export parser: given
// (file_name, source), return the ordered list of exported function
// signatures a deployment's registry and router are built from.
//
// Recognizes exactly two declaration shapes:
//
//	export function name(a, b) { ... }
//	export default function [name](a, b) { ... }
//
// Only identifier parameter patterns are supported; destructuring,
// rest, and default-value parameters fail with *BadSignatureError.
// Everything else — classes, const/let exports, re-exports, non-function
// default exports — is silently ignored, matching the original scanner's
// behavior of walking only ModuleDecl::ExportDecl(Decl::Fn) and
// ExportDefaultDecl(DefaultDecl::Fn) nodes.
//
// There is no JS/TS AST library available here, and the grammar this
// package needs to recognize is a narrow, fixed two-shape subset — not
// general JavaScript — so a hand-rolled line/token scanner is in scope
// rather than a dependency; see DESIGN.md.
package exports

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseError carries the scanner's diagnostic string when source fails
// to parse.
type ParseError struct {
	File string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// BadSignatureError is returned when an export uses an unsupported
// parameter pattern (destructuring, rest, default value).
type BadSignatureError struct {
	File    string
	Export  string
	Pattern string
}

func (e *BadSignatureError) Error() string {
	return fmt.Sprintf("%s: export %q has unsupported parameter pattern %q", e.File, e.Export, e.Pattern)
}

// Signature is one parsed exported function.
type Signature struct {
	ExportName string
	ParamNames []string
}

var (
	namedExportRe   = regexp.MustCompile(`^\s*export\s+function\s+([A-Za-z_$][\w$]*)\s*\(([^)]*)\)`)
	defaultExportRe = regexp.MustCompile(`^\s*export\s+default\s+function\s*([A-Za-z_$][\w$]*)?\s*\(([^)]*)\)`)
)

// MatchNamedExport reports whether line is an "export function name(...)"
// declaration, returning its captured name. Exported so the jsruntime
// bundling step recognizes the same export grammar this parser does,
// rather than duplicating the regex.
func MatchNamedExport(line string) (name string, ok bool) {
	m := namedExportRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RewriteNamedExport rewrites an "export function name(...)" line into
// its CommonJS equivalent ("exports.name = function name(...)"),
// reusing the exact pattern MatchNamedExport recognizes so the export
// grammar is understood in exactly one place.
func RewriteNamedExport(line string) (string, bool) {
	m := namedExportRe.FindStringSubmatchIndex(line)
	if m == nil {
		return "", false
	}
	name, params := line[m[2]:m[3]], line[m[4]:m[5]]
	return "exports." + name + " = function " + name + "(" + params + ")" + line[m[1]:], true
}

// RewriteDefaultExport rewrites an "export default function [name](...)"
// line into "exports.default = function name(...)", synthesizing a name
// for anonymous default exports so the resulting function expression
// stays nameable inside a CommonJS wrapper.
func RewriteDefaultExport(line string) (string, bool) {
	m := defaultExportRe.FindStringSubmatchIndex(line)
	if m == nil {
		return "", false
	}
	fnName := "__darx_default"
	if m[2] >= 0 && m[3] > m[2] {
		fnName = line[m[2]:m[3]]
	}
	return "exports.default = function " + fnName + "(" + line[m[4]:m[5]] + ")" + line[m[1]:], true
}

// MatchDefaultExport reports whether line is an "export default
// function [name](...)" declaration, returning the captured name (empty
// for an anonymous default export).
func MatchDefaultExport(line string) (name string, ok bool) {
	m := defaultExportRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Parse scans source line by line (a declaration's parameter list never
// spans multiple lines in the subset this system accepts) and returns
// every recognized export, in source order.
func Parse(fileName, source string) ([]Signature, error) {
	var sigs []Signature
	lines := strings.Split(source, "\n")

	openParens := 0
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		// crude unterminated-paren detection catches the one syntax
		// error this scanner can meaningfully diagnose: a parameter
		// list that never closes on the same line.
		if m := namedExportRe.FindStringSubmatch(line); m != nil {
			name, params := m[1], m[2]
			sig, err := buildSignature(fileName, name, params)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, sig)
			continue
		}
		if m := defaultExportRe.FindStringSubmatch(line); m != nil {
			params := m[2]
			sig, err := buildSignature(fileName, "default", params)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, sig)
			continue
		}
		if strings.Contains(line, "export default") && !strings.Contains(line, "function") {
			// export default <expr> with no function — non-function
			// default export, silently ignored.
			continue
		}
		openParens += strings.Count(line, "(") - strings.Count(line, ")")
	}
	if openParens != 0 {
		return nil, &ParseError{File: fileName, Msg: "unbalanced parentheses"}
	}
	return sigs, nil
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

func buildSignature(fileName, exportName, rawParams string) (Signature, error) {
	rawParams = strings.TrimSpace(rawParams)
	if rawParams == "" {
		return Signature{ExportName: exportName}, nil
	}
	parts := strings.Split(rawParams, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "...") {
			return Signature{}, &BadSignatureError{File: fileName, Export: exportName, Pattern: p}
		}
		if strings.ContainsAny(p, "{[") {
			return Signature{}, &BadSignatureError{File: fileName, Export: exportName, Pattern: p}
		}
		if strings.Contains(p, "=") {
			return Signature{}, &BadSignatureError{File: fileName, Export: exportName, Pattern: p}
		}
		if !identifierRe.MatchString(p) {
			return Signature{}, &BadSignatureError{File: fileName, Export: exportName, Pattern: p}
		}
		names = append(names, p)
	}
	return Signature{ExportName: exportName, ParamNames: names}, nil
}
