package registry

import (
	"strings"
	"testing"

	"github.com/goatkit/darxrun/internal/darx/models"
)

func TestUniqueAlias_DefaultAndNamedDoNotCollide(t *testing.T) {
	a := UniqueAlias("functions/foo.js", "default")
	b := UniqueAlias("functions/foo.js", "foo")
	if a == b {
		t.Fatalf("expected distinct aliases, both got %q", a)
	}
	if a != "functions_foo_default" {
		t.Errorf("got %q", a)
	}
	if b != "functions_foo_foo" {
		t.Errorf("got %q", b)
	}
}

func TestGenerate_OneLinePerRoute(t *testing.T) {
	routes := []models.Route{
		{EntryFile: "functions/hello.js", ExportName: "default"},
		{EntryFile: "functions/math.js", ExportName: "add"},
	}
	src, err := Generate(routes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, `globalThis.functions_hello_default = functions_hello_default;`) {
		t.Errorf("missing default binding, got:\n%s", src)
	}
	if !strings.Contains(src, `globalThis.functions_math_add = functions_math_add;`) {
		t.Errorf("missing named binding, got:\n%s", src)
	}
}

// TestGenerate_ImportClauseIsBraced guards against regressing to a
// brace-less named-import clause, which is a JS SyntaxError
// ("Unexpected identifier 'as'") rather than valid ES module syntax.
func TestGenerate_ImportClauseIsBraced(t *testing.T) {
	routes := []models.Route{
		{EntryFile: "functions/getK.js", ExportName: "default"},
		{EntryFile: "functions/sum.js", ExportName: "sum"},
	}
	src, err := Generate(routes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, `import { default as functions_getK_default } from "./functions/getK.js";`) {
		t.Errorf("default-export import clause not braced, got:\n%s", src)
	}
	if !strings.Contains(src, `import { sum as functions_sum_sum } from "./functions/sum.js";`) {
		t.Errorf("named-export import clause not braced, got:\n%s", src)
	}
	if strings.Contains(src, "import default as") || strings.Contains(src, "import sum as") {
		t.Errorf("generated a brace-less (syntactically invalid) import clause, got:\n%s", src)
	}
}
