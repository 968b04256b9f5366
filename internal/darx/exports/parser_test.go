package exports

import "testing"

func TestParse_NamedAndDefault(t *testing.T) {
	src := `
export function add(a, b) {
  return a + b;
}

export default function sub(a, b) {
  return a - b;
}
`
	sigs, err := Parse("math.js", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("got %d signatures, want 2", len(sigs))
	}
	if sigs[0].ExportName != "add" || len(sigs[0].ParamNames) != 2 {
		t.Errorf("unexpected first signature: %+v", sigs[0])
	}
	if sigs[1].ExportName != "default" {
		t.Errorf("default export should be named \"default\", got %+v", sigs[1])
	}
}

func TestParse_AnonymousDefaultExport(t *testing.T) {
	sigs, err := Parse("hello.js", `export default function() { return "hi"; }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 1 || sigs[0].ExportName != "default" {
		t.Fatalf("got %+v", sigs)
	}
}

func TestParse_NoParams(t *testing.T) {
	sigs, err := Parse("hello.js", `export default function hello() { return "hi"; }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs[0].ParamNames) != 0 {
		t.Errorf("expected no params, got %v", sigs[0].ParamNames)
	}
}

func TestParse_NonFunctionExportIgnored(t *testing.T) {
	sigs, err := Parse("consts.js", "export const x = 1;\nexport default 42;\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 0 {
		t.Errorf("expected no signatures, got %+v", sigs)
	}
}

func TestParse_DestructuringRejected(t *testing.T) {
	_, err := Parse("bad.js", "export function f({a, b}) { return a; }")
	if err == nil {
		t.Fatal("expected BadSignatureError")
	}
	if _, ok := err.(*BadSignatureError); !ok {
		t.Errorf("expected *BadSignatureError, got %T: %v", err, err)
	}
}

func TestParse_RestParamRejected(t *testing.T) {
	_, err := Parse("bad.js", "export function f(...args) { return args; }")
	if _, ok := err.(*BadSignatureError); !ok {
		t.Errorf("expected *BadSignatureError, got %T: %v", err, err)
	}
}

func TestParse_DefaultValueRejected(t *testing.T) {
	_, err := Parse("bad.js", "export function f(a = 1) { return a; }")
	if _, ok := err.(*BadSignatureError); !ok {
		t.Errorf("expected *BadSignatureError, got %T: %v", err, err)
	}
}

func TestParse_UnbalancedParens(t *testing.T) {
	_, err := Parse("bad.js", "export function f(a, b {\n  return a;\n}")
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}
