package exec

import (
	"path"
	"strings"

	"github.com/dop251/goja"

	"github.com/goatkit/darxrun/internal/darx/jsruntime"
)

// moduleLoader evaluates CommonJS module bodies from a Bundle's Files
// map, confined to that map — there is no filesystem underneath it at
// invocation time, so confinement to the deploy directory is simply
// "never resolves outside Files", reproducing the NotAllowed rejection
// internal/isolate_runtime/module_loader.rs enforces against tenant_dir.
type moduleLoader struct {
	vm      *goja.Runtime
	bundle  *jsruntime.Bundle
	modules map[string]*goja.Object // fsPath -> module.exports, populated once per require
}

func newModuleLoader(vm *goja.Runtime, bundle *jsruntime.Bundle) *moduleLoader {
	return &moduleLoader{vm: vm, bundle: bundle, modules: make(map[string]*goja.Object)}
}

// requireFunc returns a goja-callable require() bound to fromPath, the
// fs_path of the module issuing the call ("" for the top-level registry
// script, which only ever requires exact fs_paths).
func (l *moduleLoader) requireFunc(fromPath string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		resolved, err := resolveSpecifier(fromPath, specifier, l.bundle.Files)
		if err != nil {
			panic(l.vm.ToValue(err.Error()))
		}
		exportsObj, err := l.load(resolved)
		if err != nil {
			panic(l.vm.ToValue(err.Error()))
		}
		return exportsObj
	}
}

func (l *moduleLoader) load(fsPath string) (*goja.Object, error) {
	if mod, ok := l.modules[fsPath]; ok {
		return mod, nil
	}
	body, ok := l.bundle.Files[fsPath]
	if !ok {
		return nil, &NotAllowedError{Specifier: fsPath}
	}

	moduleObj := l.vm.NewObject()
	exportsObj := l.vm.NewObject()
	_ = moduleObj.Set("exports", exportsObj)
	// Registered before evaluation so a require cycle returns the
	// in-progress exports object, matching Node's module cache semantics.
	l.modules[fsPath] = exportsObj

	wrapper, err := l.vm.RunString(body)
	if err != nil {
		return nil, &RuntimeError{Err: err}
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, &RuntimeError{Err: errNotAFunction(fsPath)}
	}
	requireVal := l.vm.ToValue(l.requireFunc(fsPath))
	if _, err := fn(goja.Undefined(), moduleObj, exportsObj, requireVal); err != nil {
		return nil, &RuntimeError{Err: err}
	}

	// A module may have reassigned module.exports entirely (rather than
	// mutating the exports object in place); prefer whatever it ends on.
	if final, ok := moduleObj.Get("exports").(*goja.Object); ok {
		l.modules[fsPath] = final
		return final, nil
	}
	return exportsObj, nil
}

// resolveSpecifier maps a require() specifier to an exact key of files,
// relative to fromPath for "./"/"../" specifiers and as-is otherwise
// (the shape every registry-script and entry-file reference uses).
// Any result that normalizes outside the confined file set is rejected.
func resolveSpecifier(fromPath, specifier string, files map[string]string) (string, error) {
	candidate := specifier
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		dir := path.Dir(fromPath)
		candidate = path.Clean(path.Join(dir, specifier))
	}
	if strings.HasPrefix(candidate, "../") || candidate == ".." {
		return "", &NotAllowedError{Specifier: specifier}
	}
	if _, ok := files[candidate]; ok {
		return candidate, nil
	}
	if _, ok := files[candidate+".js"]; ok {
		return candidate + ".js", nil
	}
	return "", &NotAllowedError{Specifier: specifier}
}

type notAFunctionError string

func (e notAFunctionError) Error() string { return string(e) }

func errNotAFunction(fsPath string) error {
	return notAFunctionError("module body for " + fsPath + " did not evaluate to a function")
}
