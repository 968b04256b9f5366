// Package exec builds an interpreter from a materialized bundle and
// invokes one exported function with a JSON argument vector under a
// wall-clock timeout.
//
// goja has no V8-style heap snapshot to restore from, so "construct an
// interpreter initialized from snapshot" becomes "build a fresh
// goja.Runtime, decode the bundle, and evaluate its CommonJS module
// bodies on demand through require()" — see internal/darx/jsruntime's
// package doc for the full rationale. github.com/dop251/goja_nodejs's
// eventloop package supplies the cooperative scheduler that drains
// setTimeout callbacks and promise continuations, matching this
// system's single-threaded-per-worker execution model.
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/goatkit/darxrun/internal/darx/jsruntime"
	"github.com/goatkit/darxrun/internal/darx/materialize"
	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/darx/registry"
)

// DefaultTimeout is the wall-clock budget for one invocation.
const DefaultTimeout = 5 * time.Second

// DefaultHeapLimitBytes bounds the interpreter heap for one invocation.
const DefaultHeapLimitBytes = 512 * 1024 * 1024

// Invocation carries everything the executor needs for one call.
type Invocation struct {
	DeployDir      string
	Route          models.Route
	RequestBody    map[string]json.RawMessage
	Env            HostEnv
	Timeout        time.Duration
	HeapLimitBytes int
}

// Executor runs invocations against bundles loaded from disk or, more
// commonly, a snapshot.Cache sitting in front of it.
type Executor struct {
	// LoadBundle reads a deploy_dir's SNAPSHOT.bin bytes; overridable in
	// tests and normally backed by a worker-local snapshot.Cache.
	LoadBundle func(deployDir string) ([]byte, error)
}

func New() *Executor {
	return &Executor{LoadBundle: defaultLoadBundle}
}

func defaultLoadBundle(deployDir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(deployDir, materialize.SnapshotFileName))
}

// Invoke loads the deploy_dir's bundle, runs the route's exported
// function against the request body, and returns its JSON result.
func (e *Executor) Invoke(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	if _, err := os.Stat(inv.DeployDir); err != nil {
		return nil, &DeployNotFoundError{DeployDir: inv.DeployDir}
	}

	data, err := e.LoadBundle(inv.DeployDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &DeployNotFoundError{DeployDir: inv.DeployDir}
		}
		return nil, &IOError{Err: err}
	}
	bundle, err := jsruntime.Decode(data)
	if err != nil {
		return nil, &IOError{Err: err}
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	heapLimit := inv.HeapLimitBytes
	if heapLimit <= 0 {
		heapLimit = DefaultHeapLimitBytes
	}

	return runInvocation(ctx, bundle, inv, timeout, heapLimit)
}

type invokeResult struct {
	json []byte
	err  error
}

func runInvocation(ctx context.Context, bundle *jsruntime.Bundle, inv Invocation, timeout time.Duration, heapLimit int) (json.RawMessage, error) {
	loop := eventloop.NewEventLoop()
	loop.Start()

	resultCh := make(chan invokeResult, 1)
	vmCh := make(chan *goja.Runtime, 1)
	loop.RunOnLoop(func(vm *goja.Runtime) {
		vmCh <- vm
		if err := vm.SetMemoryLimit(heapLimit); err != nil {
			resultCh <- invokeResult{err: &RuntimeError{Err: err}}
			return
		}
		if err := installBindings(ctx, vm, inv.Env); err != nil {
			resultCh <- invokeResult{err: &RuntimeError{Err: err}}
			return
		}

		loader := newModuleLoader(vm, bundle)
		if err := vm.Set("require", loader.requireFunc("")); err != nil {
			resultCh <- invokeResult{err: &RuntimeError{Err: err}}
			return
		}
		if _, err := vm.RunString(bundle.RegistryScript); err != nil {
			resultCh <- invokeResult{err: &RuntimeError{Err: err}}
			return
		}

		script, err := invocationScript(inv.Route, inv.RequestBody)
		if err != nil {
			resultCh <- invokeResult{err: &RuntimeError{Err: err}}
			return
		}
		val, err := vm.RunString(script)
		if err != nil {
			resultCh <- invokeResult{err: &RuntimeError{Err: err}}
			return
		}
		resolveToJSON(vm, val, resultCh)
	})

	interrupt := func() {
		select {
		case vm := <-vmCh:
			// Heap is released once the interrupted call stack unwinds:
			// the interpreter is never reused after a timeout.
			vm.Interrupt("invocation timed out")
		default:
		}
	}

	select {
	case res := <-resultCh:
		loop.Stop()
		if res.err != nil {
			return nil, res.err
		}
		return res.json, nil
	case <-time.After(timeout):
		interrupt()
		loop.Stop()
		return nil, &TimeoutError{}
	case <-ctx.Done():
		interrupt()
		loop.Stop()
		return nil, &TimeoutError{}
	}
}

// invocationScript builds "ALIAS(arg0, arg1, ...)": each argi is
// JSON.stringify(request_body[param_names[i]]) || null per §4.H step 2.
// A missing key's JSON.stringify(undefined) is itself undefined, so the
// guest-visible fallback is the string literal "null" (spec.md scenario
// 3: sum(2) with b missing returns "2null", JS's string-concatenation
// coercion of 2 + "null" — not the bare null keyword, which numeric "+"
// would coerce to 0 instead).
func invocationScript(route models.Route, body map[string]json.RawMessage) (string, error) {
	alias := registry.UniqueAlias(route.EntryFile, route.ExportName)
	args := make([]string, len(route.Signature.ParamNames))
	for i, name := range route.Signature.ParamNames {
		raw, ok := body[name]
		if !ok {
			args[i] = `"null"`
			continue
		}
		args[i] = string(raw)
	}
	sep := ""
	var sb []byte
	sb = append(sb, alias...)
	sb = append(sb, '(')
	for _, a := range args {
		sb = append(sb, sep...)
		sb = append(sb, a...)
		sep = ", "
	}
	sb = append(sb, ')')
	return string(sb), nil
}

// resolveToJSON awaits val if it is a thenable, then serializes the
// settled value with the guest's own JSON.stringify — never touching a
// goja.Value from outside vm's owning goroutine.
func resolveToJSON(vm *goja.Runtime, val goja.Value, resultCh chan<- invokeResult) {
	if obj, ok := val.(*goja.Object); ok {
		if thenVal := obj.Get("then"); thenVal != nil && !goja.IsUndefined(thenVal) {
			if thenFn, ok := goja.AssertFunction(thenVal); ok {
				onFulfilled := vm.ToValue(func(call goja.FunctionCall) goja.Value {
					sendJSON(vm, call.Argument(0), resultCh)
					return goja.Undefined()
				})
				onRejected := vm.ToValue(func(call goja.FunctionCall) goja.Value {
					resultCh <- invokeResult{err: &RuntimeError{Err: fmt.Errorf("%s", call.Argument(0).String())}}
					return goja.Undefined()
				})
				if _, err := thenFn(val, onFulfilled, onRejected); err != nil {
					resultCh <- invokeResult{err: &RuntimeError{Err: err}}
				}
				return
			}
		}
	}
	sendJSON(vm, val, resultCh)
}

func sendJSON(vm *goja.Runtime, val goja.Value, resultCh chan<- invokeResult) {
	global := vm.GlobalObject()
	jsonObj := global.Get("JSON").ToObject(vm)
	stringifyFn, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		resultCh <- invokeResult{err: &RuntimeError{Err: fmt.Errorf("JSON.stringify unavailable")}}
		return
	}
	out, err := stringifyFn(jsonObj, val)
	if err != nil {
		resultCh <- invokeResult{err: &RuntimeError{Err: err}}
		return
	}
	if goja.IsUndefined(out) {
		resultCh <- invokeResult{json: []byte("null")}
		return
	}
	resultCh <- invokeResult{json: []byte(out.String())}
}
