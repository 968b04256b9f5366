package exec

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"

	"github.com/goatkit/darxrun/internal/platform/database"
)

// HostEnv is the set of dependencies a guest's Dx global can reach into.
// DB may be nil (Dx.db.execute then rejects with "no database
// configured"); HTTPClient defaults to http.DefaultClient when nil.
type HostEnv struct {
	EnvID      string
	DeploySeq  int64
	Vars       map[string]string
	DB         *sql.DB
	HTTPClient *http.Client
}

// installBindings wires console, Dx.env/Dx.db.execute, and fetch onto vm
// as the guest-visible host surface.
func installBindings(ctx context.Context, vm *goja.Runtime, env HostEnv) error {
	console.Enable(vm)

	dx := vm.NewObject()
	envObj := vm.NewObject()
	for k, v := range env.Vars {
		_ = envObj.Set(k, v)
	}
	if freeze, ok := goja.AssertFunction(vm.Get("Object").ToObject(vm).Get("freeze")); ok {
		_, _ = freeze(goja.Undefined(), envObj)
	}
	_ = dx.Set("env", envObj)

	dbObj := vm.NewObject()
	_ = dbObj.Set("execute", dbExecuteFunc(ctx, vm, env.DB))
	_ = dx.Set("db", dbObj)

	if err := vm.Set("Dx", dx); err != nil {
		return err
	}

	client := env.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return vm.Set("fetch", fetchFunc(ctx, vm, client))
}

// dbExecuteFunc implements Dx.db.execute(query, params) -> Promise,
// grounded on crates/isolate_runtime/db_ops.rs::op_db_execute: run the
// query through the cross-driver compatibility layer and resolve with
// an array of row objects.
func dbExecuteFunc(ctx context.Context, vm *goja.Runtime, db *sql.DB) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()
		if db == nil {
			reject(vm.ToValue("no database configured for this tenant"))
			return vm.ToValue(promise)
		}

		query := call.Argument(0).String()
		var params []interface{}
		if len(call.Arguments) > 1 {
			var raw []interface{}
			if err := vm.ExportTo(call.Argument(1), &raw); err == nil {
				params = raw
			}
		}
		query = database.ConvertPlaceholders(query)

		rows, err := db.QueryContext(ctx, query, params...)
		if err != nil {
			reject(vm.ToValue(err.Error()))
			return vm.ToValue(promise)
		}
		defer rows.Close()

		results, err := scanRows(rows)
		if err != nil {
			reject(vm.ToValue(err.Error()))
			return vm.ToValue(promise)
		}
		resolve(vm.ToValue(results))
		return vm.ToValue(promise)
	}
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// fetchFunc implements a minimal fetch(url[, init]) -> Promise<Response>,
// written directly against net/http; see DESIGN.md for why this binding
// is a justified stdlib use.
func fetchFunc(ctx context.Context, vm *goja.Runtime, client *http.Client) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()
		url := call.Argument(0).String()
		method := "GET"
		var body io.Reader
		if len(call.Arguments) > 1 {
			init := call.Argument(1).ToObject(vm)
			if m := init.Get("method"); m != nil && !goja.IsUndefined(m) {
				method = m.String()
			}
			if b := init.Get("body"); b != nil && !goja.IsUndefined(b) {
				body = strings.NewReader(b.String())
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, method, url, body)
		if err != nil {
			reject(vm.ToValue(err.Error()))
			return vm.ToValue(promise)
		}
		resp, err := client.Do(req)
		if err != nil {
			reject(vm.ToValue(err.Error()))
			return vm.ToValue(promise)
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			reject(vm.ToValue(err.Error()))
			return vm.ToValue(promise)
		}

		respObj := vm.NewObject()
		_ = respObj.Set("status", resp.StatusCode)
		_ = respObj.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
		bodyText := string(respBody)
		_ = respObj.Set("text", func(goja.FunctionCall) goja.Value {
			p, res, _ := vm.NewPromise()
			res(vm.ToValue(bodyText))
			return vm.ToValue(p)
		})
		_ = respObj.Set("json", func(goja.FunctionCall) goja.Value {
			p, res, rej := vm.NewPromise()
			parsed, err := vm.RunString("(" + bodyText + ")")
			if err != nil {
				rej(vm.ToValue(fmt.Sprintf("invalid JSON response: %v", err)))
			} else {
				res(parsed)
			}
			return vm.ToValue(p)
		})
		resolve(respObj)
		return vm.ToValue(promise)
	}
}
