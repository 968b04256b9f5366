// Package plugins implements a process-wide registry mapping a
// plugin's globally unique name to the env_id that owns its
// deployments, used by the router to rewrite `_plugins/<name>/<rest>`
// requests before lookup.
//
// Grounded on internal/plugin/manager.go's sync.RWMutex-guarded map
// pattern, simplified to this registry's single name->env_id shape.
package plugins

import "sync"

// Registry is safe for concurrent use. Populated at startup replay and
// on each plugin deployment; name collisions are rejected one layer
// down by the persister's unique constraint on the plugins table, not
// by this type.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]string
}

func New() *Registry {
	return &Registry{byID: make(map[string]string)}
}

// Resolve reports the env_id owning pluginName, if registered.
// Satisfies router.PluginResolver.
func (r *Registry) Resolve(pluginName string) (envID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	envID, ok = r.byID[pluginName]
	return envID, ok
}

// Register binds pluginName to owningEnvID, overwriting any prior
// binding — callers are expected to have already enforced uniqueness
// at the persistence layer.
func (r *Registry) Register(pluginName, owningEnvID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[pluginName] = owningEnvID
}

// Len reports the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
