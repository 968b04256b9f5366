// Package router implements a concurrent, per-tenant index from
// (env_id, http_path, method) to the Route that should serve an
// invocation, plus the plugin-URL indirection that lets one tenant's
// deployment serve another's requests under a `_plugins/<name>/<rest>`
// prefix.
//
// Built on github.com/hashicorp/go-immutable-radix/v2, whose
// insert-returns-a-new-tree design gives readers a consistent snapshot
// without blocking writers, matching internal/api/dynamic_router.go's
// atomic build-then-swap-under-RWMutex idiom for dynEngine.
package router

import (
	"strings"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix/v2"

	"github.com/goatkit/darxrun/internal/darx/models"
)

// DeploymentRoute is one deployment's route table: an immutable radix
// tree built once at insertion and never mutated afterward.
type DeploymentRoute struct {
	EnvID     string
	DeploySeq int64
	trie      *iradix.Tree[models.Route]
}

func (d *DeploymentRoute) lookup(httpPath string) (models.Route, bool) {
	return d.trie.Get([]byte(httpPath))
}

// PluginResolver is satisfied by the plugin registry.
type PluginResolver interface {
	Resolve(name string) (envID string, ok bool)
}

// Router holds, per tenant, the list of DeploymentRoute entries ordered
// by deploy_seq descending — position 0 is the head deployment that
// match_route reads from. Older entries are retained for future
// versioned routing but are otherwise unreferenced in this release.
type Router struct {
	mu      sync.RWMutex
	tenants map[string][]*DeploymentRoute
	plugins PluginResolver
}

func New(plugins PluginResolver) *Router {
	return &Router{tenants: make(map[string][]*DeploymentRoute), plugins: plugins}
}

// Insert builds a DeploymentRoute for (envID, deploySeq, routes) and
// places it in envID's list at its deploy_seq position, so a deployment
// newer than every listed one becomes the new head. Satisfies
// materialize.RouteInserter.
func (r *Router) Insert(envID string, deploySeq int64, routes []models.Route) {
	tree := iradix.New[models.Route]()
	for _, route := range routes {
		tree, _, _ = tree.Insert([]byte(route.HTTPPath), route)
	}
	dr := &DeploymentRoute{EnvID: envID, DeploySeq: deploySeq, trie: tree}

	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.tenants[envID]
	i := 0
	for i < len(list) && list[i].DeploySeq > deploySeq {
		i++
	}
	next := make([]*DeploymentRoute, 0, len(list)+1)
	next = append(next, list[:i]...)
	next = append(next, dr)
	r.tenants[envID] = append(next, list[i:]...)
}

// Head returns envID's current (highest deploy_seq) DeploymentRoute, if any.
func (r *Router) Head(envID string) (*DeploymentRoute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.tenants[envID]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// MatchResult is what MatchRoute returns on a hit.
type MatchResult struct {
	EffectiveEnvID string
	DeploySeq      int64
	Route          models.Route
}

// MatchRoute resolves a plugin prefix when present, then does a
// head-deployment trie lookup, then a method check.
func (r *Router) MatchRoute(envID, url, method string) (MatchResult, bool) {
	effectiveEnvID := envID
	lookupURL := url

	if strings.HasPrefix(url, models.PluginRoutePrefix) {
		pluginName, rest, ok := splitPluginURL(url)
		if !ok {
			return MatchResult{}, false
		}
		owningEnvID, ok := r.plugins.Resolve(pluginName)
		if !ok {
			return MatchResult{}, false
		}
		effectiveEnvID = owningEnvID
		lookupURL = rest
	}

	head, ok := r.Head(effectiveEnvID)
	if !ok {
		return MatchResult{}, false
	}
	route, ok := head.lookup(lookupURL)
	if !ok || route.Method != method {
		return MatchResult{}, false
	}
	return MatchResult{EffectiveEnvID: effectiveEnvID, DeploySeq: head.DeploySeq, Route: route}, true
}

// splitPluginURL reproduces parse_plugin_url's exact segment semantics:
// split the whole URL on "/"; at least three segments are required
// ("_plugins", name, ...rest); the remaining segments rejoin with "/",
// so a trailing slash after the name yields a valid, empty rest.
func splitPluginURL(url string) (name, rest string, ok bool) {
	parts := strings.Split(url, "/")
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[1], strings.Join(parts[2:], "/"), true
}
