// Package workerpool implements a fixed set of workers, each a
// goroutine owning a single-threaded executor and its own snapshot
// cache, dispatched to by an unbounded per-worker queue.
//
// Grounded on internal/plugin/manager.go's pattern of a long-lived
// goroutine-owned resource reached through typed messages, generalized
// from manager.go's single shared map to one executor per worker so
// interpreter state (and the snapshot LRU backing it) is never shared
// across goroutines.
package workerpool

import (
	"context"
	"encoding/json"
	"hash/fnv"

	"github.com/goatkit/darxrun/internal/darx/exec"
	"github.com/goatkit/darxrun/internal/darx/materialize"
	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/darx/snapshot"
)

// InvokeRequest is one unit of work handed to the pool.
type InvokeRequest struct {
	EnvID       string
	DeploySeq   int64
	DeployDir   string
	Route       models.Route
	RequestBody map[string]json.RawMessage
	Env         exec.HostEnv
}

// InvokeReply arrives on the request's one-shot reply channel.
type InvokeReply struct {
	JSON json.RawMessage
	Err  error
}

type workItem struct {
	ctx   context.Context
	req   InvokeRequest
	reply chan<- InvokeReply
}

// Pool is a fixed-size set of workers. Backpressure is deliberately
// absent: queues are unbounded in this release, so overload shows up as
// growing latency rather than dropped work.
type Pool struct {
	workers []*worker
}

type worker struct {
	in       chan<- workItem
	executor *exec.Executor
	cache    *snapshot.Cache
}

// New starts n worker goroutines, each with its own executor and
// snapshot cache of the given capacity (snapshot.DefaultCapacity if <= 0).
func New(n, cacheCapacity int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{workers: make([]*worker, n)}
	for i := range p.workers {
		in, out := newUnboundedQueue()
		cache := snapshot.New(cacheCapacity)
		executor := exec.New()
		executor.LoadBundle = func(deployDir string) ([]byte, error) {
			return cache.GetOrLoad(deployDir, materialize.SnapshotFileName)
		}
		w := &worker{in: in, executor: executor, cache: cache}
		p.workers[i] = w
		go w.run(out)
	}
	return p
}

func (w *worker) run(out <-chan workItem) {
	for item := range out {
		ctx := item.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		result, err := w.executor.Invoke(ctx, exec.Invocation{
			DeployDir:   item.req.DeployDir,
			Route:       item.req.Route,
			RequestBody: item.req.RequestBody,
			Env:         item.req.Env,
		})
		item.reply <- InvokeReply{JSON: result, Err: err}
	}
}

// Send routes req to the worker owning req.EnvID (a stable hash, so one
// tenant's traffic always lands on the same worker and its snapshot
// cache) and returns a channel the caller reads exactly one reply from.
func (p *Pool) Send(ctx context.Context, req InvokeRequest) <-chan InvokeReply {
	reply := make(chan InvokeReply, 1)
	idx := workerIndex(req.EnvID, len(p.workers))
	p.workers[idx].in <- workItem{ctx: ctx, req: req, reply: reply}
	return reply
}

func workerIndex(envID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(envID))
	return int(h.Sum32()) % n
}

// Shutdown closes every worker's input queue. In-flight work already
// queued drains normally; in-flight timeouts inside the executor still
// fire on their own schedule.
func (p *Pool) Shutdown() {
	for _, w := range p.workers {
		close(w.in)
	}
}

// newUnboundedQueue returns a (send, receive) pair backed by a goroutine
// relaying through a growable slice, giving a genuinely unbounded queue
// without an arbitrary fixed buffer size.
func newUnboundedQueue() (chan<- workItem, <-chan workItem) {
	in := make(chan workItem)
	out := make(chan workItem)
	go func() {
		defer close(out)
		var queue []workItem
		for {
			if len(queue) == 0 {
				item, ok := <-in
				if !ok {
					return
				}
				queue = append(queue, item)
				continue
			}
			select {
			case item, ok := <-in:
				if !ok {
					for _, q := range queue {
						out <- q
					}
					return
				}
				queue = append(queue, item)
			case out <- queue[0]:
				queue = queue[1:]
			}
		}
	}()
	return in, out
}
