// Package loader provides the per-request batching and caching primitive
// behind every relation field in the graph. A Loader collects the keys
// requested during one execution tick and issues a single batched fetch for
// the distinct set; equal keys share one cached deferred for the lifetime of
// the request, so the backing store sees at most one fetch per distinct key.
//
// Loaders register with a request-scoped Registry. The executor drains all
// synchronous work, then calls Registry.Flush once per tick: every dirty
// loader runs its batch function (fetches execute in parallel), after which
// the collected results settle their deferreds sequentially so continuations
// run single-threaded.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmerce/catalogql/internal/eventbus"
	"github.com/openmerce/catalogql/internal/events"
	"github.com/openmerce/catalogql/internal/promise"
)

// BatchFunc loads a batch of values for the given distinct keys. It must
// return one value per key in matching order. Per-key failures are reported
// in errs (indexed like keys); a fetch-wide failure is reported as a single
// element errs slice, which fails every pending deferred of the batch.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// Registry tracks the loaders of one request and flushes the ones holding
// queued keys. It must not be shared across requests.
type Registry struct {
	mu    sync.Mutex
	dirty []flusher
}

type flusher interface {
	// fetch performs the batched I/O and returns a closure that settles the
	// pending deferreds. Splitting the two phases lets the Registry run
	// fetches in parallel while keeping continuation execution sequential.
	fetch(ctx context.Context) func()
	name() string
}

// NewRegistry returns an empty request-scoped registry.
func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) enqueue(f flusher) {
	r.mu.Lock()
	r.dirty = append(r.dirty, f)
	r.mu.Unlock()
}

// Flush executes one batched fetch per dirty loader and settles the results.
// It reports whether any work was performed. Continuations run while settling
// and may queue new keys; those are picked up by the next Flush.
func (r *Registry) Flush(ctx context.Context) bool {
	r.mu.Lock()
	dirty := r.dirty
	r.dirty = nil
	r.mu.Unlock()
	if len(dirty) == 0 {
		return false
	}

	settles := make([]func(), len(dirty))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range dirty {
		i, f := i, f
		g.Go(func() error {
			settles[i] = f.fetch(gctx)
			return nil
		})
	}
	// Fetch errors surface through the deferreds, never through the group.
	_ = g.Wait()

	for _, settle := range settles {
		settle()
	}
	return true
}

type registryKey struct{}

// WithRegistry attaches a request-scoped registry to ctx.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, r)
}

// FromContext returns the registry attached to ctx, or nil.
func FromContext(ctx context.Context) *Registry {
	r, _ := ctx.Value(registryKey{}).(*Registry)
	return r
}

// Loader batches and caches loads for one key shape within one request.
type Loader[K comparable, V any] struct {
	loaderName string
	reg        *Registry
	batch      BatchFunc[K, V]

	mu    sync.Mutex
	cache map[K]*promise.Deferred
	queue []K
}

// New returns a loader bound to the given registry. name identifies the
// loader in batch events and error messages.
func New[K comparable, V any](reg *Registry, name string, batch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{
		loaderName: name,
		reg:        reg,
		batch:      batch,
		cache:      make(map[K]*promise.Deferred),
	}
}

// Load returns a deferred for the value of key. The first request for a key
// queues it for the next flush; repeated requests share the cached deferred.
func (l *Loader[K, V]) Load(key K) *promise.Deferred {
	l.mu.Lock()
	if d, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return d
	}
	d := promise.New()
	l.cache[key] = d
	wasClean := len(l.queue) == 0
	l.queue = append(l.queue, key)
	l.mu.Unlock()

	if wasClean {
		l.reg.enqueue(l)
	}
	return d
}

// LoadMany returns a deferred resolving to a []any with one value per key,
// in key order.
func (l *Loader[K, V]) LoadMany(keys []K) *promise.Deferred {
	ds := make([]*promise.Deferred, len(keys))
	for i, k := range keys {
		ds[i] = l.Load(k)
	}
	return promise.All(ds...)
}

// Prime seeds the cache with a known value, e.g. a record obtained through a
// sibling query. A key already cached keeps its original deferred.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; !ok {
		l.cache[key] = promise.Of(value)
	}
}

func (l *Loader[K, V]) name() string { return l.loaderName }

func (l *Loader[K, V]) fetch(ctx context.Context) func() {
	l.mu.Lock()
	keys := l.queue
	l.queue = nil
	deferreds := make([]*promise.Deferred, len(keys))
	for i, k := range keys {
		deferreds[i] = l.cache[k]
	}
	l.mu.Unlock()

	start := time.Now()
	eventbus.Publish(ctx, events.LoaderBatchStart{Loader: l.loaderName, Keys: len(keys)})
	values, errs := l.batch(ctx, keys)
	var batchErr error
	switch {
	case len(errs) == 1 && len(keys) > 1:
		batchErr = errs[0]
	case len(values) != len(keys) && !(len(errs) == len(keys)):
		batchErr = fmt.Errorf("loader %s: batch returned %d values for %d keys", l.loaderName, len(values), len(keys))
	}
	eventbus.Publish(ctx, events.LoaderBatchFinish{
		Loader:   l.loaderName,
		Keys:     len(keys),
		Err:      batchErr,
		Duration: time.Since(start),
	})

	return func() {
		if batchErr != nil {
			for _, d := range deferreds {
				d.Fail(batchErr)
			}
			return
		}
		for i, d := range deferreds {
			if i < len(errs) && errs[i] != nil {
				d.Fail(errs[i])
				continue
			}
			if i >= len(values) {
				d.Fail(fmt.Errorf("loader %s: no value for key index %d", l.loaderName, i))
				continue
			}
			d.Resolve(values[i])
		}
	}
}

// OrderByKeys reorders values to match the requested key order, using keyFn
// to extract each value's key. Missing keys yield the zero value, which is
// how absent optional relations are represented.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn func(V) K) []V {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	out := make([]V, len(keys))
	for i, k := range keys {
		out[i] = lookup[k]
	}
	return out
}

// GroupByKeys groups values by keyFn and returns one group per requested key,
// in key order. Useful for one-to-many relations.
func GroupByKeys[K comparable, V any](keys []K, values []V, keyFn func(V) K) [][]V {
	groups := make(map[K][]V)
	for _, v := range values {
		k := keyFn(v)
		groups[k] = append(groups[k], v)
	}
	out := make([][]V, len(keys))
	for i, k := range keys {
		out[i] = groups[k]
	}
	return out
}
