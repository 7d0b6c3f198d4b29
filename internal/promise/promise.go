// Package promise provides the deferred-value primitive used by the resolver
// pipeline. A Deferred starts Pending and is settled exactly once, either
// Resolved with a value or Failed with an error. Continuations registered via
// Then form a chain evaluated depth-first when the value arrives; failures
// propagate down the chain unless intercepted with Catch.
//
// The executor drives evaluation cooperatively: resolvers never block on a
// Deferred, they return it. Batch loaders settle deferreds when their flush
// tick completes, which runs the registered continuations in the settling
// goroutine. All state is mutex-guarded so loaders may settle from parallel
// fetch goroutines.
package promise

import "sync"

// State is the lifecycle state of a Deferred.
type State int

const (
	Pending State = iota
	Resolved
	Failed
)

type continuation func(value any, err error)

// Deferred is a handle for a value that is not yet available.
type Deferred struct {
	mu      sync.Mutex
	state   State
	value   any
	err     error
	waiters []continuation
}

// New returns a pending Deferred.
func New() *Deferred { return &Deferred{} }

// Of returns a Deferred already resolved with v.
func Of(v any) *Deferred { return &Deferred{state: Resolved, value: v} }

// Reject returns a Deferred already failed with err.
func Reject(err error) *Deferred { return &Deferred{state: Failed, err: err} }

// Resolve transitions the Deferred to Resolved. If v is itself a *Deferred,
// the outer value adopts its outcome once it settles. Settling a terminal
// Deferred is a programming error and panics.
func (d *Deferred) Resolve(v any) { d.settle(v, nil) }

// Fail transitions the Deferred to Failed. Settling a terminal Deferred is a
// programming error and panics.
func (d *Deferred) Fail(err error) {
	if err == nil {
		panic("promise: Fail with nil error")
	}
	d.settle(nil, err)
}

// State reports the current lifecycle state.
func (d *Deferred) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Result returns the settled value and error. ok is false while pending.
func (d *Deferred) Result() (value any, err error, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Pending {
		return nil, nil, false
	}
	return d.value, d.err, true
}

func (d *Deferred) settle(v any, err error) {
	if inner, ok := v.(*Deferred); ok && err == nil {
		inner.subscribe(d.settle)
		return
	}
	d.mu.Lock()
	if d.state != Pending {
		d.mu.Unlock()
		panic("promise: Deferred settled twice")
	}
	if err != nil {
		d.state = Failed
		d.err = err
	} else {
		d.state = Resolved
		d.value = v
	}
	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	for _, w := range waiters {
		w(v, err)
	}
}

// subscribe registers cb to run once the Deferred settles. A terminal
// Deferred runs cb immediately in the calling goroutine.
func (d *Deferred) subscribe(cb continuation) {
	d.mu.Lock()
	if d.state == Pending {
		d.waiters = append(d.waiters, cb)
		d.mu.Unlock()
		return
	}
	v, err := d.value, d.err
	d.mu.Unlock()
	cb(v, err)
}

// Then returns a new Deferred carrying f's result. f runs once the receiver
// resolves; if f returns a *Deferred it is flattened into the result. A
// failure of the receiver skips f and fails the returned Deferred.
func (d *Deferred) Then(f func(v any) (any, error)) *Deferred {
	out := New()
	d.subscribe(func(v any, err error) {
		if err != nil {
			out.settle(nil, err)
			return
		}
		out.settle(f(v))
	})
	return out
}

// Catch returns a new Deferred that intercepts a failure of the receiver.
// On failure f runs and its result settles the returned Deferred (flattened);
// on success the value passes through untouched.
func (d *Deferred) Catch(f func(err error) (any, error)) *Deferred {
	out := New()
	d.subscribe(func(v any, err error) {
		if err == nil {
			out.settle(v, nil)
			return
		}
		out.settle(f(err))
	})
	return out
}

// Done registers a terminal observer that receives the outcome without
// producing a new value in the chain.
func (d *Deferred) Done(f func(v any, err error)) { d.subscribe(f) }

// All joins several deferreds into one that resolves to a []any holding the
// values in input order once every input has resolved. The first failure
// fails the join; remaining inputs are still observed but their outcomes are
// discarded. All of nothing resolves immediately to an empty slice.
func All(ds ...*Deferred) *Deferred {
	out := New()
	if len(ds) == 0 {
		out.Resolve([]any{})
		return out
	}
	var (
		mu        sync.Mutex
		values    = make([]any, len(ds))
		remaining = len(ds)
		settled   bool
	)
	for i, d := range ds {
		i, d := i, d
		d.subscribe(func(v any, err error) {
			mu.Lock()
			if settled {
				mu.Unlock()
				return
			}
			if err != nil {
				settled = true
				mu.Unlock()
				out.settle(nil, err)
				return
			}
			values[i] = v
			remaining--
			done := remaining == 0
			if done {
				settled = true
			}
			mu.Unlock()
			if done {
				out.settle(values, nil)
			}
		})
	}
	return out
}
