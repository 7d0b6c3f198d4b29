package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/openmerce/catalogql/internal/promise"
)

// MockResolver resolves a single field; MockRuntime adapts it for both
// immediate and deferred resolution in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// CallKind identifies whether a field resolved immediately or through a
// deferred settled by a flush.
const (
	CallKindImmediate = "immediate"
	CallKindDeferred  = "deferred"
)

// NewMockValueResolver returns a MockResolver that always returns the provided value.
func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always returns the provided error.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// Call records one field resolution. Deferred calls within the same flush
// share a BatchID.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int // >0 for deferred fields settled in the same flush, 0 for immediate
}

type queuedResolution struct {
	key      string
	source   any
	args     map[string]any
	deferred *promise.Deferred
}

// MockRuntime implements Runtime with a resolver registry and a call log.
// Fields marked deferred return pending deferreds from Resolve and settle on
// the next FlushBatches, mirroring how batch loaders behave.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	deferred  map[string]bool
	queue     []queuedResolution
	calls     []Call
	flushSeq  int

	typeResolver func(value any) (string, error)
	serializer   func(val any, typeName string) (any, error)
}

// NewMockRuntime creates a MockRuntime with the provided resolvers.
// The resolvers map keys are of the form "ObjectType.Field".
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers: make(map[string]MockResolver),
		deferred:  make(map[string]bool),
		typeResolver: func(value any) (string, error) {
			if mv, ok := value.(map[string]any); ok {
				if typename, ok := mv["__typename"].(string); ok {
					return typename, nil
				}
			}
			return "", fmt.Errorf("cannot resolve type")
		},
		serializer: func(val any, typeName string) (any, error) {
			return val, nil
		},
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or updates a resolver for the given object type and field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetDeferred marks a field as deferred: Resolve returns a pending deferred
// that settles on the next FlushBatches.
func (m *MockRuntime) SetDeferred(objectType, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferred[objectType+"."+field] = true
}

func SetTypeResolver(r Runtime, f func(value any) (string, error)) {
	if mr, ok := r.(*MockRuntime); ok {
		mr.mu.Lock()
		mr.typeResolver = f
		mr.mu.Unlock()
	}
}

func SetSerializer(r Runtime, f func(val any, typeName string) (any, error)) {
	if mr, ok := r.(*MockRuntime); ok {
		mr.mu.Lock()
		mr.serializer = f
		mr.mu.Unlock()
	}
}

// Resolve implements Runtime.Resolve.
func (m *MockRuntime) Resolve(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	key := objectType + "." + field

	m.mu.Lock()
	r := m.resolvers[key]
	isDeferred := m.deferred[key]
	m.mu.Unlock()

	if isDeferred {
		d := promise.New()
		m.mu.Lock()
		m.queue = append(m.queue, queuedResolution{key: key, source: source, args: args, deferred: d})
		m.mu.Unlock()
		return d, nil
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Kind:       CallKindImmediate,
		ObjectType: objectType,
		Field:      field,
		Source:     source,
		Args:       args,
	})
	m.mu.Unlock()

	if r == nil {
		return nil, nil
	}
	return r(ctx, source, args)
}

// FlushBatches implements Runtime.FlushBatches: every queued deferred settles
// in one flush, sharing a batch id in the call log.
func (m *MockRuntime) FlushBatches(ctx context.Context) bool {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	if len(queue) == 0 {
		m.mu.Unlock()
		return false
	}
	m.flushSeq++
	batchID := m.flushSeq
	m.mu.Unlock()

	for _, q := range queue {
		m.mu.Lock()
		r := m.resolvers[q.key]
		m.mu.Unlock()

		obj, fld := splitKey(q.key)
		m.mu.Lock()
		m.calls = append(m.calls, Call{
			Kind:       CallKindDeferred,
			ObjectType: obj,
			Field:      fld,
			Source:     q.source,
			Args:       q.args,
			BatchID:    batchID,
		})
		m.mu.Unlock()

		if r == nil {
			q.deferred.Resolve(nil)
			continue
		}
		val, err := r(ctx, q.source, q.args)
		if err != nil {
			q.deferred.Fail(err)
			continue
		}
		q.deferred.Resolve(val)
	}
	return true
}

// ResolveType implements Runtime.ResolveType
func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if m.typeResolver == nil {
		return "", fmt.Errorf("type resolver not configured")
	}
	return m.typeResolver(value)
}

// SerializeLeafValue implements Runtime.SerializeLeafValue
func (m *MockRuntime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	if m.serializer == nil {
		return value, nil
	}
	return m.serializer(value, scalarOrEnumTypeName)
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and counters (resolvers remain).
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.queue = nil
	m.flushSeq = 0
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
