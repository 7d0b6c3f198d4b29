package executor

import (
	"context"
)

// Runtime is the host integration surface for field resolution, batch
// flushing, abstract type resolution, and leaf-value serialization used by
// the Executor.
//
// General contract
//   - The Executor performs a breadth-first execution. At each depth it
//     expands every field through Resolve. A resolver may return a settled
//     value immediately, or a *promise.Deferred that will be settled by a
//     batch loader. Once the depth is fully expanded the Executor calls
//     FlushBatches, completes every deferred that settled, and repeats until
//     no deferred remains.
//   - Errors returned from Resolve, or carried by a failed deferred, become
//     located GraphQL errors. If the field's return type is Non-Null, the
//     Executor propagates the null up to the nearest nullable ancestor.
//   - Implementations should be stateless or otherwise concurrency-safe with
//     respect to distinct operations. Within one operation the Executor calls
//     Resolve and FlushBatches from a single goroutine.
//   - Implementations must not mutate source or args values.
//
// Object/field identifiers
//   - objectType is the GraphQL type name (e.g. "Product").
//   - field is the GraphQL field name on that type (e.g. "pricing").
//   - For root fields, objectType is the root type name (e.g. "Query").
//   - source is the parent object value (nil for root).
//   - args is the map of argument names to already-coerced Go values.
//
// Abstract types and leaf values
//   - ResolveType must return the concrete type name for interface/union
//     values.
//   - SerializeLeafValue must coerce scalars and enums into JSON-safe Go
//     values. For enums, return the enum name as string.
type Runtime interface {
	// Resolve resolves a field. The returned value may be a
	// *promise.Deferred; the Executor will hold completion of the field
	// until it settles. Return (nil, nil) to produce a GraphQL null for
	// nullable fields.
	Resolve(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// FlushBatches runs every batch load queued by resolvers since the last
	// flush. It reports whether any batch executed; false means no pending
	// deferred can make progress.
	FlushBatches(ctx context.Context) bool

	// ResolveType determines the concrete runtime type name for a value of
	// an abstract GraphQL type (interface or union).
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value to a JSON-safe Go
	// value.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}
