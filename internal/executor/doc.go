// Package executor implements a breadth-first, batch-friendly GraphQL
// executor built around deferred values. Resolvers either return a value
// immediately or hand back a *promise.Deferred that a batch loader settles;
// the executor coalesces all deferreds discovered at one depth into a single
// flush of the loader registry.
//
// # Overview
//
// The executor follows a level-by-level execution model designed to:
//   - Expand immediately-resolvable fields without adding batch depth.
//   - Collect deferred fields encountered at the current depth and settle
//     them with a single call to Runtime.FlushBatches.
//   - Complete values according to the GraphQL specification (lists, leafs,
//     objects, abstract types), including Non-Null null-propagation rules.
//   - Accumulate located errors while allowing partial success.
//
// # Preparation
//
// Before execution, the executor:
//  1. Chooses the operation (by name or by uniqueness when unnamed).
//  2. Coerces variables from the provided input against operation variable
//     definitions, producing a variableValues map. Errors here stop execution.
//  3. Builds an execution state: schema, document, operation, coerced
//     variables, root value, and the injected Runtime implementation.
//  4. Determines the root object type from the operation and collects the
//     root selection set.
//
// # Execution Model
//
// The executor models work in three conceptual sets:
//   - Frontier: the currently reachable immediate work; it expands downward
//     at once and does not increment depth.
//   - Pending: deferred field resolutions discovered while expanding this
//     depth; their loads are queued on per-request batch loaders and settle
//     together on the next flush.
//   - Response tree: a mutable tree where completed values are written at
//     their response paths.
//
// Execution loop (per depth):
//
//	A. Expansion
//	   - For each field in the current selection set, compute argument values
//	     and call Runtime.Resolve. A plain value is completed immediately; an
//	     object result keeps expanding in place (depth does not increase).
//	   - A *promise.Deferred result is parked as a pending field. Its batch
//	     load is already queued on the request's loader registry.
//
//	B. Flush
//	   - Once the frontier is drained the executor calls Runtime.FlushBatches
//	     once, which runs every queued batch load and settles deferreds.
//	     Continuations chained on those deferreds run during settling and may
//	     queue loads for the next depth.
//
//	C. Completion
//	   - Every settled pending field is completed into the response tree.
//	     Object completions expand new subfields, whose deferred children
//	     become the next depth's pending set.
//
//	D. Non-Null propagation and pruning
//	   - A Non-Null violation at path p sets the nearest nullable ancestor to
//	     null and marks that ancestor path as a tombstone. Pending fields
//	     under a tombstoned path are dropped before the next flush.
//
// The invariant this preserves: for a query whose deferred chains reach
// depth d, FlushBatches runs O(d) times, never once per field. Sibling
// fields at the same depth share one flush, which is what lets their loads
// coalesce into single batched backend calls.
//
// # Value Completion
//
// The executor implements GraphQL value completion using runtime hooks:
//   - Non-Null: unwrap and complete the inner type. If the inner completion
//     produced null, record a Non-Null violation and propagate null upwards.
//   - Null: nil results produce GraphQL null.
//   - List: complete each element recursively with index-aware paths. A null
//     element for a Non-Null inner type nullifies the entire list value.
//   - Leaf (Scalar/Enum): defer to Runtime.SerializeLeafValue to produce a
//     JSON-safe Go value.
//   - Abstract (Interface/Union): defer to Runtime.ResolveType to determine
//     the concrete object type, validate it against the schema, then
//     complete as an object.
//
// # Errors and Partial Success
//
// Errors are accumulated as located GraphQL errors (message + path), with the
// failure classification code carried in extensions. For a Non-Null field, a
// null result or error triggers propagation to the nearest nullable ancestor;
// otherwise the field value is set to null and execution continues. Deferred
// outcomes are independent: one failed load does not affect its batch
// siblings.
package executor
