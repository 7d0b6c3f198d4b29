package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openmerce/catalogql/internal/gqlerr"
)

const catalogSDL = `
type Query {
  product(slug: String): Product
  products: [Product!]
}

type Product {
  name: String!
  category: Category
  pricing: Pricing
}

type Category {
  name: String!
  parent: Category
}

type Pricing {
  onSale: Boolean!
}
`

func execute(t *testing.T, rt Runtime, sdl, query string) *ExecutionResult {
	t.Helper()
	ex := NewExecutor(rt, mustBuildSchema(t, sdl))
	return ex.ExecuteRequest(context.Background(), mustParseQuery(t, query), "", nil, nil)
}

func TestImmediateFieldResolution(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.product": NewMockValueResolver(map[string]any{"id": 1}),
		"Product.name":  NewMockValueResolver("Shirt"),
	})

	res := execute(t, rt, catalogSDL, `{ product(slug: "shirt") { name } }`)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := map[string]any{"product": map[string]any{"name": "Shirt"}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	for _, c := range rt.GetCalls() {
		if c.Kind != CallKindImmediate {
			t.Fatalf("expected immediate calls only, got %+v", c)
		}
	}
}

func TestDeferredFieldsShareOneFlushPerDepth(t *testing.T) {
	products := []any{map[string]any{"id": 1}, map[string]any{"id": 2}}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.products": NewMockValueResolver(products),
		"Product.name":   NewMockValueResolver("x"),
		"Product.category": func(ctx context.Context, source any, args map[string]any) (any, error) {
			return map[string]any{"id": 9}, nil
		},
		"Category.name": NewMockValueResolver("Apparel"),
	})
	rt.SetDeferred("Product", "category")

	res := execute(t, rt, catalogSDL, `{ products { name category { name } } }`)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	// Both category fields settle in the same flush
	batchIDs := map[int]int{}
	for _, c := range rt.GetCalls() {
		if c.Kind == CallKindDeferred {
			batchIDs[c.BatchID]++
		}
	}
	if len(batchIDs) != 1 || batchIDs[1] != 2 {
		t.Fatalf("expected one flush settling 2 deferred fields, got %v", batchIDs)
	}
}

func TestDeferredDepthsFlushSequentially(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.product":    NewMockValueResolver(map[string]any{"id": 1}),
		"Product.category": NewMockValueResolver(map[string]any{"id": 2}),
		"Category.parent":  NewMockValueResolver(map[string]any{"id": 3}),
		"Category.name":    NewMockValueResolver("Apparel"),
	})
	rt.SetDeferred("Product", "category")
	rt.SetDeferred("Category", "parent")

	res := execute(t, rt, catalogSDL, `{ product { category { parent { name } } } }`)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	var batches []int
	for _, c := range rt.GetCalls() {
		if c.Kind == CallKindDeferred {
			batches = append(batches, c.BatchID)
		}
	}
	if diff := cmp.Diff([]int{1, 2}, batches); diff != "" {
		t.Fatalf("expected two sequential flushes (-want +got):\n%s", diff)
	}
}

func TestFieldErrorIsIsolated(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.product":    NewMockValueResolver(map[string]any{"id": 1}),
		"Product.name":     NewMockValueResolver("Shirt"),
		"Product.category": NewMockErrorResolver(gqlerr.NotFound("category 9 not found")),
	})
	rt.SetDeferred("Product", "category")

	res := execute(t, rt, catalogSDL, `{ product { name category { name } } }`)

	want := map[string]any{"product": map[string]any{"name": "Shirt", "category": nil}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected one error, got %v", res.Errors)
	}
	if code := res.Errors[0].Extensions["code"]; code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND code, got %v", code)
	}
}

func TestNonNullErrorPropagatesToNullableAncestor(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.product": NewMockValueResolver(map[string]any{"id": 1}),
		"Product.name":  NewMockErrorResolver(gqlerr.Upstream(nil, "name fetch failed")),
	})
	rt.SetDeferred("Product", "name")

	res := execute(t, rt, catalogSDL, `{ product { name } }`)

	// name is non-null, so product collapses to null
	want := map[string]any{"product": nil}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected propagation error")
	}
}

func TestTombstonedPendingFieldsAreDropped(t *testing.T) {
	categoryCalls := 0
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.product": NewMockValueResolver(map[string]any{"id": 1}),
		"Product.name":  NewMockErrorResolver(gqlerr.Upstream(nil, "boom")),
		"Product.category": func(ctx context.Context, source any, args map[string]any) (any, error) {
			categoryCalls++
			return map[string]any{"id": 2}, nil
		},
		"Category.name": NewMockValueResolver("Apparel"),
	})
	rt.SetDeferred("Product", "name")
	rt.SetDeferred("Product", "category")

	res := execute(t, rt, catalogSDL, `{ product { name category { name } } }`)

	if res.Data["product"] != nil {
		t.Fatalf("expected product to be nulled, got %v", res.Data)
	}
	// The flush still runs (both were queued before the failure settled), but
	// no descendant of the nulled product is expanded afterwards
	for _, c := range rt.GetCalls() {
		if c.ObjectType == "Category" {
			t.Fatalf("category subfields must not resolve under a tombstone: %+v", c)
		}
	}
	_ = categoryCalls
}

func TestListCompletionIndexesErrors(t *testing.T) {
	products := []any{map[string]any{"id": 1}, map[string]any{"id": 2}}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.products": NewMockValueResolver(products),
		"Product.name": func(ctx context.Context, source any, args map[string]any) (any, error) {
			if source.(map[string]any)["id"] == 2 {
				return nil, gqlerr.Upstream(nil, "name missing")
			}
			return "First", nil
		},
	})
	rt.SetDeferred("Product", "name")

	res := execute(t, rt, catalogSDL, `{ products { name } }`)
	if len(res.Errors) != 1 {
		t.Fatalf("expected one error, got %v", res.Errors)
	}
	path := res.Errors[0].Path
	if len(path) != 3 || path[0] != "products" || path[1] != 1 || path[2] != "name" {
		t.Fatalf("unexpected error path %v", path)
	}
}

func TestAliasesResolveIndependently(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.product": func(ctx context.Context, source any, args map[string]any) (any, error) {
			return map[string]any{"slug": args["slug"]}, nil
		},
		"Product.name": func(ctx context.Context, source any, args map[string]any) (any, error) {
			return source.(map[string]any)["slug"], nil
		},
	})

	res := execute(t, rt, catalogSDL, `{
		a: product(slug: "shirt") { name }
		b: product(slug: "mug") { name }
	}`)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := map[string]any{
		"a": map[string]any{"name": "shirt"},
		"b": map[string]any{"name": "mug"},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownOperationName(t *testing.T) {
	rt := NewMockRuntime(nil)
	ex := NewExecutor(rt, mustBuildSchema(t, catalogSDL))
	res := ex.ExecuteRequest(context.Background(), mustParseQuery(t, `query A { products { name } }`), "B", nil, nil)
	if len(res.Errors) != 1 || res.Errors[0].Message != "operation not found" {
		t.Fatalf("expected operation-not-found, got %v", res.Errors)
	}
}
