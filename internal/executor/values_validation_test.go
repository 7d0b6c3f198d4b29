package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const valuesSDL = `
type Query {
  search(term: String!, first: Int = 10, channel: String): [String!]
}
`

func TestVariableCoercionRequired(t *testing.T) {
	rt := NewMockRuntime(nil)
	ex := NewExecutor(rt, mustBuildSchema(t, valuesSDL))
	doc := mustParseQuery(t, `query ($term: String!) { search(term: $term) }`)

	res := ex.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) != 1 {
		t.Fatalf("expected missing-variable error, got %v", res.Errors)
	}
}

func TestVariableDefaultsApply(t *testing.T) {
	var got map[string]any
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.search": func(ctx context.Context, source any, args map[string]any) (any, error) {
			got = args
			return []any{}, nil
		},
	})
	ex := NewExecutor(rt, mustBuildSchema(t, valuesSDL))
	doc := mustParseQuery(t, `query ($term: String! = "mug") { search(term: $term) }`)

	res := ex.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := map[string]any{"term": "mug", "first": 10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestArgumentDefaultAndCoercion(t *testing.T) {
	var got map[string]any
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.search": func(ctx context.Context, source any, args map[string]any) (any, error) {
			got = args
			return []any{}, nil
		},
	})
	ex := NewExecutor(rt, mustBuildSchema(t, valuesSDL))
	doc := mustParseQuery(t, `{ search(term: "shirt", first: "25") }`)

	res := ex.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := map[string]any{"term": "shirt", "first": 25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestFragmentsAndDirectives(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.search": NewMockValueResolver([]any{"a"}),
	})
	ex := NewExecutor(rt, mustBuildSchema(t, valuesSDL))
	doc := mustParseQuery(t, `
		query ($skipIt: Boolean! = true) {
			first: search(term: "x") @skip(if: $skipIt)
			second: search(term: "y") @include(if: true)
			...extra
		}
		fragment extra on Query {
			third: search(term: "z") @include(if: false)
		}
	`)

	res := ex.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := map[string]any{"second": []any{"a"}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}
