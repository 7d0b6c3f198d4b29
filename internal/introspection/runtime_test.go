package introspection

import (
	"context"
	"testing"

	"github.com/openmerce/catalogql/internal/executor"
	"github.com/openmerce/catalogql/internal/language"
	"github.com/openmerce/catalogql/internal/schema"
)

// noopRuntime implements executor.Runtime with no behaviour.
type noopRuntime struct{}

func (noopRuntime) Resolve(context.Context, string, string, any, map[string]any) (any, error) {
	return nil, nil
}

func (noopRuntime) FlushBatches(context.Context) bool { return false }

func (noopRuntime) ResolveType(context.Context, string, any) (string, error) {
	return "", nil
}

func (noopRuntime) SerializeLeafValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sdl := `type Query { hello: String }`
	sch, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return sch
}

func TestSchemaQueryTypeIntrospection(t *testing.T) {
	sch := buildSchema(t)
	wrapper := Wrap(noopRuntime{}, sch)
	exec := executor.NewExecutor(wrapper.Runtime, wrapper.Schema)
	doc, err := language.ParseQuery("{__schema{queryType{name}}}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	schData := res.Data["__schema"].(map[string]any)
	qt := schData["queryType"].(map[string]any)
	if qt["name"].(string) != "Query" {
		t.Fatalf("queryType.name = %v", qt["name"])
	}
}

func TestTypeQueryResolvesFields(t *testing.T) {
	sch := buildSchema(t)
	wrapper := Wrap(noopRuntime{}, sch)
	exec := executor.NewExecutor(wrapper.Runtime, wrapper.Schema)
	doc, err := language.ParseQuery(`{__type(name: "Query"){kind fields{name type{kind name}}}}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	typ := res.Data["__type"].(map[string]any)
	if typ["kind"] != "OBJECT" {
		t.Fatalf("kind = %v", typ["kind"])
	}
	fields := typ["fields"].([]any)
	if len(fields) != 1 {
		t.Fatalf("expected the hello field, got %v", fields)
	}
	hello := fields[0].(map[string]any)
	if hello["name"] != "hello" {
		t.Fatalf("field name = %v", hello["name"])
	}
	ref := hello["type"].(map[string]any)
	if ref["kind"] != "SCALAR" || ref["name"] != "String" {
		t.Fatalf("field type = %v", ref)
	}
}

func TestTypenameResolvesWithoutWrapper(t *testing.T) {
	sch := buildSchema(t)
	exec := executor.NewExecutor(noopRuntime{}, sch)
	doc, err := language.ParseQuery("{__typename}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if res.Data["__typename"] != "Query" {
		t.Fatalf("expected __typename to be Query, got %v", res.Data["__typename"])
	}
}
