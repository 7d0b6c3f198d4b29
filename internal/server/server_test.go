package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/media"
	"github.com/openmerce/catalogql/internal/resolver"
	"github.com/openmerce/catalogql/internal/store"
)

func newTestStore() *store.Memory {
	m := store.NewMemory()
	m.Channels = []*catalog.Channel{
		{ID: 1, Name: "Web", Slug: "web", IsActive: true, CurrencyCode: "USD", IsDefault: true},
	}
	m.AllProducts = []*catalog.Product{
		{ID: 1, Name: "Blue Shirt", Slug: "blue-shirt", ProductTypeID: 1,
			PrivateMetadata: map[string]string{"cost_center": "41"}},
	}
	m.ProductTypes = []*catalog.ProductType{{ID: 1, Name: "Shirt", Slug: "shirt"}}
	m.ProductListing = []*catalog.ProductChannelListing{
		{ID: 1, ProductID: 1, ChannelID: 1, ChannelSlug: "web", IsPublished: true},
	}
	return m
}

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	res := resolver.New(resolver.Config{
		Stores: newTestStore().Stores(),
		Media:  media.NewBaseURLRenderer("https://cdn.example.com/media"),
	})
	sch, err := resolver.Schema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	h, err := New(res, sch, opts...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func postJSON(t *testing.T, h *Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response JSON: %v\n%s", err, w.Body.String())
	}
	return out
}

func TestPostSingleQuery(t *testing.T) {
	h := newTestHandler(t)
	w := postJSON(t, h, `{"query":"{ products(channel: \"web\") { slug } }"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decodeBody(t, w)
	if _, hasErrors := out["errors"]; hasErrors {
		t.Fatalf("unexpected errors: %s", w.Body.String())
	}
	products := out["data"].(map[string]any)["products"].([]any)
	if len(products) != 1 || products[0].(map[string]any)["slug"] != "blue-shirt" {
		t.Fatalf("unexpected products: %v", products)
	}
}

func TestGetQuery(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest("GET", "/graphql?query="+
		"%7B%20products(channel%3A%20%22web%22)%20%7B%20slug%20%7D%20%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decodeBody(t, w)
	if out["data"] == nil {
		t.Fatalf("missing data: %s", w.Body.String())
	}
}

func TestBatchedQueries(t *testing.T) {
	h := newTestHandler(t)
	w := postJSON(t, h, `[
		{"query":"{ products(channel: \"web\") { slug } }"},
		{"query":"{ channel(slug: \"web\") { currencyCode } }"}
	]`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid batch JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	currency := out[1]["data"].(map[string]any)["channel"].(map[string]any)["currencyCode"]
	if currency != "USD" {
		t.Fatalf("currencyCode = %v", currency)
	}
}

func TestBearerTokenGatesPrivateMetadata(t *testing.T) {
	tokens := auth.StaticTokens{
		"s3cr3t": auth.NewPermissionSet(auth.ManageProducts),
	}
	h := newTestHandler(t, WithAuthenticator(tokens))
	query := `{"query":"{ product(slug: \"blue-shirt\") { privateMetadata { key } } }"}`

	w := postJSON(t, h, query, nil)
	out := decodeBody(t, w)
	errs := out["errors"].([]any)
	code := errs[0].(map[string]any)["extensions"].(map[string]any)["code"]
	if code != "PERMISSION_DENIED" {
		t.Fatalf("anonymous error code = %v", code)
	}

	w = postJSON(t, h, query, map[string]string{"Authorization": "Bearer s3cr3t"})
	out = decodeBody(t, w)
	if _, hasErrors := out["errors"]; hasErrors {
		t.Fatalf("token request failed: %s", w.Body.String())
	}
	items := out["data"].(map[string]any)["product"].(map[string]any)["privateMetadata"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["key"] != "cost_center" {
		t.Fatalf("unexpected private metadata: %v", items)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("*"))

	// simple request
	w := postJSON(t, h, `{"query":"{ channel(slug: \"web\") { slug } }"}`, map[string]string{
		"Origin": "http://example.com",
	})
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	// preflight
	pre := httptest.NewRequest("OPTIONS", "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(10))
	w := postJSON(t, h, `{"query":"{ channel { slug } }"}`, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest("PUT", "/graphql", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", w.Code)
	}
}

func TestGraphiQLServedOnHTMLGet(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest("GET", "/graphql", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("content type %q", w.Header().Get("Content-Type"))
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("GraphiQL")) {
		t.Fatalf("IDE page not served")
	}
}

func TestIntrospectionQuery(t *testing.T) {
	h := newTestHandler(t)
	w := postJSON(t, h, `{"query":"{ __schema { queryType { name } } }"}`, nil)
	out := decodeBody(t, w)
	if _, hasErrors := out["errors"]; hasErrors {
		t.Fatalf("introspection failed: %s", w.Body.String())
	}
	name := out["data"].(map[string]any)["__schema"].(map[string]any)["queryType"].(map[string]any)["name"]
	if name != "Query" {
		t.Fatalf("queryType.name = %v", name)
	}
}

func TestDefaultTimeoutIsApplied(t *testing.T) {
	h := newTestHandler(t, WithTimeout(time.Minute))
	if h.opt.Timeout != time.Minute {
		t.Fatalf("timeout = %v", h.opt.Timeout)
	}
}
