package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/executor"
	"github.com/openmerce/catalogql/internal/globalid"
	"github.com/openmerce/catalogql/internal/language"
	"github.com/openmerce/catalogql/internal/media"
	"github.com/openmerce/catalogql/internal/store"
)

var fixtureNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newFixtureStore builds a small catalog: two published shirts and one
// draft in the shirts category, one tracked and one untracked variant on
// the blue shirt, a 10% category sale, and stock split across two
// warehouses.
func newFixtureStore() *store.Memory {
	m := store.NewMemory()

	m.Channels = []*catalog.Channel{
		{ID: 1, Name: "United States", Slug: "us", IsActive: true, CurrencyCode: "USD", IsDefault: true},
		{ID: 2, Name: "Europe", Slug: "eu", IsActive: true, CurrencyCode: "EUR"},
	}
	m.AllCategories = []*catalog.Category{
		{ID: 1, Name: "Apparel", Slug: "apparel", Level: 0},
		{ID: 2, Name: "Shirts", Slug: "shirts", ParentID: 1, Level: 1},
	}
	m.ProductTypes = []*catalog.ProductType{
		{ID: 1, Name: "Shirt", Slug: "shirt", HasVariants: true, IsShippingRequired: true},
	}
	m.AllProducts = []*catalog.Product{
		{
			ID: 1, Name: "Blue Shirt", Slug: "blue-shirt", CategoryID: 2, ProductTypeID: 1,
			ChargeTaxes: true, UpdatedAt: fixtureNow,
			Metadata:        map[string]string{"vendor": "acme"},
			PrivateMetadata: map[string]string{"cost_center": "41"},
		},
		{ID: 2, Name: "Red Shirt", Slug: "red-shirt", CategoryID: 2, ProductTypeID: 1},
		{ID: 3, Name: "Draft Shirt", Slug: "draft-shirt", CategoryID: 2, ProductTypeID: 1},
	}
	m.Variants = []*catalog.ProductVariant{
		{ID: 1, ProductID: 1, Name: "S", SKU: "BLU-S", TrackInventory: true, WeightGrams: 250},
		{ID: 2, ProductID: 1, Name: "M", SKU: "BLU-M", TrackInventory: false},
		{ID: 3, ProductID: 2, Name: "S", SKU: "RED-S", TrackInventory: true},
		{ID: 4, ProductID: 2, Name: "M", SKU: "RED-M", TrackInventory: true},
	}
	m.ProductListing = []*catalog.ProductChannelListing{
		{ID: 1, ProductID: 1, ChannelID: 1, ChannelSlug: "us", IsPublished: true, VisibleInListings: true},
		{ID: 2, ProductID: 2, ChannelID: 1, ChannelSlug: "us", IsPublished: true, VisibleInListings: true},
	}
	cost := dec("12")
	m.VariantListing = []*catalog.VariantChannelListing{
		{ID: 1, VariantID: 1, ChannelID: 1, ChannelSlug: "us", Currency: "USD", Price: dec("20"), CostPrice: &cost},
		{ID: 2, VariantID: 2, ChannelID: 1, ChannelSlug: "us", Currency: "USD", Price: dec("30")},
		{ID: 3, VariantID: 3, ChannelID: 1, ChannelSlug: "us", Currency: "USD", Price: dec("15")},
		{ID: 4, VariantID: 4, ChannelID: 1, ChannelSlug: "us", Currency: "USD", Price: dec("15")},
	}
	m.Stocks = []*catalog.Stock{
		{ID: 1, VariantID: 1, WarehouseName: "East", CountryCode: "US", Quantity: 7, Allocated: 2},
		{ID: 2, VariantID: 1, WarehouseName: "EU Hub", CountryCode: "DE", Quantity: 3, Allocated: 1},
		{ID: 3, VariantID: 3, WarehouseName: "East", CountryCode: "US", Quantity: 0, Allocated: 0},
		{ID: 4, VariantID: 4, WarehouseName: "East", CountryCode: "US", Quantity: 500, Allocated: 0},
	}
	m.Images = []*catalog.ProductImage{
		{ID: 1, ProductID: 1, Path: "products/blue.jpg", Alt: "side", SortOrder: 1},
		{ID: 2, ProductID: 1, Path: "products/blue-front.jpg", Alt: "front", SortOrder: 0},
	}
	m.AllCollections = []*catalog.Collection{
		{ID: 1, Name: "Summer", Slug: "summer", IsPublished: true},
	}
	m.CollectionLinks[1] = []int64{1}
	m.Discounts = []*catalog.DiscountInfo{
		{
			Sale: &catalog.Sale{
				ID: 1, Name: "Spring", Type: catalog.SaleTypePercentage,
				Value: dec("10"), StartAt: fixtureNow.Add(-24 * time.Hour),
			},
			CategoryIDs: map[int64]struct{}{2: {}},
		},
	}
	m.AllAttributes = []*catalog.Attribute{
		{ID: 1, Name: "Color", Slug: "color", InputType: "dropdown"},
		{ID: 2, Name: "Size", Slug: "size", InputType: "dropdown"},
		{ID: 3, Name: "Material", Slug: "material", InputType: "dropdown"},
	}
	m.TypeAttrs[1] = []int64{1}
	m.TypeVariantAttr[1] = []int64{2}
	m.ProductAttrs[1] = []*catalog.SelectedAttribute{
		{Attribute: m.AllAttributes[0], Values: []*catalog.AttributeValue{{ID: 1, Name: "Blue", Slug: "blue"}}},
	}
	m.Translations = []*catalog.Translation{
		{EntityType: "product", EntityID: 1, Language: "ko", Name: "블루 셔츠", Description: "부드러운 면 셔츠"},
	}
	m.Revenues = []store.VariantRevenue{
		{VariantID: 1, Amount: dec("120.50"), Currency: "USD"},
	}
	m.Ordered[1] = 9
	return m
}

func newTestResolvers(m *store.Memory) *Resolvers {
	return New(Config{
		Stores: m.Stores(),
		Media:  media.NewBaseURLRenderer("https://cdn.example.com/media"),
	})
}

func anonymousCtx() context.Context {
	rc := catalog.NewRequestContext(fixtureNow)
	return catalog.WithRequestContext(context.Background(), rc)
}

func adminCtx() context.Context {
	rc := catalog.NewRequestContext(fixtureNow)
	rc.Requester = auth.NewPermissionSet(auth.ManageProducts)
	return catalog.WithRequestContext(context.Background(), rc)
}

func execute(t *testing.T, ctx context.Context, r *Resolvers, query string) *executor.ExecutionResult {
	t.Helper()
	sch, err := Schema()
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	doc, err := language.ParseQuery(query)
	if err != nil {
		t.Fatalf("parsing query: %v", err)
	}
	ex := executor.NewExecutor(r.NewSession(), sch)
	return ex.ExecuteRequest(ctx, doc, "", nil, nil)
}

func mustData(t *testing.T, res *executor.ExecutionResult) map[string]any {
	t.Helper()
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	return res.Data
}

func TestProductBySlugResolvesRecordAndLoaderFields(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		product(slug: "blue-shirt", channel: "us") {
			id
			name
			slug
			chargeTaxes
			updatedAt
			category { name slug level }
			productType { name hasVariants }
			variants { sku }
			images { url alt }
			thumbnail(size: 100) { url alt }
			metadata { key value }
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"product": map[string]any{
			"id":          globalid.Encode("Product", 1),
			"name":        "Blue Shirt",
			"slug":        "blue-shirt",
			"chargeTaxes": true,
			"updatedAt":   "2026-03-14T15:00:00Z",
			"category":    map[string]any{"name": "Shirts", "slug": "shirts", "level": 1},
			"productType": map[string]any{"name": "Shirt", "hasVariants": true},
			"variants": []any{
				map[string]any{"sku": "BLU-S"},
				map[string]any{"sku": "BLU-M"},
			},
			"images": []any{
				map[string]any{"url": "https://cdn.example.com/media/products/blue-front.jpg", "alt": "front"},
				map[string]any{"url": "https://cdn.example.com/media/products/blue.jpg", "alt": "side"},
			},
			"thumbnail": map[string]any{
				"url": "https://cdn.example.com/media/thumbnails/120x120/products/blue-front.jpg",
				"alt": "front",
			},
			"metadata": []any{
				map[string]any{"key": "vendor", "value": "acme"},
			},
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestProductListBatchesSharedParentsOnce(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		products(channel: "us") {
			slug
			category { slug }
			productType { slug }
		}
	}`)
	data := mustData(t, res)

	products := data["products"].([]any)
	if len(products) != 2 {
		t.Fatalf("expected 2 published products, got %d", len(products))
	}
	// Both products share the category and the type: one batch each.
	if got := m.Calls("categories_by_ids"); got != 1 {
		t.Fatalf("categories_by_ids calls = %d, want 1", got)
	}
	if got := m.Calls("product_types_by_ids"); got != 1 {
		t.Fatalf("product_types_by_ids calls = %d, want 1", got)
	}
	if got := m.Calls("products_filtered"); got != 1 {
		t.Fatalf("products_filtered calls = %d, want 1", got)
	}
}

func TestProductListVisibilityFollowsPermission(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{ products(channel: "us") { slug } }`)
	if got := len(mustData(t, res)["products"].([]any)); got != 2 {
		t.Fatalf("anonymous sees %d products, want 2", got)
	}

	res = execute(t, adminCtx(), r, `{ products(channel: "us") { slug } }`)
	if got := len(mustData(t, res)["products"].([]any)); got != 3 {
		t.Fatalf("admin sees %d products, want 3 including the draft", got)
	}
}

func TestQuantityAvailableSumsCapsAndHonorsTracking(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		tracked: productVariant(sku: "BLU-S", channel: "us") {
			everywhere: quantityAvailable
			us: quantityAvailable(countryCode: "US")
			isAvailable
		}
		untracked: productVariant(sku: "BLU-M", channel: "us") {
			quantityAvailable
			isAvailable
		}
		outOfStock: productVariant(sku: "RED-S", channel: "us") {
			quantityAvailable
			isAvailable
		}
		overstocked: productVariant(sku: "RED-M", channel: "us") {
			quantityAvailable
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		// 5 sellable in East plus 2 in EU Hub.
		"tracked":   map[string]any{"everywhere": 7, "us": 5, "isAvailable": true},
		"untracked": map[string]any{"quantityAvailable": 50, "isAvailable": true},
		"outOfStock": map[string]any{
			"quantityAvailable": 0, "isAvailable": false,
		},
		// 500 on hand reports the checkout maximum.
		"overstocked": map[string]any{"quantityAvailable": 50},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestGatedFieldsFailWithoutLeavingSiblings(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		productVariant(sku: "BLU-S", channel: "us") {
			sku
			costPrice { amount }
			margin
		}
	}`)

	variant := res.Data["productVariant"].(map[string]any)
	if variant["sku"] != "BLU-S" {
		t.Fatalf("sku = %v, want BLU-S", variant["sku"])
	}
	if variant["costPrice"] != nil || variant["margin"] != nil {
		t.Fatalf("gated fields leaked: costPrice=%v margin=%v", variant["costPrice"], variant["margin"])
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %v", res.Errors)
	}
	for _, e := range res.Errors {
		if code := e.Extensions["code"]; code != "PERMISSION_DENIED" {
			t.Fatalf("error code = %v, want PERMISSION_DENIED", code)
		}
	}
	// Denied fields never reach the store.
	if got := m.Calls("variant_listings"); got != 0 {
		t.Fatalf("variant_listings calls = %d, want 0", got)
	}
}

func TestGatedFieldsResolveForManager(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, adminCtx(), r, `{
		productVariant(sku: "BLU-S", channel: "us") {
			price { amount currency }
			costPrice { amount currency }
			margin
			quantity
			quantityAllocated
			quantityOrdered
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"productVariant": map[string]any{
			"price":             map[string]any{"amount": 20.0, "currency": "USD"},
			"costPrice":         map[string]any{"amount": 12.0, "currency": "USD"},
			"margin":            40,
			"quantity":          10,
			"quantityAllocated": 3,
			"quantityOrdered":   9,
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestVariantPricingAppliesCategorySale(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		productVariant(sku: "BLU-S", channel: "us") {
			pricing {
				onSale
				price { gross { amount currency } }
				priceUndiscounted { gross { amount } }
				discount { gross { amount } }
			}
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"productVariant": map[string]any{
			"pricing": map[string]any{
				"onSale":            true,
				"price":             map[string]any{"gross": map[string]any{"amount": 18.0, "currency": "USD"}},
				"priceUndiscounted": map[string]any{"gross": map[string]any{"amount": 20.0}},
				"discount":          map[string]any{"gross": map[string]any{"amount": 2.0}},
			},
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestProductPricingRangeSpansVariants(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		product(slug: "blue-shirt", channel: "us") {
			isAvailable
			pricing {
				onSale
				priceRange {
					start { gross { amount } }
					stop { gross { amount } }
				}
				priceRangeUndiscounted {
					start { gross { amount } }
					stop { gross { amount } }
				}
			}
			minimalVariantPrice { amount currency }
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"product": map[string]any{
			"isAvailable": true,
			"pricing": map[string]any{
				"onSale": true,
				"priceRange": map[string]any{
					"start": map[string]any{"gross": map[string]any{"amount": 18.0}},
					"stop":  map[string]any{"gross": map[string]any{"amount": 27.0}},
				},
				"priceRangeUndiscounted": map[string]any{
					"start": map[string]any{"gross": map[string]any{"amount": 20.0}},
					"stop":  map[string]any{"gross": map[string]any{"amount": 30.0}},
				},
			},
			"minimalVariantPrice": map[string]any{"amount": 18.0, "currency": "USD"},
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	// One parallel join: each pricing input loads exactly once.
	for _, op := range []string{"product_listings", "variant_listings_by_product_ids", "collections_by_product_ids", "active_discounts"} {
		if got := m.Calls(op); got != 1 {
			t.Fatalf("%s calls = %d, want 1", op, got)
		}
	}
}

func TestPricingIsNullWithoutChannelScope(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		productVariant(sku: "BLU-S") { pricing { onSale } }
	}`)
	data := mustData(t, res)
	if data["productVariant"].(map[string]any)["pricing"] != nil {
		t.Fatalf("pricing resolved without a channel: %v", data)
	}
}

func TestDefaultChannelScopesCategoryProducts(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	id := globalid.Encode("Category", 1)
	res := execute(t, anonymousCtx(), r, `{
		category(id: "`+id+`") {
			slug
			products { slug }
		}
	}`)
	data := mustData(t, res)

	category := data["category"].(map[string]any)
	products := category["products"].([]any)
	if len(products) != 2 {
		t.Fatalf("expected 2 products under apparel via default channel, got %d", len(products))
	}
	if got := m.Calls("default_channel"); got != 1 {
		t.Fatalf("default_channel calls = %d, want 1", got)
	}
}

func TestDefaultChannelMissingFailsWithConfigurationError(t *testing.T) {
	m := newFixtureStore()
	for _, ch := range m.Channels {
		ch.IsDefault = false
	}
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{ products { slug } }`)
	if len(res.Errors) == 0 {
		t.Fatal("expected a configuration error")
	}
	if code := res.Errors[0].Extensions["code"]; code != "CONFIGURATION_ERROR" {
		t.Fatalf("error code = %v, want CONFIGURATION_ERROR", code)
	}
}

func TestCategoryTreeFields(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	id := globalid.Encode("Category", 2)
	res := execute(t, anonymousCtx(), r, `{
		category(id: "`+id+`") {
			slug
			parent { slug }
			ancestors { slug }
			children { slug }
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"category": map[string]any{
			"slug":      "shirts",
			"parent":    map[string]any{"slug": "apparel"},
			"ancestors": []any{map[string]any{"slug": "apparel"}},
			"children":  []any{},
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestNodeResolvesTypedGlobalIDs(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		product: node(id: "`+globalid.Encode("Product", 1)+`") {
			__typename
			id
			... on Product { slug }
		}
		category: node(id: "`+globalid.Encode("Category", 1)+`") {
			__typename
			... on Category { slug }
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"product": map[string]any{
			"__typename": "Product",
			"id":         globalid.Encode("Product", 1),
			"slug":       "blue-shirt",
		},
		"category": map[string]any{
			"__typename": "Category",
			"slug":       "apparel",
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestRevenueAggregatesFromPeriodStart(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, adminCtx(), r, `{
		productVariant(sku: "BLU-S", channel: "us") {
			revenue(period: TODAY) { amount currency }
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"productVariant": map[string]any{
			"revenue": map[string]any{"amount": 120.5, "currency": "USD"},
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if got := m.Calls("variant_revenues"); got != 1 {
		t.Fatalf("variant_revenues calls = %d, want 1", got)
	}
}

func TestTranslationLoadsByLanguage(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		product(slug: "blue-shirt") {
			korean: translation(languageCode: "ko") { name languageCode }
			german: translation(languageCode: "de") { name }
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"product": map[string]any{
			"korean": map[string]any{"name": "블루 셔츠", "languageCode": "ko"},
			"german": nil,
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestProductTypeAttributeSets(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	id := globalid.Encode("ProductType", 1)
	res := execute(t, adminCtx(), r, `{
		productType(id: "`+id+`") {
			productAttributes { slug }
			variantAttributes { slug }
			availableAttributes { slug }
		}
	}`)
	data := mustData(t, res)

	want := map[string]any{
		"productType": map[string]any{
			"productAttributes":   []any{map[string]any{"slug": "color"}},
			"variantAttributes":   []any{map[string]any{"slug": "size"}},
			"availableAttributes": []any{map[string]any{"slug": "material"}},
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestImageByIDRejectsForeignImage(t *testing.T) {
	m := newFixtureStore()
	r := newTestResolvers(m)

	imgID := globalid.Encode("ProductImage", 1)
	res := execute(t, anonymousCtx(), r, `{
		product(slug: "red-shirt") {
			imageById(id: "`+imgID+`") { url }
		}
	}`)

	if res.Data["product"].(map[string]any)["imageById"] != nil {
		t.Fatalf("foreign image resolved: %v", res.Data)
	}
	if len(res.Errors) != 1 || res.Errors[0].Extensions["code"] != "NOT_FOUND" {
		t.Fatalf("expected a NOT_FOUND error, got %v", res.Errors)
	}
}

func TestStoreFailureSurfacesAsUpstreamError(t *testing.T) {
	m := newFixtureStore()
	m.Fail["stocks_by_variant_ids"] = context.DeadlineExceeded
	r := newTestResolvers(m)

	res := execute(t, anonymousCtx(), r, `{
		productVariant(sku: "BLU-S", channel: "us") {
			sku
			quantityAvailable
		}
	}`)

	// quantityAvailable is non-null, so the failure nullifies the variant.
	if res.Data["productVariant"] != nil {
		t.Fatalf("expected a nullified variant, got %v", res.Data)
	}
	if len(res.Errors) == 0 {
		t.Fatalf("expected an error from the failing stock batch")
	}
}
