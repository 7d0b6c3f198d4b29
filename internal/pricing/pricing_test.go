package pricing

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/openmerce/catalogql/internal/catalog"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func listing(variantID int64, price string, cost string) *catalog.VariantChannelListing {
	l := &catalog.VariantChannelListing{
		VariantID:   variantID,
		ChannelSlug: "default-channel",
		Currency:    "USD",
		Price:       dec(price),
	}
	if cost != "" {
		c := dec(cost)
		l.CostPrice = &c
	}
	return l
}

func saleDiscount(id int64, typ catalog.SaleType, value string, productIDs ...int64) *catalog.DiscountInfo {
	products := make(map[int64]struct{}, len(productIDs))
	for _, id := range productIDs {
		products[id] = struct{}{}
	}
	return &catalog.DiscountInfo{
		Sale: &catalog.Sale{
			ID:      id,
			Type:    typ,
			Value:   dec(value),
			StartAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		ProductIDs:    products,
		CategoryIDs:   map[int64]struct{}{},
		CollectionIDs: map[int64]struct{}{},
	}
}

func TestVariantPricingNoListing(t *testing.T) {
	if got := VariantPricing(VariantPricingInput{}); got != nil {
		t.Fatalf("expected nil pricing without a listing, got %+v", got)
	}
}

func TestVariantPricingPercentageDiscount(t *testing.T) {
	product := &catalog.Product{ID: 1}
	in := VariantPricingInput{
		Variant:        &catalog.ProductVariant{ID: 10, ProductID: 1},
		Product:        product,
		VariantListing: listing(10, "20.00", ""),
		Discounts:      []*catalog.DiscountInfo{saleDiscount(1, catalog.SaleTypePercentage, "25", 1)},
	}
	info := VariantPricing(in)
	if info == nil || !info.OnSale {
		t.Fatalf("expected on-sale pricing, got %+v", info)
	}
	if !info.Price.Gross.Amount.Equal(dec("15.00")) {
		t.Fatalf("expected discounted price 15.00, got %s", info.Price.Gross.Amount)
	}
	if !info.PriceUndiscounted.Gross.Amount.Equal(dec("20.00")) {
		t.Fatalf("expected undiscounted price 20.00, got %s", info.PriceUndiscounted.Gross.Amount)
	}
	if !info.Discount.Gross.Amount.Equal(dec("5.00")) {
		t.Fatalf("expected discount 5.00, got %s", info.Discount.Gross.Amount)
	}
}

func TestVariantPricingBestDiscountWins(t *testing.T) {
	in := VariantPricingInput{
		Variant:        &catalog.ProductVariant{ID: 10, ProductID: 1},
		Product:        &catalog.Product{ID: 1},
		VariantListing: listing(10, "20.00", ""),
		Discounts: []*catalog.DiscountInfo{
			saleDiscount(2, catalog.SaleTypeFixed, "3.00", 1),
			saleDiscount(1, catalog.SaleTypePercentage, "50", 1),
		},
	}
	info := VariantPricing(in)
	if !info.Price.Gross.Amount.Equal(dec("10.00")) {
		t.Fatalf("expected best discount to win (10.00), got %s", info.Price.Gross.Amount)
	}
}

func TestVariantPricingNeverNegative(t *testing.T) {
	in := VariantPricingInput{
		Variant:        &catalog.ProductVariant{ID: 10, ProductID: 1},
		Product:        &catalog.Product{ID: 1},
		VariantListing: listing(10, "5.00", ""),
		Discounts:      []*catalog.DiscountInfo{saleDiscount(1, catalog.SaleTypeFixed, "8.00", 1)},
	}
	info := VariantPricing(in)
	if info.Price.Gross.Amount.IsNegative() || !info.Price.Gross.Amount.Equal(decimal.Zero) {
		t.Fatalf("expected price floored at zero, got %s", info.Price.Gross.Amount)
	}
}

func TestVariantPricingIgnoresUnrelatedDiscount(t *testing.T) {
	in := VariantPricingInput{
		Variant:        &catalog.ProductVariant{ID: 10, ProductID: 1},
		Product:        &catalog.Product{ID: 1},
		VariantListing: listing(10, "20.00", ""),
		Discounts:      []*catalog.DiscountInfo{saleDiscount(1, catalog.SaleTypePercentage, "25", 99)},
	}
	info := VariantPricing(in)
	if info.OnSale || info.Discount != nil {
		t.Fatalf("unrelated discount must not apply: %+v", info)
	}
}

func TestProductPricingRanges(t *testing.T) {
	in := ProductPricingInput{
		Product: &catalog.Product{ID: 1},
		VariantListings: []*catalog.VariantChannelListing{
			listing(11, "30.00", ""),
			listing(10, "10.00", ""),
		},
		Discounts: []*catalog.DiscountInfo{saleDiscount(1, catalog.SaleTypePercentage, "10", 1)},
	}
	info := ProductPricing(in)
	if info == nil || !info.OnSale {
		t.Fatalf("expected on-sale product pricing, got %+v", info)
	}
	if !info.PriceRange.Start.Gross.Amount.Equal(dec("9.00")) ||
		!info.PriceRange.Stop.Gross.Amount.Equal(dec("27.00")) {
		t.Fatalf("unexpected discounted range: %s..%s",
			info.PriceRange.Start.Gross.Amount, info.PriceRange.Stop.Gross.Amount)
	}
	if !info.PriceRangeUndiscounted.Start.Gross.Amount.Equal(dec("10.00")) ||
		!info.PriceRangeUndiscounted.Stop.Gross.Amount.Equal(dec("30.00")) {
		t.Fatalf("unexpected undiscounted range: %s..%s",
			info.PriceRangeUndiscounted.Start.Gross.Amount, info.PriceRangeUndiscounted.Stop.Gross.Amount)
	}
}

func TestProductPricingIdempotent(t *testing.T) {
	in := ProductPricingInput{
		Product: &catalog.Product{ID: 1, CategoryID: 7},
		VariantListings: []*catalog.VariantChannelListing{
			listing(10, "10.00", ""),
			listing(11, "30.00", ""),
		},
		Discounts: []*catalog.DiscountInfo{
			saleDiscount(1, catalog.SaleTypePercentage, "10", 1),
			saleDiscount(2, catalog.SaleTypeFixed, "2.50", 1),
		},
	}
	first := ProductPricing(in)
	second := ProductPricing(in)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("pricing must be idempotent (-first +second):\n%s", diff)
	}
}

func TestMarginForListing(t *testing.T) {
	if m := MarginForListing(listing(1, "0", "1.00")); m != nil {
		t.Fatalf("expected nil margin for zero price, got %d", *m)
	}
	if m := MarginForListing(listing(1, "10.00", "")); m != nil {
		t.Fatalf("expected nil margin without cost, got %d", *m)
	}
	m := MarginForListing(listing(1, "10.00", "6.00"))
	if m == nil || *m != 40 {
		t.Fatalf("expected 40%% margin, got %v", m)
	}
}

func TestProductCosts(t *testing.T) {
	costs, margins := ProductCosts([]*catalog.VariantChannelListing{
		listing(10, "10.00", "6.00"), // margin 40
		listing(11, "20.00", "5.00"), // margin 75
		listing(12, "15.00", ""),     // zero cost, no margin
	})
	if !costs.Start.Amount.Equal(decimal.Zero) || !costs.Stop.Amount.Equal(dec("6.00")) {
		t.Fatalf("unexpected cost range: %s..%s", costs.Start.Amount, costs.Stop.Amount)
	}
	if margins.Start != 40 || margins.Stop != 75 {
		t.Fatalf("unexpected margin range: %+v", margins)
	}
}

func TestProductCostsEmpty(t *testing.T) {
	costs, margins := ProductCosts(nil)
	if !costs.Start.Amount.Equal(decimal.Zero) || !costs.Stop.Amount.Equal(decimal.Zero) {
		t.Fatalf("expected zero cost range, got %+v", costs)
	}
	if margins.Start != 0 || margins.Stop != 0 {
		t.Fatalf("expected zero margin range, got %+v", margins)
	}
}
