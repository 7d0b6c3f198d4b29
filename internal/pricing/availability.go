package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/openmerce/catalogql/internal/catalog"
)

// VariantPricingInfo is the storefront pricing snapshot of one variant in
// one channel. Local-currency fields are nil unless a converter and a local
// currency are in play.
type VariantPricingInfo struct {
	OnSale                bool
	Discount              *TaxedMoney
	DiscountLocalCurrency *TaxedMoney
	Price                 *TaxedMoney
	PriceUndiscounted     *TaxedMoney
	PriceLocalCurrency    *TaxedMoney
}

// ProductPricingInfo is the storefront pricing snapshot of a product: the
// discounted and undiscounted price ranges across its variants.
type ProductPricingInfo struct {
	OnSale                  bool
	Discount                *TaxedMoney
	DiscountLocalCurrency   *TaxedMoney
	PriceRange              *TaxedMoneyRange
	PriceRangeUndiscounted  *TaxedMoneyRange
	PriceRangeLocalCurrency *TaxedMoneyRange
}

// VariantPricingInput gathers everything VariantPricing needs. The resolver
// layer assembles it from loader results once all of them are available.
type VariantPricingInput struct {
	Variant        *catalog.ProductVariant
	Product        *catalog.Product
	VariantListing *catalog.VariantChannelListing
	Collections    []*catalog.Collection
	Discounts      []*catalog.DiscountInfo
	LocalCurrency  string
	Converter      CurrencyConverter
}

// VariantPricing computes the pricing snapshot of a single variant. It
// returns nil when the variant has no listing in the channel (no price to
// show).
func VariantPricing(in VariantPricingInput) *VariantPricingInfo {
	if in.VariantListing == nil {
		return nil
	}
	base := NewMoney(in.VariantListing.Price, in.VariantListing.Currency)
	discounted := applyDiscounts(base, in.Product, in.Collections, in.Discounts)

	undiscounted := FlatTaxed(base)
	price := FlatTaxed(discounted)
	info := &VariantPricingInfo{
		OnSale:            discounted.LessThan(base),
		Price:             &price,
		PriceUndiscounted: &undiscounted,
	}
	if info.OnSale {
		d := undiscounted.Sub(price)
		info.Discount = &d
		if local, ok := convertTaxed(in.Converter, d, in.LocalCurrency); ok {
			info.DiscountLocalCurrency = &local
		}
	}
	if local, ok := convertTaxed(in.Converter, price, in.LocalCurrency); ok {
		info.PriceLocalCurrency = &local
	}
	return info
}

// ProductPricingInput gathers everything ProductPricing needs.
type ProductPricingInput struct {
	Product         *catalog.Product
	ProductListing  *catalog.ProductChannelListing
	VariantListings []*catalog.VariantChannelListing
	Collections     []*catalog.Collection
	Discounts       []*catalog.DiscountInfo
	LocalCurrency   string
	Converter       CurrencyConverter
}

// ProductPricing computes the price-range snapshot across the product's
// variant listings. It returns nil when no variant is listed in the channel.
func ProductPricing(in ProductPricingInput) *ProductPricingInfo {
	if len(in.VariantListings) == 0 {
		return nil
	}
	listings := append([]*catalog.VariantChannelListing(nil), in.VariantListings...)
	sort.Slice(listings, func(i, j int) bool { return listings[i].VariantID < listings[j].VariantID })

	currency := listings[0].Currency
	var bases, discounteds []Money
	for _, l := range listings {
		base := NewMoney(l.Price, l.Currency)
		bases = append(bases, base)
		discounteds = append(discounteds, applyDiscounts(base, in.Product, in.Collections, in.Discounts))
	}

	baseRange := moneyRange(bases, currency)
	discountedRange := moneyRange(discounteds, currency)

	priceRange := taxedRange(discountedRange)
	undiscountedRange := taxedRange(baseRange)
	info := &ProductPricingInfo{
		OnSale:                 discountedRange.Start.LessThan(baseRange.Start) || discountedRange.Stop.LessThan(baseRange.Stop),
		PriceRange:             &priceRange,
		PriceRangeUndiscounted: &undiscountedRange,
	}
	if info.OnSale {
		d := undiscountedRange.Start.Sub(priceRange.Start)
		info.Discount = &d
		if local, ok := convertTaxed(in.Converter, d, in.LocalCurrency); ok {
			info.DiscountLocalCurrency = &local
		}
	}
	if in.Converter != nil && in.LocalCurrency != "" && in.LocalCurrency != currency {
		start, okS := convertTaxed(in.Converter, priceRange.Start, in.LocalCurrency)
		stop, okE := convertTaxed(in.Converter, priceRange.Stop, in.LocalCurrency)
		if okS && okE {
			info.PriceRangeLocalCurrency = &TaxedMoneyRange{Start: start, Stop: stop}
		}
	}
	return info
}

// applyDiscounts returns the best (lowest, floored at zero) price after
// applying every discount covering the product. Discounts are visited in
// sale-id order so the result is stable regardless of load order.
func applyDiscounts(base Money, product *catalog.Product, collections []*catalog.Collection, discounts []*catalog.DiscountInfo) Money {
	if product == nil || len(discounts) == 0 {
		return base
	}
	collectionIDs := make([]int64, len(collections))
	for i, c := range collections {
		collectionIDs[i] = c.ID
	}
	ordered := append([]*catalog.DiscountInfo(nil), discounts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Sale.ID < ordered[j].Sale.ID })

	best := base
	for _, d := range ordered {
		if !d.AppliesTo(product.ID, product.CategoryID, collectionIDs) {
			continue
		}
		candidate := discountedAmount(base, d.Sale)
		if candidate.LessThan(best) {
			best = candidate
		}
	}
	return best
}

func discountedAmount(base Money, sale *catalog.Sale) Money {
	switch sale.Type {
	case catalog.SaleTypeFixed:
		return base.Sub(NewMoney(sale.Value, base.Currency))
	case catalog.SaleTypePercentage:
		fraction := sale.Value.Div(decimal.NewFromInt(100))
		reduction := base.Amount.Mul(fraction)
		return base.Sub(NewMoney(reduction, base.Currency))
	}
	return base
}

func moneyRange(values []Money, currency string) MoneyRange {
	if len(values) == 0 {
		z := ZeroMoney(currency)
		return MoneyRange{Start: z, Stop: z}
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v.LessThan(min) {
			min = v
		}
		if max.LessThan(v) {
			max = v
		}
	}
	return MoneyRange{Start: min, Stop: max}
}

func taxedRange(r MoneyRange) TaxedMoneyRange {
	return TaxedMoneyRange{Start: FlatTaxed(r.Start), Stop: FlatTaxed(r.Stop)}
}
