package resolver

import (
	"context"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/globalid"
	"github.com/openmerce/catalogql/internal/pricing"
	"github.com/openmerce/catalogql/internal/promise"
	"github.com/openmerce/catalogql/internal/store"
)

func variantFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id":                variantID,
		"product":           variantProduct,
		"attributes":        variantAttributes,
		"pricing":           variantPricing,
		"quantityAvailable": variantQuantityAvailable,
		"stockQuantity":     variantQuantityAvailable,
		"isAvailable":       variantIsAvailable,
		"weight":            variantWeight,
		"metadata":          variantMetadata,
		"translation":       variantTranslation,

		"price":             Require(auth.ManageProducts, variantPrice),
		"costPrice":         Require(auth.ManageProducts, variantCostPrice),
		"margin":            Require(auth.ManageProducts, variantMargin),
		"quantity":          Require(auth.ManageProducts, variantQuantity),
		"quantityAllocated": Require(auth.ManageProducts, variantQuantityAllocated),
		"quantityOrdered":   Require(auth.ManageProducts, variantQuantityOrdered),
		"revenue":           Require(auth.ManageProducts, variantRevenue),
		"stocks":            Require(auth.ManageProducts, variantStocks),
		"digitalContent":    Require(auth.ManageProducts, variantDigitalContent),
		"privateMetadata":   Require(auth.ManageProducts, variantPrivateMetadata),
	}
}

func variantFrom(source any) (*catalog.ProductVariant, string) {
	rec, slug := catalog.Unwrap(source)
	v, _ := rec.(*catalog.ProductVariant)
	return v, slug
}

func variantID(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	return globalid.Encode("ProductVariant", v.ID), nil
}

func variantProduct(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, slug := variantFrom(source)
	return s.loaders.ProductByID.Load(v.ProductID).Then(wrapAs[*catalog.Product](slug)), nil
}

func variantAttributes(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	return s.loaders.AttributesByVariant.Load(v.ID), nil
}

func variantPricing(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, slug := variantFrom(source)
	if slug == "" {
		return nil, nil
	}
	rc := catalog.RequestContextFrom(ctx)
	join := promise.All(
		s.loaders.ProductByID.Load(v.ProductID),
		s.loaders.VariantListing.Load(listingKey{ID: v.ID, Channel: slug}),
		s.loaders.CollectionsByProduct.Load(v.ProductID),
		s.loaders.DiscountsAt.Load(rc.RequestTime),
	)
	return join.Then(func(loaded any) (any, error) {
		parts := loaded.([]any)
		product, _ := parts[0].(*catalog.Product)
		listing, _ := parts[1].(*catalog.VariantChannelListing)
		collections, _ := parts[2].([]*catalog.Collection)
		discounts, _ := parts[3].([]*catalog.DiscountInfo)
		info := pricing.VariantPricing(pricing.VariantPricingInput{
			Variant:        v,
			Product:        product,
			VariantListing: listing,
			Collections:    collections,
			Discounts:      discounts,
			LocalCurrency:  rc.Currency,
			Converter:      s.res.cfg.Converter,
		})
		return variantPricingMap(info), nil
	}), nil
}

// availableQuantity sums sellable stock across warehouses, floored at zero
// and capped at the checkout maximum. Variants that do not track inventory
// always report the maximum.
func (s *Session) availableQuantity(v *catalog.ProductVariant, country string) (any, error) {
	if !v.TrackInventory {
		return s.maxQuantity(), nil
	}
	return s.loaders.StocksByVariant.Load(stockKey{VariantID: v.ID, Country: country}).Then(func(loaded any) (any, error) {
		stocks, _ := loaded.([]*catalog.Stock)
		total := 0
		for _, st := range stocks {
			total += st.Available()
		}
		if total < 0 {
			total = 0
		}
		if total > s.maxQuantity() {
			total = s.maxQuantity()
		}
		return total, nil
	}), nil
}

func variantQuantityAvailable(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	country := argString(args, "countryCode")
	if country == "" {
		country = catalog.RequestContextFrom(ctx).Country
	}
	return s.availableQuantity(v, country)
}

func variantIsAvailable(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	qty, err := variantQuantityAvailable(ctx, s, source, args)
	if err != nil {
		return nil, err
	}
	if d, ok := qty.(*promise.Deferred); ok {
		return d.Then(func(v any) (any, error) {
			return v.(int) > 0, nil
		}), nil
	}
	return qty.(int) > 0, nil
}

func variantPrice(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, slug := variantFrom(source)
	if slug == "" {
		return nil, nil
	}
	return s.loaders.VariantListing.Load(listingKey{ID: v.ID, Channel: slug}).Then(func(loaded any) (any, error) {
		listing, _ := loaded.(*catalog.VariantChannelListing)
		if listing == nil {
			return nil, nil
		}
		return moneyMap(pricing.NewMoney(listing.Price, listing.Currency)), nil
	}), nil
}

func variantCostPrice(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, slug := variantFrom(source)
	if slug == "" {
		return nil, nil
	}
	return s.loaders.VariantListing.Load(listingKey{ID: v.ID, Channel: slug}).Then(func(loaded any) (any, error) {
		listing, _ := loaded.(*catalog.VariantChannelListing)
		if listing == nil || listing.CostPrice == nil {
			return nil, nil
		}
		return moneyMap(pricing.NewMoney(*listing.CostPrice, listing.Currency)), nil
	}), nil
}

func variantMargin(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, slug := variantFrom(source)
	if slug == "" {
		return nil, nil
	}
	return s.loaders.VariantListing.Load(listingKey{ID: v.ID, Channel: slug}).Then(func(loaded any) (any, error) {
		listing, _ := loaded.(*catalog.VariantChannelListing)
		return pricing.MarginForListing(listing), nil
	}), nil
}

func variantQuantity(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	return variantStockSum(s, source, func(st *catalog.Stock) int { return st.Quantity })
}

func variantQuantityAllocated(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	return variantStockSum(s, source, func(st *catalog.Stock) int { return st.Allocated })
}

func variantStockSum(s *Session, source any, pick func(*catalog.Stock) int) (any, error) {
	v, _ := variantFrom(source)
	return s.loaders.StocksByVariant.Load(stockKey{VariantID: v.ID}).Then(func(loaded any) (any, error) {
		stocks, _ := loaded.([]*catalog.Stock)
		total := 0
		for _, st := range stocks {
			total += pick(st)
		}
		return total, nil
	}), nil
}

// variantQuantityOrdered prefers the reporting annotation when a prior query
// attached one; otherwise it aggregates order lines on demand.
func variantQuantityOrdered(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	if v.QuantityOrdered != nil {
		return int(*v.QuantityOrdered), nil
	}
	return s.loaders.QuantityOrderedByVariant.Load(v.ID).Then(func(loaded any) (any, error) {
		qty, _ := loaded.(*int64)
		if qty == nil {
			return nil, nil
		}
		return int(*qty), nil
	}), nil
}

func variantRevenue(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	rc := catalog.RequestContextFrom(ctx)
	since, err := periodStart(rc.RequestTime, argString(args, "period"))
	if err != nil {
		return nil, err
	}
	return s.loaders.RevenueByVariant.Load(revenueKey{VariantID: v.ID, Since: since}).Then(func(loaded any) (any, error) {
		rev, _ := loaded.(*store.VariantRevenue)
		if rev == nil {
			return nil, nil
		}
		return moneyMap(pricing.NewMoney(rev.Amount, rev.Currency)), nil
	}), nil
}

func variantStocks(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	country := argString(args, "countryCode")
	return s.loaders.StocksByVariant.Load(stockKey{VariantID: v.ID, Country: country}), nil
}

func variantDigitalContent(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	return s.loaders.DigitalContentByVariant.Load(v.ID).Then(func(loaded any) (any, error) {
		content, _ := loaded.(*catalog.DigitalContent)
		if content == nil {
			return nil, nil
		}
		return content, nil
	}), nil
}

func variantWeight(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	if v.WeightGrams == 0 {
		return nil, nil
	}
	return weightMap(v.WeightGrams), nil
}

func variantMetadata(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	return metadataList(v.Metadata), nil
}

func variantPrivateMetadata(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	return metadataList(v.PrivateMetadata), nil
}

func variantTranslation(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	v, _ := variantFrom(source)
	key := translationKey{EntityType: "variant", EntityID: v.ID, Language: argString(args, "languageCode")}
	return s.loaders.TranslationByEntity.Load(key).Then(func(loaded any) (any, error) {
		t, _ := loaded.(*catalog.Translation)
		return translationMap(t), nil
	}), nil
}
