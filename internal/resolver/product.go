package resolver

import (
	"context"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/globalid"
	"github.com/openmerce/catalogql/internal/gqlerr"
	"github.com/openmerce/catalogql/internal/pricing"
	"github.com/openmerce/catalogql/internal/promise"
)

func productFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id":                  productID,
		"thumbnail":           productThumbnail,
		"images":              productImages,
		"imageById":           productImageByID,
		"variants":            productVariants,
		"collections":         productCollections,
		"category":            productCategory,
		"productType":         productProductType,
		"attributes":          productAttributes,
		"pricing":             productPricing,
		"minimalVariantPrice": productMinimalVariantPrice,
		"isAvailable":         productIsAvailable,
		"taxType":             productTaxType,
		"weight":              productWeight,
		"metadata":            productMetadata,
		"translation":         productTranslation,

		"channelListing":  Require(auth.ManageProducts, productChannelListing),
		"purchaseCost":    Require(auth.ManageProducts, productPurchaseCost),
		"margin":          Require(auth.ManageProducts, productMargin),
		"privateMetadata": Require(auth.ManageProducts, productPrivateMetadata),
	}
}

func productFrom(source any) (*catalog.Product, string) {
	rec, slug := catalog.Unwrap(source)
	p, _ := rec.(*catalog.Product)
	return p, slug
}

func productID(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	return globalid.Encode("Product", p.ID), nil
}

func productThumbnail(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	size, _ := argInt(args, "size")
	return s.loaders.ImagesByProduct.Load(p.ID).Then(func(v any) (any, error) {
		images, _ := v.([]*catalog.ProductImage)
		if len(images) == 0 {
			return nil, nil
		}
		first := images[0]
		return imageMap(s.res.cfg.Media.ThumbnailURL(first.Path, size), first.Alt), nil
	}), nil
}

func productImages(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	return s.loaders.ImagesByProduct.Load(p.ID), nil
}

func productImageByID(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	raw := argString(args, "id")
	pk, err := globalid.DecodeAs(raw, "ProductImage")
	if err != nil {
		return nil, err
	}
	return s.loaders.ImageByID.Load(pk).Then(func(v any) (any, error) {
		img, _ := v.(*catalog.ProductImage)
		if img == nil || img.ProductID != p.ID {
			return nil, gqlerr.NotFound("product image %q not found", raw)
		}
		return img, nil
	}), nil
}

func productVariants(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	return s.loaders.VariantsByProduct.Load(p.ID).Then(func(v any) (any, error) {
		variants, _ := v.([]*catalog.ProductVariant)
		return catalog.WrapAll(variants, slug), nil
	}), nil
}

func productCollections(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	return s.loaders.CollectionsByProduct.Load(p.ID).Then(func(v any) (any, error) {
		collections, _ := v.([]*catalog.Collection)
		return catalog.WrapAll(collections, slug), nil
	}), nil
}

func productCategory(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	if p.CategoryID == 0 {
		return nil, nil
	}
	return s.loaders.CategoryByID.Load(p.CategoryID).Then(wrapAs[*catalog.Category](slug)), nil
}

func productProductType(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	return s.loaders.ProductTypeByID.Load(p.ProductTypeID).Then(wrapAs[*catalog.ProductType](slug)), nil
}

func productAttributes(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	return s.loaders.AttributesByProduct.Load(p.ID), nil
}

// productPricingJoin gathers every input the pricing aggregators need in one
// parallel batch: listing, variant listings, collections, active discounts.
func productPricingJoin(ctx context.Context, s *Session, p *catalog.Product, slug string) *promise.Deferred {
	rc := catalog.RequestContextFrom(ctx)
	return promise.All(
		s.loaders.ProductListing.Load(listingKey{ID: p.ID, Channel: slug}),
		s.loaders.VariantListingsByProduct.Load(listingKey{ID: p.ID, Channel: slug}),
		s.loaders.CollectionsByProduct.Load(p.ID),
		s.loaders.DiscountsAt.Load(rc.RequestTime),
	)
}

func productPricingInput(ctx context.Context, s *Session, p *catalog.Product, parts []any) pricing.ProductPricingInput {
	rc := catalog.RequestContextFrom(ctx)
	listing, _ := parts[0].(*catalog.ProductChannelListing)
	variantListings, _ := parts[1].([]*catalog.VariantChannelListing)
	collections, _ := parts[2].([]*catalog.Collection)
	discounts, _ := parts[3].([]*catalog.DiscountInfo)
	return pricing.ProductPricingInput{
		Product:         p,
		ProductListing:  listing,
		VariantListings: variantListings,
		Collections:     collections,
		Discounts:       discounts,
		LocalCurrency:   rc.Currency,
		Converter:       s.res.cfg.Converter,
	}
}

func productPricing(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	if slug == "" {
		return nil, nil
	}
	return productPricingJoin(ctx, s, p, slug).Then(func(v any) (any, error) {
		info := pricing.ProductPricing(productPricingInput(ctx, s, p, v.([]any)))
		return productPricingMap(info), nil
	}), nil
}

func productMinimalVariantPrice(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	if slug == "" {
		return nil, nil
	}
	return productPricingJoin(ctx, s, p, slug).Then(func(v any) (any, error) {
		info := pricing.ProductPricing(productPricingInput(ctx, s, p, v.([]any)))
		if info == nil {
			return nil, nil
		}
		return moneyMap(info.PriceRange.Start.Gross), nil
	}), nil
}

func productIsAvailable(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	if slug == "" {
		return false, nil
	}
	rc := catalog.RequestContextFrom(ctx)
	return productPricingJoin(ctx, s, p, slug).Then(func(v any) (any, error) {
		parts := v.([]any)
		listing, _ := parts[0].(*catalog.ProductChannelListing)
		variantListings, _ := parts[1].([]*catalog.VariantChannelListing)
		published := listing != nil && listing.IsPublished &&
			(listing.PublicationDate == nil || !listing.PublicationDate.After(rc.RequestTime))
		return published && len(variantListings) > 0, nil
	}), nil
}

func productChannelListing(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	if slug == "" {
		return nil, nil
	}
	return s.loaders.ProductListing.Load(listingKey{ID: p.ID, Channel: slug}), nil
}

func productPurchaseCost(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	if slug == "" {
		return nil, nil
	}
	return s.loaders.VariantListingsByProduct.Load(listingKey{ID: p.ID, Channel: slug}).Then(func(v any) (any, error) {
		listings, _ := v.([]*catalog.VariantChannelListing)
		if len(listings) == 0 {
			return nil, nil
		}
		costRange, _ := pricing.ProductCosts(listings)
		return moneyRangeMap(costRange), nil
	}), nil
}

func productMargin(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, slug := productFrom(source)
	if slug == "" {
		return nil, nil
	}
	return s.loaders.VariantListingsByProduct.Load(listingKey{ID: p.ID, Channel: slug}).Then(func(v any) (any, error) {
		listings, _ := v.([]*catalog.VariantChannelListing)
		if len(listings) == 0 {
			return nil, nil
		}
		_, marginRange := pricing.ProductCosts(listings)
		return marginMap(marginRange), nil
	}), nil
}

func productTaxType(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	if s.res.cfg.Taxes == nil {
		return nil, nil
	}
	tt, ok := s.res.cfg.Taxes.TaxType(p)
	if !ok {
		return nil, nil
	}
	return map[string]any{"description": tt.Description, "taxCode": tt.TaxCode}, nil
}

func productWeight(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	if p.WeightGrams == 0 {
		return nil, nil
	}
	return weightMap(p.WeightGrams), nil
}

func productMetadata(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	return metadataList(p.Metadata), nil
}

func productPrivateMetadata(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	return metadataList(p.PrivateMetadata), nil
}

func productTranslation(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	p, _ := productFrom(source)
	lang := argString(args, "languageCode")
	key := translationKey{EntityType: "product", EntityID: p.ID, Language: lang}
	return s.loaders.TranslationByEntity.Load(key).Then(func(v any) (any, error) {
		t, _ := v.(*catalog.Translation)
		return translationMap(t), nil
	}), nil
}
