package resolver

import (
	"context"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/globalid"
	"github.com/openmerce/catalogql/internal/gqlerr"
	"github.com/openmerce/catalogql/internal/store"
)

func queryFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"product":        queryProduct,
		"products":       queryProducts,
		"productVariant": queryProductVariant,
		"category":       queryCategory,
		"categories":     queryCategories,
		"collection":     queryCollection,
		"collections":    queryCollections,
		"productType":    queryProductType,
		"channel":        queryChannel,
		"node":           queryNode,
	}
}

func queryProduct(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	slug := argString(args, "channel")
	if productSlug := argString(args, "slug"); productSlug != "" {
		return s.loaders.ProductBySlug.Load(productSlug).Then(wrapAs[*catalog.Product](slug)), nil
	}
	pk, err := decodeArgID(args, "id", "Product")
	if err != nil {
		return nil, err
	}
	return s.loaders.ProductByID.Load(pk).Then(wrapAs[*catalog.Product](slug)), nil
}

func queryProducts(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	return withChannelSlug(s, source, args, func(slug string) (any, error) {
		f, err := productFilterFromArgs(ctx, slug, args)
		if err != nil {
			return nil, err
		}
		recs, err := s.res.cfg.Stores.Catalog.Products(ctx, f)
		if err != nil {
			return nil, err
		}
		return catalog.WrapAll(recs, slug), nil
	})
}

// productFilterFromArgs builds the visibility-aware product filter: callers
// without the manage-products permission only see products published in the
// channel at request time.
func productFilterFromArgs(ctx context.Context, slug string, args map[string]any) (store.ProductFilter, error) {
	rc := catalog.RequestContextFrom(ctx)
	f := store.ProductFilter{
		ChannelSlug:   slug,
		PublishedOnly: !rc.Requester.Has(auth.ManageProducts),
		Now:           rc.RequestTime,
		Search:        argString(args, "search"),
	}
	if first, ok := argInt(args, "first"); ok {
		f.First = first
	}
	if rawIDs, ok := args["categories"].([]any); ok {
		for _, raw := range rawIDs {
			id, _ := raw.(string)
			pk, err := globalid.DecodeAs(id, "Category")
			if err != nil {
				return store.ProductFilter{}, err
			}
			f.CategoryIDs = append(f.CategoryIDs, pk)
		}
	}
	if raw := argString(args, "collection"); raw != "" {
		pk, err := globalid.DecodeAs(raw, "Collection")
		if err != nil {
			return store.ProductFilter{}, err
		}
		f.CollectionID = pk
	}
	return f, nil
}

func queryProductVariant(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	slug := argString(args, "channel")
	if sku := argString(args, "sku"); sku != "" {
		return s.loaders.VariantBySKU.Load(sku).Then(wrapAs[*catalog.ProductVariant](slug)), nil
	}
	pk, err := decodeArgID(args, "id", "ProductVariant")
	if err != nil {
		return nil, err
	}
	return s.loaders.VariantByID.Load(pk).Then(wrapAs[*catalog.ProductVariant](slug)), nil
}

func queryCategory(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	pk, err := decodeArgID(args, "id", "Category")
	if err != nil {
		return nil, err
	}
	return s.loaders.CategoryByID.Load(pk).Then(wrapAs[*catalog.Category]("")), nil
}

func queryCategories(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	f := store.CategoryFilter{Search: argString(args, "search")}
	if level, ok := argInt(args, "level"); ok {
		f.Level = &level
	}
	if first, ok := argInt(args, "first"); ok {
		f.First = first
	}
	recs, err := s.res.cfg.Stores.Catalog.Categories(ctx, f)
	if err != nil {
		return nil, err
	}
	return catalog.WrapAll(recs, ""), nil
}

func queryCollection(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	slug := argString(args, "channel")
	pk, err := decodeArgID(args, "id", "Collection")
	if err != nil {
		return nil, err
	}
	return s.loaders.CollectionByID.Load(pk).Then(wrapAs[*catalog.Collection](slug)), nil
}

func queryCollections(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	return withChannelSlug(s, source, args, func(slug string) (any, error) {
		rc := catalog.RequestContextFrom(ctx)
		f := store.CollectionFilter{
			ChannelSlug:   slug,
			PublishedOnly: !rc.Requester.Has(auth.ManageProducts),
			Now:           rc.RequestTime,
			Search:        argString(args, "search"),
		}
		if first, ok := argInt(args, "first"); ok {
			f.First = first
		}
		recs, err := s.res.cfg.Stores.Catalog.Collections(ctx, f)
		if err != nil {
			return nil, err
		}
		return catalog.WrapAll(recs, slug), nil
	})
}

func queryProductType(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	pk, err := decodeArgID(args, "id", "ProductType")
	if err != nil {
		return nil, err
	}
	return s.loaders.ProductTypeByID.Load(pk).Then(wrapAs[*catalog.ProductType]("")), nil
}

func queryChannel(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	if slug := argString(args, "slug"); slug != "" {
		return s.loaders.ChannelBySlug.Load(slug).Then(wrapAs[*catalog.Channel]("")), nil
	}
	return s.loaders.DefaultChannel.Load(unitKey{}).Then(wrapAs[*catalog.Channel]("")), nil
}

// queryNode resolves an opaque typed id to the concrete entity it names.
func queryNode(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	typeName, pk, err := globalid.Decode(argString(args, "id"))
	if err != nil {
		return nil, err
	}
	switch typeName {
	case "Product":
		return s.loaders.ProductByID.Load(pk).Then(wrapAs[*catalog.Product]("")), nil
	case "ProductVariant":
		return s.loaders.VariantByID.Load(pk).Then(wrapAs[*catalog.ProductVariant]("")), nil
	case "Category":
		return s.loaders.CategoryByID.Load(pk).Then(wrapAs[*catalog.Category]("")), nil
	case "Collection":
		return s.loaders.CollectionByID.Load(pk).Then(wrapAs[*catalog.Collection]("")), nil
	case "ProductType":
		return s.loaders.ProductTypeByID.Load(pk).Then(wrapAs[*catalog.ProductType]("")), nil
	case "ProductImage":
		return s.loaders.ImageByID.Load(pk).Then(wrapAs[*catalog.ProductImage]("")), nil
	case "Channel":
		return nil, gqlerr.NotFound("channels resolve by slug, not id")
	}
	return nil, gqlerr.NotFound("unknown node type %q", typeName)
}
