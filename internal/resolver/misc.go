package resolver

import (
	"context"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/globalid"
)

func productTypeFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id":       productTypeID,
		"products": productTypeProducts,
		"weight":   productTypeWeight,

		"productAttributes":   productTypeProductAttributes,
		"variantAttributes":   productTypeVariantAttributes,
		"availableAttributes": Require(auth.ManageProducts, productTypeAvailableAttributes),
	}
}

func productTypeFrom(source any) (*catalog.ProductType, string) {
	rec, slug := catalog.Unwrap(source)
	t, _ := rec.(*catalog.ProductType)
	return t, slug
}

func productTypeID(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	t, _ := productTypeFrom(source)
	return globalid.Encode("ProductType", t.ID), nil
}

func productTypeProducts(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	t, _ := productTypeFrom(source)
	return withChannelSlug(s, source, args, func(slug string) (any, error) {
		f, err := productFilterFromArgs(ctx, slug, args)
		if err != nil {
			return nil, err
		}
		f.ProductTypeID = t.ID
		recs, err := s.res.cfg.Stores.Catalog.Products(ctx, f)
		if err != nil {
			return nil, err
		}
		return catalog.WrapAll(recs, slug), nil
	})
}

func productTypeWeight(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	t, _ := productTypeFrom(source)
	if t.WeightGrams == 0 {
		return nil, nil
	}
	return weightMap(t.WeightGrams), nil
}

func productTypeProductAttributes(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	t, _ := productTypeFrom(source)
	return s.loaders.ProductAttributesByType.Load(t.ID), nil
}

func productTypeVariantAttributes(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	t, _ := productTypeFrom(source)
	return s.loaders.VariantAttributesByType.Load(t.ID), nil
}

func productTypeAvailableAttributes(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	t, _ := productTypeFrom(source)
	return s.loaders.AvailableAttributesByType.Load(t.ID), nil
}

func productImageFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id":  productImageID,
		"url": productImageURL,
	}
}

func productImageFrom(source any) *catalog.ProductImage {
	rec, _ := catalog.Unwrap(source)
	img, _ := rec.(*catalog.ProductImage)
	return img
}

func productImageID(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	img := productImageFrom(source)
	return globalid.Encode("ProductImage", img.ID), nil
}

// productImageURL returns the stored original when no size is requested, a
// sized rendition otherwise.
func productImageURL(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	img := productImageFrom(source)
	if size, ok := argInt(args, "size"); ok && size > 0 {
		return s.res.cfg.Media.ThumbnailURL(img.Path, size), nil
	}
	return s.res.cfg.Media.ImageURL(img.Path), nil
}

func channelFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			rec, _ := catalog.Unwrap(source)
			return globalid.Encode("Channel", rec.PK()), nil
		},
	}
}

func stockFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			rec, _ := catalog.Unwrap(source)
			return globalid.Encode("Stock", rec.PK()), nil
		},
	}
}

func digitalContentFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			rec, _ := catalog.Unwrap(source)
			return globalid.Encode("DigitalContent", rec.PK()), nil
		},
	}
}

func selectedAttributeFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"attribute": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			sel := source.(*catalog.SelectedAttribute)
			return sel.Attribute, nil
		},
		"values": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			sel := source.(*catalog.SelectedAttribute)
			return sel.Values, nil
		},
	}
}

func attributeFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			rec, _ := catalog.Unwrap(source)
			return globalid.Encode("Attribute", rec.PK()), nil
		},
	}
}

func attributeValueFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			rec, _ := catalog.Unwrap(source)
			return globalid.Encode("AttributeValue", rec.PK()), nil
		},
	}
}

func productChannelListingFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			rec, _ := catalog.Unwrap(source)
			return globalid.Encode("ProductChannelListing", rec.PK()), nil
		},
		"channel": func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
			listing := source.(*catalog.ProductChannelListing)
			return s.loaders.ChannelBySlug.Load(listing.ChannelSlug).Then(wrapAs[*catalog.Channel]("")), nil
		},
	}
}
