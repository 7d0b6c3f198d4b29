package resolver

import (
	"context"

	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/globalid"
)

func collectionFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id":              collectionID,
		"products":        collectionProducts,
		"isVisible":       collectionIsVisible,
		"backgroundImage": collectionBackgroundImage,
		"translation":     collectionTranslation,
	}
}

func collectionFrom(source any) (*catalog.Collection, string) {
	rec, slug := catalog.Unwrap(source)
	c, _ := rec.(*catalog.Collection)
	return c, slug
}

func collectionID(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := collectionFrom(source)
	return globalid.Encode("Collection", c.ID), nil
}

func collectionProducts(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := collectionFrom(source)
	return withChannelSlug(s, source, args, func(slug string) (any, error) {
		f, err := productFilterFromArgs(ctx, slug, args)
		if err != nil {
			return nil, err
		}
		f.CollectionID = c.ID
		recs, err := s.res.cfg.Stores.Catalog.Products(ctx, f)
		if err != nil {
			return nil, err
		}
		return catalog.WrapAll(recs, slug), nil
	})
}

// collectionIsVisible reports whether the collection is published and its
// publication date has passed at request time.
func collectionIsVisible(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := collectionFrom(source)
	if !c.IsPublished {
		return false, nil
	}
	rc := catalog.RequestContextFrom(ctx)
	return c.PublicationDate == nil || !c.PublicationDate.After(rc.RequestTime), nil
}

func collectionBackgroundImage(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := collectionFrom(source)
	return backgroundImage(s, c.BackgroundImage, c.BackgroundImageAlt, args), nil
}

func collectionTranslation(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := collectionFrom(source)
	key := translationKey{EntityType: "collection", EntityID: c.ID, Language: argString(args, "languageCode")}
	return s.loaders.TranslationByEntity.Load(key).Then(func(v any) (any, error) {
		t, _ := v.(*catalog.Translation)
		return translationMap(t), nil
	}), nil
}
