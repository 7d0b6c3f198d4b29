package resolver

import (
	"context"

	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/globalid"
	"github.com/openmerce/catalogql/internal/promise"
)

func categoryFields() map[string]FieldFunc {
	return map[string]FieldFunc{
		"id":              categoryID,
		"parent":          categoryParent,
		"children":        categoryChildren,
		"ancestors":       categoryAncestorsField,
		"products":        categoryProducts,
		"backgroundImage": categoryBackgroundImage,
		"translation":     categoryTranslation,
	}
}

func categoryFrom(source any) (*catalog.Category, string) {
	rec, slug := catalog.Unwrap(source)
	c, _ := rec.(*catalog.Category)
	return c, slug
}

func categoryID(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := categoryFrom(source)
	return globalid.Encode("Category", c.ID), nil
}

func categoryParent(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, slug := categoryFrom(source)
	if c.ParentID == 0 {
		return nil, nil
	}
	return s.loaders.CategoryByID.Load(c.ParentID).Then(wrapAs[*catalog.Category](slug)), nil
}

func categoryChildren(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, slug := categoryFrom(source)
	return s.loaders.CategoryChildren.Load(c.ID).Then(func(v any) (any, error) {
		children, _ := v.([]*catalog.Category)
		return catalog.WrapAll(children, slug), nil
	}), nil
}

// categoryAncestors walks the parent chain through the loader, yielding the
// ancestors root-first.
func categoryAncestors(s *Session, c *catalog.Category, slug string) *promise.Deferred {
	if c.ParentID == 0 {
		return promise.Of([]*catalog.ChannelContext{})
	}
	return s.loaders.CategoryByID.Load(c.ParentID).Then(func(v any) (any, error) {
		parent, _ := v.(*catalog.Category)
		if parent == nil {
			return []*catalog.ChannelContext{}, nil
		}
		return categoryAncestors(s, parent, slug).Then(func(rest any) (any, error) {
			chain, _ := rest.([]*catalog.ChannelContext)
			return append(chain, catalog.Wrap(parent, slug)), nil
		}), nil
	})
}

func categoryAncestorsField(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, slug := categoryFrom(source)
	return categoryAncestors(s, c, slug), nil
}

// categorySubtreeIDs collects the category's id plus every descendant's,
// one children batch per tree depth.
func categorySubtreeIDs(s *Session, rootID int64) *promise.Deferred {
	return s.loaders.CategoryChildren.Load(rootID).Then(func(v any) (any, error) {
		children, _ := v.([]*catalog.Category)
		if len(children) == 0 {
			return []int64{rootID}, nil
		}
		branches := make([]*promise.Deferred, len(children))
		for i, child := range children {
			branches[i] = categorySubtreeIDs(s, child.ID)
		}
		return promise.All(branches...).Then(func(sub any) (any, error) {
			ids := []int64{rootID}
			for _, branch := range sub.([]any) {
				ids = append(ids, branch.([]int64)...)
			}
			return ids, nil
		}), nil
	})
}

// categoryProducts lists the products of the category and its descendants,
// resolving the default channel when the query carries none.
func categoryProducts(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := categoryFrom(source)
	return withChannelSlug(s, source, args, func(slug string) (any, error) {
		return categorySubtreeIDs(s, c.ID).Then(func(v any) (any, error) {
			ids := v.([]int64)
			f, err := productFilterFromArgs(ctx, slug, args)
			if err != nil {
				return nil, err
			}
			f.CategoryIDs = ids
			recs, err := s.res.cfg.Stores.Catalog.Products(ctx, f)
			if err != nil {
				return nil, err
			}
			return catalog.WrapAll(recs, slug), nil
		}), nil
	})
}

func categoryBackgroundImage(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := categoryFrom(source)
	return backgroundImage(s, c.BackgroundImage, c.BackgroundImageAlt, args), nil
}

// backgroundImage renders an optional stored background, sized on demand.
func backgroundImage(s *Session, path, alt string, args map[string]any) any {
	if path == "" {
		return nil
	}
	if size, ok := argInt(args, "size"); ok && size > 0 {
		return imageMap(s.res.cfg.Media.ThumbnailURL(path, size), alt)
	}
	return imageMap(s.res.cfg.Media.ImageURL(path), alt)
}

func categoryTranslation(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
	c, _ := categoryFrom(source)
	key := translationKey{EntityType: "category", EntityID: c.ID, Language: argString(args, "languageCode")}
	return s.loaders.TranslationByEntity.Load(key).Then(func(v any) (any, error) {
		t, _ := v.(*catalog.Translation)
		return translationMap(t), nil
	}), nil
}
