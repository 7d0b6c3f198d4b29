package resolver

import (
	"context"
	"time"

	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/loader"
	"github.com/openmerce/catalogql/internal/store"
)

// listingKey scopes a per-entity load to one channel.
type listingKey struct {
	ID      int64
	Channel string
}

// stockKey scopes a variant stock load to an optional country.
type stockKey struct {
	VariantID int64
	Country   string
}

// translationKey identifies one entity's translation in one language.
type translationKey struct {
	EntityType string
	EntityID   int64
	Language   string
}

// revenueKey identifies a variant revenue aggregate since a cutoff.
type revenueKey struct {
	VariantID int64
	Since     time.Time
}

type unitKey struct{}

// Loaders bundles every batch loader of one request. All loaders share the
// request's registry, so keys queued anywhere in the tree flush together.
type Loaders struct {
	ProductByID   *loader.Loader[int64, *catalog.Product]
	ProductBySlug *loader.Loader[string, *catalog.Product]

	VariantByID       *loader.Loader[int64, *catalog.ProductVariant]
	VariantBySKU      *loader.Loader[string, *catalog.ProductVariant]
	VariantsByProduct *loader.Loader[int64, []*catalog.ProductVariant]

	CategoryByID     *loader.Loader[int64, *catalog.Category]
	CategoryChildren *loader.Loader[int64, []*catalog.Category]

	CollectionByID       *loader.Loader[int64, *catalog.Collection]
	CollectionsByProduct *loader.Loader[int64, []*catalog.Collection]

	ProductTypeByID *loader.Loader[int64, *catalog.ProductType]

	ImageByID       *loader.Loader[int64, *catalog.ProductImage]
	ImagesByProduct *loader.Loader[int64, []*catalog.ProductImage]

	ChannelBySlug  *loader.Loader[string, *catalog.Channel]
	DefaultChannel *loader.Loader[unitKey, *catalog.Channel]

	ProductListing           *loader.Loader[listingKey, *catalog.ProductChannelListing]
	VariantListing           *loader.Loader[listingKey, *catalog.VariantChannelListing]
	VariantListingsByProduct *loader.Loader[listingKey, []*catalog.VariantChannelListing]

	AttributesByProduct *loader.Loader[int64, []*catalog.SelectedAttribute]
	AttributesByVariant *loader.Loader[int64, []*catalog.SelectedAttribute]

	ProductAttributesByType   *loader.Loader[int64, []*catalog.Attribute]
	VariantAttributesByType   *loader.Loader[int64, []*catalog.Attribute]
	AvailableAttributesByType *loader.Loader[int64, []*catalog.Attribute]

	DigitalContentByVariant *loader.Loader[int64, *catalog.DigitalContent]

	StocksByVariant *loader.Loader[stockKey, []*catalog.Stock]

	DiscountsAt *loader.Loader[time.Time, []*catalog.DiscountInfo]

	TranslationByEntity *loader.Loader[translationKey, *catalog.Translation]

	RevenueByVariant         *loader.Loader[revenueKey, *store.VariantRevenue]
	QuantityOrderedByVariant *loader.Loader[int64, *int64]
}

// NewLoaders builds the loader bundle over the given stores, registered on
// reg.
func NewLoaders(reg *loader.Registry, stores store.Stores) *Loaders {
	l := &Loaders{}

	l.ProductByID = loader.New(reg, "product_by_id",
		func(ctx context.Context, ids []int64) ([]*catalog.Product, []error) {
			recs, err := stores.Catalog.ProductsByIDs(ctx, ids)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(ids, recs, func(p *catalog.Product) int64 { return p.ID }), nil
		})

	l.ProductBySlug = loader.New(reg, "product_by_slug",
		func(ctx context.Context, slugs []string) ([]*catalog.Product, []error) {
			recs, err := stores.Catalog.ProductsBySlugs(ctx, slugs)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(slugs, recs, func(p *catalog.Product) string { return p.Slug }), nil
		})

	l.VariantByID = loader.New(reg, "variant_by_id",
		func(ctx context.Context, ids []int64) ([]*catalog.ProductVariant, []error) {
			recs, err := stores.Catalog.VariantsByIDs(ctx, ids)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(ids, recs, func(v *catalog.ProductVariant) int64 { return v.ID }), nil
		})

	l.VariantBySKU = loader.New(reg, "variant_by_sku",
		func(ctx context.Context, skus []string) ([]*catalog.ProductVariant, []error) {
			recs, err := stores.Catalog.VariantsBySKUs(ctx, skus)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(skus, recs, func(v *catalog.ProductVariant) string { return v.SKU }), nil
		})

	l.VariantsByProduct = loader.New(reg, "variants_by_product",
		func(ctx context.Context, productIDs []int64) ([][]*catalog.ProductVariant, []error) {
			recs, err := stores.Catalog.VariantsByProductIDs(ctx, productIDs)
			if err != nil {
				return nil, []error{err}
			}
			return loader.GroupByKeys(productIDs, recs, func(v *catalog.ProductVariant) int64 { return v.ProductID }), nil
		})

	l.CategoryByID = loader.New(reg, "category_by_id",
		func(ctx context.Context, ids []int64) ([]*catalog.Category, []error) {
			recs, err := stores.Catalog.CategoriesByIDs(ctx, ids)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(ids, recs, func(c *catalog.Category) int64 { return c.ID }), nil
		})

	l.CategoryChildren = loader.New(reg, "category_children",
		func(ctx context.Context, parentIDs []int64) ([][]*catalog.Category, []error) {
			recs, err := stores.Catalog.CategoriesByParentIDs(ctx, parentIDs)
			if err != nil {
				return nil, []error{err}
			}
			return loader.GroupByKeys(parentIDs, recs, func(c *catalog.Category) int64 { return c.ParentID }), nil
		})

	l.CollectionByID = loader.New(reg, "collection_by_id",
		func(ctx context.Context, ids []int64) ([]*catalog.Collection, []error) {
			recs, err := stores.Catalog.CollectionsByIDs(ctx, ids)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(ids, recs, func(c *catalog.Collection) int64 { return c.ID }), nil
		})

	l.CollectionsByProduct = loader.New(reg, "collections_by_product",
		func(ctx context.Context, productIDs []int64) ([][]*catalog.Collection, []error) {
			groups, err := stores.Catalog.CollectionsByProductIDs(ctx, productIDs)
			if err != nil {
				return nil, []error{err}
			}
			return groups, nil
		})

	l.ProductTypeByID = loader.New(reg, "product_type_by_id",
		func(ctx context.Context, ids []int64) ([]*catalog.ProductType, []error) {
			recs, err := stores.Catalog.ProductTypesByIDs(ctx, ids)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(ids, recs, func(t *catalog.ProductType) int64 { return t.ID }), nil
		})

	l.ImageByID = loader.New(reg, "image_by_id",
		func(ctx context.Context, ids []int64) ([]*catalog.ProductImage, []error) {
			recs, err := stores.Catalog.ImagesByIDs(ctx, ids)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(ids, recs, func(i *catalog.ProductImage) int64 { return i.ID }), nil
		})

	l.ImagesByProduct = loader.New(reg, "images_by_product",
		func(ctx context.Context, productIDs []int64) ([][]*catalog.ProductImage, []error) {
			recs, err := stores.Catalog.ImagesByProductIDs(ctx, productIDs)
			if err != nil {
				return nil, []error{err}
			}
			return loader.GroupByKeys(productIDs, recs, func(i *catalog.ProductImage) int64 { return i.ProductID }), nil
		})

	l.ChannelBySlug = loader.New(reg, "channel_by_slug",
		func(ctx context.Context, slugs []string) ([]*catalog.Channel, []error) {
			recs, err := stores.Catalog.ChannelsBySlugs(ctx, slugs)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(slugs, recs, func(c *catalog.Channel) string { return c.Slug }), nil
		})

	l.DefaultChannel = loader.New(reg, "default_channel",
		func(ctx context.Context, keys []unitKey) ([]*catalog.Channel, []error) {
			ch, err := stores.Catalog.DefaultChannel(ctx)
			if err != nil {
				return nil, []error{err}
			}
			out := make([]*catalog.Channel, len(keys))
			for i := range keys {
				out[i] = ch
			}
			return out, nil
		})

	l.ProductListing = loader.New(reg, "product_listing",
		func(ctx context.Context, keys []listingKey) ([]*catalog.ProductChannelListing, []error) {
			out := make([]*catalog.ProductChannelListing, len(keys))
			for channel, idx := range indexByChannel(keys) {
				ids := make([]int64, len(idx))
				for i, j := range idx {
					ids[i] = keys[j].ID
				}
				recs, err := stores.Catalog.ProductListings(ctx, ids, channel)
				if err != nil {
					return nil, []error{err}
				}
				ordered := loader.OrderByKeys(ids, recs, func(r *catalog.ProductChannelListing) int64 { return r.ProductID })
				for i, j := range idx {
					out[j] = ordered[i]
				}
			}
			return out, nil
		})

	l.VariantListing = loader.New(reg, "variant_listing",
		func(ctx context.Context, keys []listingKey) ([]*catalog.VariantChannelListing, []error) {
			out := make([]*catalog.VariantChannelListing, len(keys))
			for channel, idx := range indexByChannel(keys) {
				ids := make([]int64, len(idx))
				for i, j := range idx {
					ids[i] = keys[j].ID
				}
				recs, err := stores.Catalog.VariantListings(ctx, ids, channel)
				if err != nil {
					return nil, []error{err}
				}
				ordered := loader.OrderByKeys(ids, recs, func(r *catalog.VariantChannelListing) int64 { return r.VariantID })
				for i, j := range idx {
					out[j] = ordered[i]
				}
			}
			return out, nil
		})

	l.VariantListingsByProduct = loader.New(reg, "variant_listings_by_product",
		func(ctx context.Context, keys []listingKey) ([][]*catalog.VariantChannelListing, []error) {
			out := make([][]*catalog.VariantChannelListing, len(keys))
			for channel, idx := range indexByChannel(keys) {
				ids := make([]int64, len(idx))
				for i, j := range idx {
					ids[i] = keys[j].ID
				}
				groups, err := stores.Catalog.VariantListingsByProductIDs(ctx, ids, channel)
				if err != nil {
					return nil, []error{err}
				}
				for i, j := range idx {
					out[j] = groups[i]
				}
			}
			return out, nil
		})

	l.AttributesByProduct = loader.New(reg, "attributes_by_product",
		func(ctx context.Context, productIDs []int64) ([][]*catalog.SelectedAttribute, []error) {
			groups, err := stores.Catalog.SelectedAttributesByProductIDs(ctx, productIDs)
			if err != nil {
				return nil, []error{err}
			}
			return groups, nil
		})

	l.AttributesByVariant = loader.New(reg, "attributes_by_variant",
		func(ctx context.Context, variantIDs []int64) ([][]*catalog.SelectedAttribute, []error) {
			groups, err := stores.Catalog.SelectedAttributesByVariantIDs(ctx, variantIDs)
			if err != nil {
				return nil, []error{err}
			}
			return groups, nil
		})

	l.ProductAttributesByType = loader.New(reg, "product_attributes_by_type",
		func(ctx context.Context, typeIDs []int64) ([][]*catalog.Attribute, []error) {
			groups, err := stores.Catalog.ProductTypeAttributes(ctx, typeIDs, false)
			if err != nil {
				return nil, []error{err}
			}
			return groups, nil
		})

	l.VariantAttributesByType = loader.New(reg, "variant_attributes_by_type",
		func(ctx context.Context, typeIDs []int64) ([][]*catalog.Attribute, []error) {
			groups, err := stores.Catalog.ProductTypeAttributes(ctx, typeIDs, true)
			if err != nil {
				return nil, []error{err}
			}
			return groups, nil
		})

	l.AvailableAttributesByType = loader.New(reg, "available_attributes_by_type",
		func(ctx context.Context, typeIDs []int64) ([][]*catalog.Attribute, []error) {
			groups, err := stores.Catalog.AvailableAttributes(ctx, typeIDs)
			if err != nil {
				return nil, []error{err}
			}
			return groups, nil
		})

	l.DigitalContentByVariant = loader.New(reg, "digital_content_by_variant",
		func(ctx context.Context, variantIDs []int64) ([]*catalog.DigitalContent, []error) {
			recs, err := stores.Catalog.DigitalContentsByVariantIDs(ctx, variantIDs)
			if err != nil {
				return nil, []error{err}
			}
			return loader.OrderByKeys(variantIDs, recs, func(d *catalog.DigitalContent) int64 { return d.VariantID }), nil
		})

	l.StocksByVariant = loader.New(reg, "stocks_by_variant",
		func(ctx context.Context, keys []stockKey) ([][]*catalog.Stock, []error) {
			out := make([][]*catalog.Stock, len(keys))
			byCountry := make(map[string][]int)
			for i, k := range keys {
				byCountry[k.Country] = append(byCountry[k.Country], i)
			}
			for country, idx := range byCountry {
				ids := make([]int64, len(idx))
				for i, j := range idx {
					ids[i] = keys[j].VariantID
				}
				recs, err := stores.Inventory.StocksByVariantIDs(ctx, ids, country)
				if err != nil {
					return nil, []error{err}
				}
				groups := loader.GroupByKeys(ids, recs, func(s *catalog.Stock) int64 { return s.VariantID })
				for i, j := range idx {
					out[j] = groups[i]
				}
			}
			return out, nil
		})

	l.DiscountsAt = loader.New(reg, "discounts_at",
		func(ctx context.Context, ats []time.Time) ([][]*catalog.DiscountInfo, []error) {
			out := make([][]*catalog.DiscountInfo, len(ats))
			for i, at := range ats {
				infos, err := stores.Discount.ActiveDiscounts(ctx, at)
				if err != nil {
					return nil, []error{err}
				}
				out[i] = infos
			}
			return out, nil
		})

	l.TranslationByEntity = loader.New(reg, "translation_by_entity",
		func(ctx context.Context, keys []translationKey) ([]*catalog.Translation, []error) {
			out := make([]*catalog.Translation, len(keys))
			type group struct{ entityType, language string }
			byGroup := make(map[group][]int)
			for i, k := range keys {
				g := group{k.EntityType, k.Language}
				byGroup[g] = append(byGroup[g], i)
			}
			for g, idx := range byGroup {
				ids := make([]int64, len(idx))
				for i, j := range idx {
					ids[i] = keys[j].EntityID
				}
				recs, err := stores.Translation.TranslationsByEntityIDs(ctx, g.entityType, ids, g.language)
				if err != nil {
					return nil, []error{err}
				}
				ordered := loader.OrderByKeys(ids, recs, func(t *catalog.Translation) int64 { return t.EntityID })
				for i, j := range idx {
					out[j] = ordered[i]
				}
			}
			return out, nil
		})

	l.RevenueByVariant = loader.New(reg, "revenue_by_variant",
		func(ctx context.Context, keys []revenueKey) ([]*store.VariantRevenue, []error) {
			out := make([]*store.VariantRevenue, len(keys))
			bySince := make(map[time.Time][]int)
			for i, k := range keys {
				bySince[k.Since] = append(bySince[k.Since], i)
			}
			for since, idx := range bySince {
				ids := make([]int64, len(idx))
				for i, j := range idx {
					ids[i] = keys[j].VariantID
				}
				revs, err := stores.Order.VariantRevenues(ctx, ids, since)
				if err != nil {
					return nil, []error{err}
				}
				byID := make(map[int64]store.VariantRevenue, len(revs))
				for _, r := range revs {
					byID[r.VariantID] = r
				}
				for i, j := range idx {
					if r, ok := byID[ids[i]]; ok {
						rc := r
						out[j] = &rc
					}
				}
			}
			return out, nil
		})

	l.QuantityOrderedByVariant = loader.New(reg, "quantity_ordered_by_variant",
		func(ctx context.Context, variantIDs []int64) ([]*int64, []error) {
			quantities, err := stores.Order.QuantitiesOrdered(ctx, variantIDs)
			if err != nil {
				return nil, []error{err}
			}
			out := make([]*int64, len(variantIDs))
			for i, id := range variantIDs {
				if q, ok := quantities[id]; ok {
					qc := q
					out[i] = &qc
				}
			}
			return out, nil
		})

	return l
}

// indexByChannel groups listing keys by channel, keeping each key's position
// so results can be scattered back in key order.
func indexByChannel(keys []listingKey) map[string][]int {
	byChannel := make(map[string][]int)
	for i, k := range keys {
		byChannel[k.Channel] = append(byChannel[k.Channel], i)
	}
	return byChannel
}
