// Package store defines the persistence collaborators behind the batch
// loaders. Every method takes the whole key batch of one execution tick;
// callers order and group the results against their keys.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmerce/catalogql/internal/catalog"
)

// ProductFilter narrows a product listing query. The zero value selects
// everything the requester may see.
type ProductFilter struct {
	// ChannelSlug scopes publication checks; required for storefront
	// visibility filtering.
	ChannelSlug string
	// PublishedOnly keeps only products published in the channel at Now.
	PublishedOnly bool
	Now           time.Time
	CategoryIDs   []int64
	CollectionID  int64
	ProductTypeID int64
	Search        string
	// First caps the result size; 0 means the store default.
	First int
}

// CategoryFilter narrows a category listing query.
type CategoryFilter struct {
	// Level filters by tree depth; nil means all levels.
	Level  *int
	Search string
	First  int
}

// CollectionFilter narrows a collection listing query.
type CollectionFilter struct {
	ChannelSlug   string
	PublishedOnly bool
	Now           time.Time
	Search        string
	First         int
}

// CatalogStore serves the product graph's core records.
type CatalogStore interface {
	ProductsByIDs(ctx context.Context, ids []int64) ([]*catalog.Product, error)
	ProductsBySlugs(ctx context.Context, slugs []string) ([]*catalog.Product, error)
	Products(ctx context.Context, f ProductFilter) ([]*catalog.Product, error)

	VariantsByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductVariant, error)
	VariantsBySKUs(ctx context.Context, skus []string) ([]*catalog.ProductVariant, error)
	VariantsByProductIDs(ctx context.Context, productIDs []int64) ([]*catalog.ProductVariant, error)

	CategoriesByIDs(ctx context.Context, ids []int64) ([]*catalog.Category, error)
	CategoriesByParentIDs(ctx context.Context, parentIDs []int64) ([]*catalog.Category, error)
	Categories(ctx context.Context, f CategoryFilter) ([]*catalog.Category, error)

	CollectionsByIDs(ctx context.Context, ids []int64) ([]*catalog.Collection, error)
	CollectionsByProductIDs(ctx context.Context, productIDs []int64) ([][]*catalog.Collection, error)
	Collections(ctx context.Context, f CollectionFilter) ([]*catalog.Collection, error)

	ProductTypesByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductType, error)
	// ProductTypeAttributes returns the attribute definitions each product
	// type assigns to its products (forVariants false) or variants (true),
	// one group per requested type id.
	ProductTypeAttributes(ctx context.Context, productTypeIDs []int64, forVariants bool) ([][]*catalog.Attribute, error)
	// AvailableAttributes returns the attribute definitions not yet assigned
	// to each product type, one group per requested type id.
	AvailableAttributes(ctx context.Context, productTypeIDs []int64) ([][]*catalog.Attribute, error)

	ImagesByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductImage, error)
	ImagesByProductIDs(ctx context.Context, productIDs []int64) ([]*catalog.ProductImage, error)

	ChannelsBySlugs(ctx context.Context, slugs []string) ([]*catalog.Channel, error)
	DefaultChannel(ctx context.Context) (*catalog.Channel, error)

	ProductListings(ctx context.Context, productIDs []int64, channelSlug string) ([]*catalog.ProductChannelListing, error)
	VariantListings(ctx context.Context, variantIDs []int64, channelSlug string) ([]*catalog.VariantChannelListing, error)
	VariantListingsByProductIDs(ctx context.Context, productIDs []int64, channelSlug string) ([][]*catalog.VariantChannelListing, error)

	SelectedAttributesByProductIDs(ctx context.Context, productIDs []int64) ([][]*catalog.SelectedAttribute, error)
	SelectedAttributesByVariantIDs(ctx context.Context, variantIDs []int64) ([][]*catalog.SelectedAttribute, error)

	DigitalContentsByVariantIDs(ctx context.Context, variantIDs []int64) ([]*catalog.DigitalContent, error)
}

// InventoryStore serves warehouse stock rows.
type InventoryStore interface {
	// StocksByVariantIDs returns every stock row of the given variants,
	// optionally narrowed to warehouses shipping to countryCode.
	StocksByVariantIDs(ctx context.Context, variantIDs []int64, countryCode string) ([]*catalog.Stock, error)
}

// DiscountStore serves the sales active at an instant, joined with the
// entity sets they cover.
type DiscountStore interface {
	ActiveDiscounts(ctx context.Context, at time.Time) ([]*catalog.DiscountInfo, error)
}

// TranslationStore serves localized entity text.
type TranslationStore interface {
	TranslationsByEntityIDs(ctx context.Context, entityType string, entityIDs []int64, language string) ([]*catalog.Translation, error)
}

// VariantRevenue is the revenue one variant generated since a cutoff.
type VariantRevenue struct {
	VariantID int64
	Amount    decimal.Decimal
	Currency  string
}

// OrderStore serves order-derived reporting aggregates.
type OrderStore interface {
	// VariantRevenues sums the paid order lines of each variant placed at or
	// after since. Variants with no matching lines are absent from the
	// result.
	VariantRevenues(ctx context.Context, variantIDs []int64, since time.Time) ([]VariantRevenue, error)
	// QuantitiesOrdered returns the all-time ordered quantity per variant.
	QuantitiesOrdered(ctx context.Context, variantIDs []int64) (map[int64]int64, error)
}

// Stores bundles every persistence collaborator a request needs.
type Stores struct {
	Catalog     CatalogStore
	Inventory   InventoryStore
	Discount    DiscountStore
	Translation TranslationStore
	Order       OrderStore
}
