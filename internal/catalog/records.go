// Package catalog defines the raw persisted records of the product graph and
// the request-scoped wrappers that present them. Records are read-only in
// this layer: resolvers wrap them, derive values from them, and never mutate
// them.
//
// Every record exposes its graph-visible plain fields through an explicit
// Attr table (a switch on the graph field name). Fields that need loaders,
// permissions or computation are left to the per-type resolver sets; Attr is
// only the fallback rule for straight projections.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is a persisted row exposed to the graph layer.
type Record interface {
	// PK returns the primary key of the underlying row.
	PK() int64
	// TypeName returns the graph type name the record maps to.
	TypeName() string
	// Attr resolves a plain graph field by name against the record.
	Attr(name string) (any, bool)
}

// Product is an individual item for sale.
type Product struct {
	ID             int64
	Name           string
	Slug           string
	Description    string
	CategoryID     int64 // 0 when uncategorized
	ProductTypeID  int64
	ChargeTaxes    bool
	WeightGrams    float64
	SEOTitle       string
	SEODescription string
	UpdatedAt      time.Time

	Metadata        map[string]string
	PrivateMetadata map[string]string
}

func (p *Product) PK() int64        { return p.ID }
func (p *Product) TypeName() string { return "Product" }

func (p *Product) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return p.Name, true
	case "slug":
		return p.Slug, true
	case "description":
		return p.Description, true
	case "chargeTaxes":
		return p.ChargeTaxes, true
	case "seoTitle":
		return p.SEOTitle, true
	case "seoDescription":
		return p.SEODescription, true
	case "updatedAt":
		return p.UpdatedAt, true
	}
	return nil, false
}

// ProductVariant is a sellable version of a product (size, color, ...).
type ProductVariant struct {
	ID             int64
	ProductID      int64
	Name           string
	SKU            string
	TrackInventory bool
	WeightGrams    float64

	// QuantityOrdered is an optional precomputed aggregate attached by
	// reporting queries; nil when the annotation is absent.
	QuantityOrdered *int64

	Metadata        map[string]string
	PrivateMetadata map[string]string
}

func (v *ProductVariant) PK() int64        { return v.ID }
func (v *ProductVariant) TypeName() string { return "ProductVariant" }

func (v *ProductVariant) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return v.Name, true
	case "sku":
		return v.SKU, true
	case "trackInventory":
		return v.TrackInventory, true
	}
	return nil, false
}

// Category organizes products into a tree hierarchy.
type Category struct {
	ID                 int64
	Name               string
	Slug               string
	Description        string
	ParentID           int64 // 0 for root categories
	Level              int
	SEOTitle           string
	SEODescription     string
	BackgroundImage    string // storage path, empty when unset
	BackgroundImageAlt string
}

func (c *Category) PK() int64        { return c.ID }
func (c *Category) TypeName() string { return "Category" }

func (c *Category) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return c.Name, true
	case "slug":
		return c.Slug, true
	case "description":
		return c.Description, true
	case "level":
		return c.Level, true
	case "seoTitle":
		return c.SEOTitle, true
	case "seoDescription":
		return c.SEODescription, true
	}
	return nil, false
}

// Collection is a curated set of products.
type Collection struct {
	ID                 int64
	Name               string
	Slug               string
	Description        string
	IsPublished        bool
	PublicationDate    *time.Time
	SEOTitle           string
	SEODescription     string
	BackgroundImage    string
	BackgroundImageAlt string
}

func (c *Collection) PK() int64        { return c.ID }
func (c *Collection) TypeName() string { return "Collection" }

func (c *Collection) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return c.Name, true
	case "slug":
		return c.Slug, true
	case "description":
		return c.Description, true
	case "isPublished":
		return c.IsPublished, true
	case "publicationDate":
		if c.PublicationDate == nil {
			return nil, true
		}
		return *c.PublicationDate, true
	case "seoTitle":
		return c.SEOTitle, true
	case "seoDescription":
		return c.SEODescription, true
	}
	return nil, false
}

// ProductType defines the shape of its products: which attributes apply and
// how the product ships.
type ProductType struct {
	ID                 int64
	Name               string
	Slug               string
	HasVariants        bool
	IsDigital          bool
	IsShippingRequired bool
	WeightGrams        float64
}

func (t *ProductType) PK() int64        { return t.ID }
func (t *ProductType) TypeName() string { return "ProductType" }

func (t *ProductType) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return t.Name, true
	case "slug":
		return t.Slug, true
	case "hasVariants":
		return t.HasVariants, true
	case "isDigital":
		return t.IsDigital, true
	case "isShippingRequired":
		return t.IsShippingRequired, true
	}
	return nil, false
}

// ProductImage is a stored image attached to a product. Images of a product
// are ordered by SortOrder, then ID, which makes "first image" stable.
type ProductImage struct {
	ID        int64
	ProductID int64
	Path      string // storage path handed to the media renderer
	Alt       string
	SortOrder int
}

func (i *ProductImage) PK() int64        { return i.ID }
func (i *ProductImage) TypeName() string { return "ProductImage" }

func (i *ProductImage) Attr(name string) (any, bool) {
	switch name {
	case "alt":
		return i.Alt, true
	case "sortOrder":
		return i.SortOrder, true
	}
	return nil, false
}

// Channel is a sales context pricing and availability are scoped to.
type Channel struct {
	ID           int64
	Name         string
	Slug         string
	IsActive     bool
	CurrencyCode string
	IsDefault    bool
}

func (c *Channel) PK() int64        { return c.ID }
func (c *Channel) TypeName() string { return "Channel" }

func (c *Channel) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return c.Name, true
	case "slug":
		return c.Slug, true
	case "isActive":
		return c.IsActive, true
	case "currencyCode":
		return c.CurrencyCode, true
	}
	return nil, false
}

// ProductChannelListing is a product's publication state in one channel.
type ProductChannelListing struct {
	ID                int64
	ProductID         int64
	ChannelID         int64
	ChannelSlug       string
	IsPublished       bool
	PublicationDate   *time.Time
	VisibleInListings bool
}

func (l *ProductChannelListing) PK() int64        { return l.ID }
func (l *ProductChannelListing) TypeName() string { return "ProductChannelListing" }

func (l *ProductChannelListing) Attr(name string) (any, bool) {
	switch name {
	case "isPublished":
		return l.IsPublished, true
	case "publicationDate":
		if l.PublicationDate == nil {
			return nil, true
		}
		return *l.PublicationDate, true
	case "visibleInListings":
		return l.VisibleInListings, true
	}
	return nil, false
}

// VariantChannelListing carries a variant's price and cost in one channel.
type VariantChannelListing struct {
	ID          int64
	VariantID   int64
	ChannelID   int64
	ChannelSlug string
	Currency    string
	Price       decimal.Decimal
	CostPrice   *decimal.Decimal
}

// Stock is the on-hand quantity of a variant in one warehouse.
type Stock struct {
	ID            int64
	VariantID     int64
	WarehouseID   int64
	WarehouseName string
	CountryCode   string
	Quantity      int
	Allocated     int
}

func (s *Stock) PK() int64        { return s.ID }
func (s *Stock) TypeName() string { return "Stock" }

func (s *Stock) Attr(name string) (any, bool) {
	switch name {
	case "warehouseName":
		return s.WarehouseName, true
	case "countryCode":
		return s.CountryCode, true
	case "quantity":
		return s.Quantity, true
	case "quantityAllocated":
		return s.Allocated, true
	}
	return nil, false
}

// Available reports the sellable quantity of the stock row.
func (s *Stock) Available() int { return s.Quantity - s.Allocated }

// DigitalContent is the downloadable payload of a digital variant.
type DigitalContent struct {
	ID           int64
	VariantID    int64
	ContentURL   string
	MaxDownloads int
	URLValidDays int
}

func (d *DigitalContent) PK() int64        { return d.ID }
func (d *DigitalContent) TypeName() string { return "DigitalContent" }

func (d *DigitalContent) Attr(name string) (any, bool) {
	switch name {
	case "contentUrl":
		return d.ContentURL, true
	case "maxDownloads":
		return d.MaxDownloads, true
	case "urlValidDays":
		return d.URLValidDays, true
	}
	return nil, false
}

// Attribute is a product-type-owned attribute definition.
type Attribute struct {
	ID        int64
	Name      string
	Slug      string
	InputType string
}

func (a *Attribute) PK() int64        { return a.ID }
func (a *Attribute) TypeName() string { return "Attribute" }

func (a *Attribute) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return a.Name, true
	case "slug":
		return a.Slug, true
	case "inputType":
		return a.InputType, true
	}
	return nil, false
}

// AttributeValue is one selected value of an attribute.
type AttributeValue struct {
	ID   int64
	Name string
	Slug string
}

func (v *AttributeValue) PK() int64        { return v.ID }
func (v *AttributeValue) TypeName() string { return "AttributeValue" }

func (v *AttributeValue) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return v.Name, true
	case "slug":
		return v.Slug, true
	}
	return nil, false
}

// SelectedAttribute pairs an attribute definition with the values assigned
// to a product or variant.
type SelectedAttribute struct {
	Attribute *Attribute
	Values    []*AttributeValue
}

// SaleType discriminates how a discount value is applied.
type SaleType string

const (
	SaleTypeFixed      SaleType = "fixed"
	SaleTypePercentage SaleType = "percentage"
)

// Sale is a time-bounded price-reduction rule.
type Sale struct {
	ID      int64
	Name    string
	Type    SaleType
	Value   decimal.Decimal
	StartAt time.Time
	EndAt   *time.Time // nil means open-ended
}

// ActiveAt reports whether the sale applies at t.
func (s *Sale) ActiveAt(t time.Time) bool {
	if t.Before(s.StartAt) {
		return false
	}
	return s.EndAt == nil || !t.After(*s.EndAt)
}

// DiscountInfo is a sale joined with the entity sets it applies to, the unit
// the discount dataloader hands to pricing.
type DiscountInfo struct {
	Sale          *Sale
	ProductIDs    map[int64]struct{}
	CategoryIDs   map[int64]struct{}
	CollectionIDs map[int64]struct{}
}

// AppliesTo reports whether the discount covers the product, given its
// category and collection memberships.
func (d *DiscountInfo) AppliesTo(productID, categoryID int64, collectionIDs []int64) bool {
	if _, ok := d.ProductIDs[productID]; ok {
		return true
	}
	if categoryID != 0 {
		if _, ok := d.CategoryIDs[categoryID]; ok {
			return true
		}
	}
	for _, id := range collectionIDs {
		if _, ok := d.CollectionIDs[id]; ok {
			return true
		}
	}
	return false
}

// Translation is a localized rendition of an entity's text fields.
type Translation struct {
	EntityType  string
	EntityID    int64
	Language    string
	Name        string
	Description string
}
