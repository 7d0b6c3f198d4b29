package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/gqlerr"
)

// Memory is an in-memory implementation of every store interface, backed by
// fixture slices. It records how often each operation ran, which lets tests
// assert that a whole key batch cost exactly one call.
type Memory struct {
	mu    sync.Mutex
	calls map[string]int

	AllProducts     []*catalog.Product
	Variants        []*catalog.ProductVariant
	AllCategories   []*catalog.Category
	AllCollections  []*catalog.Collection
	CollectionLinks map[int64][]int64 // product id -> collection ids
	ProductTypes    []*catalog.ProductType
	AllAttributes   []*catalog.Attribute
	TypeAttrs       map[int64][]int64 // product type id -> product attribute ids
	TypeVariantAttr map[int64][]int64 // product type id -> variant attribute ids
	Images          []*catalog.ProductImage
	Channels        []*catalog.Channel
	ProductListing  []*catalog.ProductChannelListing
	VariantListing  []*catalog.VariantChannelListing
	ProductAttrs    map[int64][]*catalog.SelectedAttribute
	VariantAttrs    map[int64][]*catalog.SelectedAttribute
	Digital         []*catalog.DigitalContent
	Stocks          []*catalog.Stock
	Discounts       []*catalog.DiscountInfo
	Translations    []*catalog.Translation
	Revenues        []VariantRevenue
	Ordered         map[int64]int64

	// Fail, when set, makes the named operation return the error.
	Fail map[string]error
}

// NewMemory returns an empty fixture store.
func NewMemory() *Memory {
	return &Memory{
		calls:           make(map[string]int),
		CollectionLinks: make(map[int64][]int64),
		TypeAttrs:       make(map[int64][]int64),
		TypeVariantAttr: make(map[int64][]int64),
		ProductAttrs:    make(map[int64][]*catalog.SelectedAttribute),
		VariantAttrs:    make(map[int64][]*catalog.SelectedAttribute),
		Ordered:         make(map[int64]int64),
		Fail:            make(map[string]error),
	}
}

// Stores bundles m as all five collaborators.
func (m *Memory) Stores() Stores {
	return Stores{Catalog: m, Inventory: m, Discount: m, Translation: m, Order: m}
}

// Calls reports how many times the named operation ran.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) touch(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if err := m.Fail[op]; err != nil {
		return err
	}
	return nil
}

func pickByID[R catalog.Record](all []R, ids []int64) []R {
	byID := make(map[int64]R, len(all))
	for _, r := range all {
		byID[r.PK()] = r
	}
	var out []R
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (m *Memory) ProductsByIDs(ctx context.Context, ids []int64) ([]*catalog.Product, error) {
	if err := m.touch("products_by_ids"); err != nil {
		return nil, err
	}
	return pickByID(m.AllProducts, ids), nil
}

func (m *Memory) ProductsBySlugs(ctx context.Context, slugs []string) ([]*catalog.Product, error) {
	if err := m.touch("products_by_slugs"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		want[s] = true
	}
	var out []*catalog.Product
	for _, p := range m.AllProducts {
		if want[p.Slug] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) Products(ctx context.Context, f ProductFilter) ([]*catalog.Product, error) {
	if err := m.touch("products_filtered"); err != nil {
		return nil, err
	}
	published := make(map[int64]bool)
	if f.PublishedOnly {
		for _, l := range m.ProductListing {
			if l.ChannelSlug != f.ChannelSlug || !l.IsPublished {
				continue
			}
			if l.PublicationDate != nil && l.PublicationDate.After(f.Now) {
				continue
			}
			published[l.ProductID] = true
		}
	}
	categories := make(map[int64]bool)
	for _, id := range f.CategoryIDs {
		categories[id] = true
	}
	var out []*catalog.Product
	for _, p := range m.AllProducts {
		if f.PublishedOnly && !published[p.ID] {
			continue
		}
		if len(categories) > 0 && !categories[p.CategoryID] {
			continue
		}
		if f.CollectionID != 0 && !containsID(m.CollectionLinks[p.ID], f.CollectionID) {
			continue
		}
		if f.ProductTypeID != 0 && p.ProductTypeID != f.ProductTypeID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name+p.Slug), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	if f.First > 0 && len(out) > f.First {
		out = out[:f.First]
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (m *Memory) VariantsByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductVariant, error) {
	if err := m.touch("variants_by_ids"); err != nil {
		return nil, err
	}
	return pickByID(m.Variants, ids), nil
}

func (m *Memory) VariantsBySKUs(ctx context.Context, skus []string) ([]*catalog.ProductVariant, error) {
	if err := m.touch("variants_by_skus"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(skus))
	for _, s := range skus {
		want[s] = true
	}
	var out []*catalog.ProductVariant
	for _, v := range m.Variants {
		if want[v.SKU] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) VariantsByProductIDs(ctx context.Context, productIDs []int64) ([]*catalog.ProductVariant, error) {
	if err := m.touch("variants_by_product_ids"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	var out []*catalog.ProductVariant
	for _, v := range m.Variants {
		if want[v.ProductID] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) CategoriesByIDs(ctx context.Context, ids []int64) ([]*catalog.Category, error) {
	if err := m.touch("categories_by_ids"); err != nil {
		return nil, err
	}
	return pickByID(m.AllCategories, ids), nil
}

func (m *Memory) CategoriesByParentIDs(ctx context.Context, parentIDs []int64) ([]*catalog.Category, error) {
	if err := m.touch("categories_by_parent_ids"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	var out []*catalog.Category
	for _, c := range m.AllCategories {
		if want[c.ParentID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) Categories(ctx context.Context, f CategoryFilter) ([]*catalog.Category, error) {
	if err := m.touch("categories_filtered"); err != nil {
		return nil, err
	}
	var out []*catalog.Category
	for _, c := range m.AllCategories {
		if f.Level != nil && c.Level != *f.Level {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name+c.Slug), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	if f.First > 0 && len(out) > f.First {
		out = out[:f.First]
	}
	return out, nil
}

func (m *Memory) CollectionsByIDs(ctx context.Context, ids []int64) ([]*catalog.Collection, error) {
	if err := m.touch("collections_by_ids"); err != nil {
		return nil, err
	}
	return pickByID(m.AllCollections, ids), nil
}

func (m *Memory) CollectionsByProductIDs(ctx context.Context, productIDs []int64) ([][]*catalog.Collection, error) {
	if err := m.touch("collections_by_product_ids"); err != nil {
		return nil, err
	}
	out := make([][]*catalog.Collection, len(productIDs))
	for i, pid := range productIDs {
		out[i] = pickByID(m.AllCollections, m.CollectionLinks[pid])
	}
	return out, nil
}

func (m *Memory) Collections(ctx context.Context, f CollectionFilter) ([]*catalog.Collection, error) {
	if err := m.touch("collections_filtered"); err != nil {
		return nil, err
	}
	var out []*catalog.Collection
	for _, c := range m.AllCollections {
		if f.PublishedOnly {
			if !c.IsPublished {
				continue
			}
			if c.PublicationDate != nil && c.PublicationDate.After(f.Now) {
				continue
			}
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name+c.Slug), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	if f.First > 0 && len(out) > f.First {
		out = out[:f.First]
	}
	return out, nil
}

func (m *Memory) ProductTypesByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductType, error) {
	if err := m.touch("product_types_by_ids"); err != nil {
		return nil, err
	}
	return pickByID(m.ProductTypes, ids), nil
}

func (m *Memory) ProductTypeAttributes(ctx context.Context, productTypeIDs []int64, forVariants bool) ([][]*catalog.Attribute, error) {
	if err := m.touch("product_type_attributes"); err != nil {
		return nil, err
	}
	links := m.TypeAttrs
	if forVariants {
		links = m.TypeVariantAttr
	}
	out := make([][]*catalog.Attribute, len(productTypeIDs))
	for i, id := range productTypeIDs {
		out[i] = pickByID(m.AllAttributes, links[id])
	}
	return out, nil
}

func (m *Memory) AvailableAttributes(ctx context.Context, productTypeIDs []int64) ([][]*catalog.Attribute, error) {
	if err := m.touch("available_attributes"); err != nil {
		return nil, err
	}
	out := make([][]*catalog.Attribute, len(productTypeIDs))
	for i, id := range productTypeIDs {
		assigned := make(map[int64]bool)
		for _, aid := range m.TypeAttrs[id] {
			assigned[aid] = true
		}
		for _, aid := range m.TypeVariantAttr[id] {
			assigned[aid] = true
		}
		var free []*catalog.Attribute
		for _, a := range m.AllAttributes {
			if !assigned[a.ID] {
				free = append(free, a)
			}
		}
		out[i] = free
	}
	return out, nil
}

func (m *Memory) ImagesByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductImage, error) {
	if err := m.touch("images_by_ids"); err != nil {
		return nil, err
	}
	return pickByID(m.Images, ids), nil
}

func (m *Memory) ImagesByProductIDs(ctx context.Context, productIDs []int64) ([]*catalog.ProductImage, error) {
	if err := m.touch("images_by_product_ids"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	var out []*catalog.ProductImage
	for _, img := range m.Images {
		if want[img.ProductID] {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ChannelsBySlugs(ctx context.Context, slugs []string) ([]*catalog.Channel, error) {
	if err := m.touch("channels_by_slugs"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		want[s] = true
	}
	var out []*catalog.Channel
	for _, c := range m.Channels {
		if want[c.Slug] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) DefaultChannel(ctx context.Context) (*catalog.Channel, error) {
	if err := m.touch("default_channel"); err != nil {
		return nil, err
	}
	for _, c := range m.Channels {
		if c.IsDefault {
			return c, nil
		}
	}
	return nil, gqlerr.Configuration("no default channel is configured")
}

func (m *Memory) ProductListings(ctx context.Context, productIDs []int64, channelSlug string) ([]*catalog.ProductChannelListing, error) {
	if err := m.touch("product_listings"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	var out []*catalog.ProductChannelListing
	for _, l := range m.ProductListing {
		if want[l.ProductID] && l.ChannelSlug == channelSlug {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) VariantListings(ctx context.Context, variantIDs []int64, channelSlug string) ([]*catalog.VariantChannelListing, error) {
	if err := m.touch("variant_listings"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(variantIDs))
	for _, id := range variantIDs {
		want[id] = true
	}
	var out []*catalog.VariantChannelListing
	for _, l := range m.VariantListing {
		if want[l.VariantID] && l.ChannelSlug == channelSlug {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) VariantListingsByProductIDs(ctx context.Context, productIDs []int64, channelSlug string) ([][]*catalog.VariantChannelListing, error) {
	if err := m.touch("variant_listings_by_product_ids"); err != nil {
		return nil, err
	}
	productOf := make(map[int64]int64, len(m.Variants))
	for _, v := range m.Variants {
		productOf[v.ID] = v.ProductID
	}
	byProduct := make(map[int64][]*catalog.VariantChannelListing)
	for _, l := range m.VariantListing {
		if l.ChannelSlug != channelSlug {
			continue
		}
		pid := productOf[l.VariantID]
		byProduct[pid] = append(byProduct[pid], l)
	}
	out := make([][]*catalog.VariantChannelListing, len(productIDs))
	for i, pid := range productIDs {
		out[i] = byProduct[pid]
	}
	return out, nil
}

func (m *Memory) SelectedAttributesByProductIDs(ctx context.Context, productIDs []int64) ([][]*catalog.SelectedAttribute, error) {
	if err := m.touch("attributes_by_product_ids"); err != nil {
		return nil, err
	}
	out := make([][]*catalog.SelectedAttribute, len(productIDs))
	for i, id := range productIDs {
		out[i] = m.ProductAttrs[id]
	}
	return out, nil
}

func (m *Memory) SelectedAttributesByVariantIDs(ctx context.Context, variantIDs []int64) ([][]*catalog.SelectedAttribute, error) {
	if err := m.touch("attributes_by_variant_ids"); err != nil {
		return nil, err
	}
	out := make([][]*catalog.SelectedAttribute, len(variantIDs))
	for i, id := range variantIDs {
		out[i] = m.VariantAttrs[id]
	}
	return out, nil
}

func (m *Memory) DigitalContentsByVariantIDs(ctx context.Context, variantIDs []int64) ([]*catalog.DigitalContent, error) {
	if err := m.touch("digital_contents_by_variant_ids"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(variantIDs))
	for _, id := range variantIDs {
		want[id] = true
	}
	var out []*catalog.DigitalContent
	for _, d := range m.Digital {
		if want[d.VariantID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) StocksByVariantIDs(ctx context.Context, variantIDs []int64, countryCode string) ([]*catalog.Stock, error) {
	if err := m.touch("stocks_by_variant_ids"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(variantIDs))
	for _, id := range variantIDs {
		want[id] = true
	}
	var out []*catalog.Stock
	for _, st := range m.Stocks {
		if !want[st.VariantID] {
			continue
		}
		if countryCode != "" && st.CountryCode != countryCode {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *Memory) ActiveDiscounts(ctx context.Context, at time.Time) ([]*catalog.DiscountInfo, error) {
	if err := m.touch("active_discounts"); err != nil {
		return nil, err
	}
	var out []*catalog.DiscountInfo
	for _, d := range m.Discounts {
		if d.Sale.ActiveAt(at) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) TranslationsByEntityIDs(ctx context.Context, entityType string, entityIDs []int64, language string) ([]*catalog.Translation, error) {
	if err := m.touch("translations_by_entity_ids"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(entityIDs))
	for _, id := range entityIDs {
		want[id] = true
	}
	var out []*catalog.Translation
	for _, t := range m.Translations {
		if t.EntityType == entityType && t.Language == language && want[t.EntityID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) VariantRevenues(ctx context.Context, variantIDs []int64, since time.Time) ([]VariantRevenue, error) {
	if err := m.touch("variant_revenues"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(variantIDs))
	for _, id := range variantIDs {
		want[id] = true
	}
	var out []VariantRevenue
	for _, r := range m.Revenues {
		if want[r.VariantID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) QuantitiesOrdered(ctx context.Context, variantIDs []int64) (map[int64]int64, error) {
	if err := m.touch("quantities_ordered"); err != nil {
		return nil, err
	}
	out := make(map[int64]int64)
	for _, id := range variantIDs {
		if qty, ok := m.Ordered[id]; ok {
			out[id] = qty
		}
	}
	return out, nil
}
