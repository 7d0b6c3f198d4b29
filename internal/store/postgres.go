package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/eventbus"
	"github.com/openmerce/catalogql/internal/events"
	"github.com/openmerce/catalogql/internal/gqlerr"
)

// defaultPageSize caps listing queries when the caller does not.
const defaultPageSize = 100

// Postgres implements every store interface against one Postgres database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps db. The caller owns the pool.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// PostgresStores bundles a Postgres instance as all five collaborators.
func PostgresStores(db *sql.DB) Stores {
	pg := NewPostgres(db)
	return Stores{Catalog: pg, Inventory: pg, Discount: pg, Translation: pg, Order: pg}
}

func (s *Postgres) observe(ctx context.Context, op string) func(rows int, err error) {
	eventbus.Publish(ctx, events.StoreQueryStart{Op: op})
	start := time.Now()
	return func(rows int, err error) {
		eventbus.Publish(ctx, events.StoreQueryFinish{
			Op: op, Rows: rows, Err: err, Duration: time.Since(start),
		})
	}
}

func decodeMeta(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := msgpack.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// EncodeMeta serializes a metadata map the way the store persists it.
// Exposed for fixtures and migrations.
func EncodeMeta(m map[string]string) []byte {
	if len(m) == 0 {
		return nil
	}
	raw, err := msgpack.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}

const productColumns = `id, name, slug, description, category_id, product_type_id,
	charge_taxes, weight_grams, seo_title, seo_description, updated_at,
	metadata, private_metadata`

func scanProduct(rows *sql.Rows) (*catalog.Product, error) {
	var (
		p          catalog.Product
		categoryID sql.NullInt64
		meta, priv []byte
	)
	err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &categoryID,
		&p.ProductTypeID, &p.ChargeTaxes, &p.WeightGrams, &p.SEOTitle,
		&p.SEODescription, &p.UpdatedAt, &meta, &priv)
	if err != nil {
		return nil, err
	}
	p.CategoryID = categoryID.Int64
	p.Metadata = decodeMeta(meta)
	p.PrivateMetadata = decodeMeta(priv)
	return &p, nil
}

func (s *Postgres) ProductsByIDs(ctx context.Context, ids []int64) ([]*catalog.Product, error) {
	return s.products(ctx, "products_by_ids",
		`SELECT `+productColumns+` FROM product WHERE id = ANY($1)`, pq.Array(ids))
}

func (s *Postgres) ProductsBySlugs(ctx context.Context, slugs []string) ([]*catalog.Product, error) {
	return s.products(ctx, "products_by_slugs",
		`SELECT `+productColumns+` FROM product WHERE slug = ANY($1)`, pq.Array(slugs))
}

func (s *Postgres) Products(ctx context.Context, f ProductFilter) ([]*catalog.Product, error) {
	q := `SELECT ` + qualify(productColumns, "p") + ` FROM product p`
	args := []any{}
	where := ""
	and := func(cond string) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	if f.PublishedOnly {
		q += ` JOIN product_channel_listing pcl ON pcl.product_id = p.id
			JOIN channel ch ON ch.id = pcl.channel_id`
		args = append(args, f.ChannelSlug, f.Now)
		and(`ch.slug = $1 AND pcl.is_published
			AND (pcl.publication_date IS NULL OR pcl.publication_date <= $2)`)
	} else if f.ChannelSlug != "" {
		q += ` JOIN product_channel_listing pcl ON pcl.product_id = p.id
			JOIN channel ch ON ch.id = pcl.channel_id`
		args = append(args, f.ChannelSlug)
		and(`ch.slug = $1`)
	}
	if len(f.CategoryIDs) > 0 {
		args = append(args, pq.Array(f.CategoryIDs))
		and(`p.category_id = ANY($` + itoa(len(args)) + `)`)
	}
	if f.CollectionID != 0 {
		args = append(args, f.CollectionID)
		and(`EXISTS (SELECT 1 FROM collection_product cp
			WHERE cp.product_id = p.id AND cp.collection_id = $` + itoa(len(args)) + `)`)
	}
	if f.ProductTypeID != 0 {
		args = append(args, f.ProductTypeID)
		and(`p.product_type_id = $` + itoa(len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		and(`(p.name ILIKE $` + itoa(len(args)) + ` OR p.slug ILIKE $` + itoa(len(args)) + `)`)
	}
	first := f.First
	if first <= 0 {
		first = defaultPageSize
	}
	args = append(args, first)
	q += where + ` ORDER BY p.slug, p.id LIMIT $` + itoa(len(args))
	return s.products(ctx, "products_filtered", q, args...)
}

func (s *Postgres) products(ctx context.Context, op, q string, args ...any) (out []*catalog.Product, err error) {
	finish := s.observe(ctx, op)
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying products")
	}
	defer rows.Close()
	for rows.Next() {
		p, scanErr := scanProduct(rows)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning product")
			return nil, err
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading products")
	}
	return out, nil
}

const variantColumns = `id, product_id, name, sku, track_inventory, weight_grams,
	metadata, private_metadata`

func scanVariant(rows *sql.Rows) (*catalog.ProductVariant, error) {
	var (
		v          catalog.ProductVariant
		meta, priv []byte
	)
	err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.TrackInventory,
		&v.WeightGrams, &meta, &priv)
	if err != nil {
		return nil, err
	}
	v.Metadata = decodeMeta(meta)
	v.PrivateMetadata = decodeMeta(priv)
	return &v, nil
}

func (s *Postgres) VariantsByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductVariant, error) {
	return s.variants(ctx, "variants_by_ids",
		`SELECT `+variantColumns+` FROM product_variant WHERE id = ANY($1)`, pq.Array(ids))
}

func (s *Postgres) VariantsBySKUs(ctx context.Context, skus []string) ([]*catalog.ProductVariant, error) {
	return s.variants(ctx, "variants_by_skus",
		`SELECT `+variantColumns+` FROM product_variant WHERE sku = ANY($1)`, pq.Array(skus))
}

func (s *Postgres) VariantsByProductIDs(ctx context.Context, productIDs []int64) ([]*catalog.ProductVariant, error) {
	return s.variants(ctx, "variants_by_product_ids",
		`SELECT `+variantColumns+` FROM product_variant
		WHERE product_id = ANY($1) ORDER BY product_id, sort_order, id`, pq.Array(productIDs))
}

func (s *Postgres) variants(ctx context.Context, op, q string, args ...any) (out []*catalog.ProductVariant, err error) {
	finish := s.observe(ctx, op)
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying variants")
	}
	defer rows.Close()
	for rows.Next() {
		v, scanErr := scanVariant(rows)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning variant")
			return nil, err
		}
		out = append(out, v)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading variants")
	}
	return out, nil
}

const categoryColumns = `id, name, slug, description, parent_id, level,
	seo_title, seo_description, background_image, background_image_alt`

func scanCategory(rows *sql.Rows) (*catalog.Category, error) {
	var (
		c        catalog.Category
		parentID sql.NullInt64
	)
	err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &parentID, &c.Level,
		&c.SEOTitle, &c.SEODescription, &c.BackgroundImage, &c.BackgroundImageAlt)
	if err != nil {
		return nil, err
	}
	c.ParentID = parentID.Int64
	return &c, nil
}

func (s *Postgres) CategoriesByIDs(ctx context.Context, ids []int64) ([]*catalog.Category, error) {
	return s.categories(ctx, "categories_by_ids",
		`SELECT `+categoryColumns+` FROM category WHERE id = ANY($1)`, pq.Array(ids))
}

func (s *Postgres) CategoriesByParentIDs(ctx context.Context, parentIDs []int64) ([]*catalog.Category, error) {
	return s.categories(ctx, "categories_by_parent_ids",
		`SELECT `+categoryColumns+` FROM category
		WHERE parent_id = ANY($1) ORDER BY parent_id, slug`, pq.Array(parentIDs))
}

func (s *Postgres) Categories(ctx context.Context, f CategoryFilter) ([]*catalog.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM category`
	args := []any{}
	where := ""
	if f.Level != nil {
		args = append(args, *f.Level)
		where = ` WHERE level = $1`
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		cond := `(name ILIKE $` + itoa(len(args)) + ` OR slug ILIKE $` + itoa(len(args)) + `)`
		if where == "" {
			where = ` WHERE ` + cond
		} else {
			where += ` AND ` + cond
		}
	}
	first := f.First
	if first <= 0 {
		first = defaultPageSize
	}
	args = append(args, first)
	q += where + ` ORDER BY slug, id LIMIT $` + itoa(len(args))
	return s.categories(ctx, "categories_filtered", q, args...)
}

func (s *Postgres) categories(ctx context.Context, op, q string, args ...any) (out []*catalog.Category, err error) {
	finish := s.observe(ctx, op)
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying categories")
	}
	defer rows.Close()
	for rows.Next() {
		c, scanErr := scanCategory(rows)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning category")
			return nil, err
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading categories")
	}
	return out, nil
}

const collectionColumns = `id, name, slug, description, is_published, publication_date,
	seo_title, seo_description, background_image, background_image_alt`

func scanCollection(rows *sql.Rows) (*catalog.Collection, error) {
	var (
		c       catalog.Collection
		pubDate sql.NullTime
	)
	err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsPublished, &pubDate,
		&c.SEOTitle, &c.SEODescription, &c.BackgroundImage, &c.BackgroundImageAlt)
	if err != nil {
		return nil, err
	}
	if pubDate.Valid {
		t := pubDate.Time
		c.PublicationDate = &t
	}
	return &c, nil
}

func (s *Postgres) CollectionsByIDs(ctx context.Context, ids []int64) ([]*catalog.Collection, error) {
	return s.collections(ctx, "collections_by_ids",
		`SELECT `+collectionColumns+` FROM collection WHERE id = ANY($1)`, pq.Array(ids))
}

func (s *Postgres) CollectionsByProductIDs(ctx context.Context, productIDs []int64) (out [][]*catalog.Collection, err error) {
	finish := s.observe(ctx, "collections_by_product_ids")
	total := 0
	defer func() { finish(total, err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT cp.product_id, `+qualify(collectionColumns, "c")+`
		FROM collection c JOIN collection_product cp ON cp.collection_id = c.id
		WHERE cp.product_id = ANY($1) ORDER BY cp.product_id, c.slug`, pq.Array(productIDs))
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying product collections")
	}
	defer rows.Close()
	byProduct := make(map[int64][]*catalog.Collection)
	for rows.Next() {
		var (
			productID int64
			c         catalog.Collection
			pubDate   sql.NullTime
		)
		scanErr := rows.Scan(&productID, &c.ID, &c.Name, &c.Slug, &c.Description,
			&c.IsPublished, &pubDate, &c.SEOTitle, &c.SEODescription,
			&c.BackgroundImage, &c.BackgroundImageAlt)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning product collection")
			return nil, err
		}
		if pubDate.Valid {
			t := pubDate.Time
			c.PublicationDate = &t
		}
		byProduct[productID] = append(byProduct[productID], &c)
		total++
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading product collections")
	}
	out = make([][]*catalog.Collection, len(productIDs))
	for i, id := range productIDs {
		out[i] = byProduct[id]
	}
	return out, nil
}

func (s *Postgres) Collections(ctx context.Context, f CollectionFilter) ([]*catalog.Collection, error) {
	q := `SELECT ` + collectionColumns + ` FROM collection`
	args := []any{}
	where := ""
	if f.PublishedOnly {
		args = append(args, f.Now)
		where = ` WHERE is_published AND (publication_date IS NULL OR publication_date <= $1)`
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		cond := `(name ILIKE $` + itoa(len(args)) + ` OR slug ILIKE $` + itoa(len(args)) + `)`
		if where == "" {
			where = ` WHERE ` + cond
		} else {
			where += ` AND ` + cond
		}
	}
	first := f.First
	if first <= 0 {
		first = defaultPageSize
	}
	args = append(args, first)
	q += where + ` ORDER BY slug, id LIMIT $` + itoa(len(args))
	return s.collections(ctx, "collections_filtered", q, args...)
}

func (s *Postgres) collections(ctx context.Context, op, q string, args ...any) (out []*catalog.Collection, err error) {
	finish := s.observe(ctx, op)
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying collections")
	}
	defer rows.Close()
	for rows.Next() {
		c, scanErr := scanCollection(rows)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning collection")
			return nil, err
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading collections")
	}
	return out, nil
}

func (s *Postgres) ProductTypesByIDs(ctx context.Context, ids []int64) (out []*catalog.ProductType, err error) {
	finish := s.observe(ctx, "product_types_by_ids")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, has_variants, is_digital, is_shipping_required, weight_grams
		FROM product_type WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying product types")
	}
	defer rows.Close()
	for rows.Next() {
		var t catalog.ProductType
		scanErr := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.HasVariants, &t.IsDigital,
			&t.IsShippingRequired, &t.WeightGrams)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning product type")
			return nil, err
		}
		out = append(out, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading product types")
	}
	return out, nil
}

func (s *Postgres) ProductTypeAttributes(ctx context.Context, productTypeIDs []int64, forVariants bool) ([][]*catalog.Attribute, error) {
	op := "product_type_product_attributes"
	if forVariants {
		op = "product_type_variant_attributes"
	}
	return s.typeAttributes(ctx, op, productTypeIDs,
		`SELECT pta.product_type_id, a.id, a.name, a.slug, a.input_type
		FROM product_type_attribute pta JOIN attribute a ON a.id = pta.attribute_id
		WHERE pta.product_type_id = ANY($1) AND pta.for_variants = $2
		ORDER BY pta.product_type_id, a.slug`, pq.Array(productTypeIDs), forVariants)
}

func (s *Postgres) AvailableAttributes(ctx context.Context, productTypeIDs []int64) ([][]*catalog.Attribute, error) {
	return s.typeAttributes(ctx, "available_attributes", productTypeIDs,
		`SELECT pt.id, a.id, a.name, a.slug, a.input_type
		FROM product_type pt CROSS JOIN attribute a
		WHERE pt.id = ANY($1) AND NOT EXISTS (
			SELECT 1 FROM product_type_attribute pta
			WHERE pta.product_type_id = pt.id AND pta.attribute_id = a.id)
		ORDER BY pt.id, a.slug`, pq.Array(productTypeIDs))
}

func (s *Postgres) typeAttributes(ctx context.Context, op string, productTypeIDs []int64, q string, args ...any) (out [][]*catalog.Attribute, err error) {
	finish := s.observe(ctx, op)
	total := 0
	defer func() { finish(total, err) }()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying product type attributes")
	}
	defer rows.Close()
	byType := make(map[int64][]*catalog.Attribute)
	for rows.Next() {
		var (
			typeID int64
			a      catalog.Attribute
		)
		scanErr := rows.Scan(&typeID, &a.ID, &a.Name, &a.Slug, &a.InputType)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning product type attribute")
			return nil, err
		}
		byType[typeID] = append(byType[typeID], &a)
		total++
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading product type attributes")
	}
	out = make([][]*catalog.Attribute, len(productTypeIDs))
	for i, id := range productTypeIDs {
		out[i] = byType[id]
	}
	return out, nil
}

func (s *Postgres) ImagesByIDs(ctx context.Context, ids []int64) ([]*catalog.ProductImage, error) {
	return s.images(ctx, "images_by_ids",
		`SELECT id, product_id, path, alt, sort_order FROM product_image
		WHERE id = ANY($1)`, pq.Array(ids))
}

func (s *Postgres) ImagesByProductIDs(ctx context.Context, productIDs []int64) ([]*catalog.ProductImage, error) {
	return s.images(ctx, "images_by_product_ids",
		`SELECT id, product_id, path, alt, sort_order FROM product_image
		WHERE product_id = ANY($1) ORDER BY product_id, sort_order, id`, pq.Array(productIDs))
}

func (s *Postgres) images(ctx context.Context, op, q string, args ...any) (out []*catalog.ProductImage, err error) {
	finish := s.observe(ctx, op)
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying images")
	}
	defer rows.Close()
	for rows.Next() {
		var i catalog.ProductImage
		scanErr := rows.Scan(&i.ID, &i.ProductID, &i.Path, &i.Alt, &i.SortOrder)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning image")
			return nil, err
		}
		out = append(out, &i)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading images")
	}
	return out, nil
}

const channelColumns = `id, name, slug, is_active, currency_code, is_default`

func (s *Postgres) ChannelsBySlugs(ctx context.Context, slugs []string) (out []*catalog.Channel, err error) {
	finish := s.observe(ctx, "channels_by_slugs")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channel WHERE slug = ANY($1)`, pq.Array(slugs))
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying channels")
	}
	defer rows.Close()
	for rows.Next() {
		var c catalog.Channel
		scanErr := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.IsActive, &c.CurrencyCode, &c.IsDefault)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning channel")
			return nil, err
		}
		out = append(out, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading channels")
	}
	return out, nil
}

func (s *Postgres) DefaultChannel(ctx context.Context) (*catalog.Channel, error) {
	finish := s.observe(ctx, "default_channel")
	var c catalog.Channel
	err := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channel WHERE is_default LIMIT 1`).
		Scan(&c.ID, &c.Name, &c.Slug, &c.IsActive, &c.CurrencyCode, &c.IsDefault)
	if err == sql.ErrNoRows {
		finish(0, nil)
		return nil, gqlerr.Configuration("no default channel is configured")
	}
	if err != nil {
		finish(0, err)
		return nil, gqlerr.Upstream(err, "querying default channel")
	}
	finish(1, nil)
	return &c, nil
}

func (s *Postgres) ProductListings(ctx context.Context, productIDs []int64, channelSlug string) (out []*catalog.ProductChannelListing, err error) {
	finish := s.observe(ctx, "product_listings")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT pcl.id, pcl.product_id, pcl.channel_id, ch.slug, pcl.is_published,
			pcl.publication_date, pcl.visible_in_listings
		FROM product_channel_listing pcl JOIN channel ch ON ch.id = pcl.channel_id
		WHERE pcl.product_id = ANY($1) AND ch.slug = $2`,
		pq.Array(productIDs), channelSlug)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying product listings")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l       catalog.ProductChannelListing
			pubDate sql.NullTime
		)
		scanErr := rows.Scan(&l.ID, &l.ProductID, &l.ChannelID, &l.ChannelSlug,
			&l.IsPublished, &pubDate, &l.VisibleInListings)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning product listing")
			return nil, err
		}
		if pubDate.Valid {
			t := pubDate.Time
			l.PublicationDate = &t
		}
		out = append(out, &l)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading product listings")
	}
	return out, nil
}

func scanVariantListing(rows *sql.Rows, extra ...any) (*catalog.VariantChannelListing, error) {
	var (
		l    catalog.VariantChannelListing
		cost decimal.NullDecimal
	)
	dest := append(extra, &l.ID, &l.VariantID, &l.ChannelID, &l.ChannelSlug,
		&l.Currency, &l.Price, &cost)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	if cost.Valid {
		c := cost.Decimal
		l.CostPrice = &c
	}
	return &l, nil
}

func (s *Postgres) VariantListings(ctx context.Context, variantIDs []int64, channelSlug string) (out []*catalog.VariantChannelListing, err error) {
	finish := s.observe(ctx, "variant_listings")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT vcl.id, vcl.variant_id, vcl.channel_id, ch.slug, vcl.currency,
			vcl.price_amount, vcl.cost_price_amount
		FROM variant_channel_listing vcl JOIN channel ch ON ch.id = vcl.channel_id
		WHERE vcl.variant_id = ANY($1) AND ch.slug = $2`,
		pq.Array(variantIDs), channelSlug)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying variant listings")
	}
	defer rows.Close()
	for rows.Next() {
		l, scanErr := scanVariantListing(rows)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning variant listing")
			return nil, err
		}
		out = append(out, l)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading variant listings")
	}
	return out, nil
}

func (s *Postgres) VariantListingsByProductIDs(ctx context.Context, productIDs []int64, channelSlug string) (out [][]*catalog.VariantChannelListing, err error) {
	finish := s.observe(ctx, "variant_listings_by_product_ids")
	total := 0
	defer func() { finish(total, err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT pv.product_id, vcl.id, vcl.variant_id, vcl.channel_id, ch.slug,
			vcl.currency, vcl.price_amount, vcl.cost_price_amount
		FROM variant_channel_listing vcl
		JOIN product_variant pv ON pv.id = vcl.variant_id
		JOIN channel ch ON ch.id = vcl.channel_id
		WHERE pv.product_id = ANY($1) AND ch.slug = $2
		ORDER BY pv.product_id, vcl.variant_id`,
		pq.Array(productIDs), channelSlug)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying product variant listings")
	}
	defer rows.Close()
	byProduct := make(map[int64][]*catalog.VariantChannelListing)
	for rows.Next() {
		var productID int64
		l, scanErr := scanVariantListing(rows, &productID)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning product variant listing")
			return nil, err
		}
		byProduct[productID] = append(byProduct[productID], l)
		total++
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading product variant listings")
	}
	out = make([][]*catalog.VariantChannelListing, len(productIDs))
	for i, id := range productIDs {
		out[i] = byProduct[id]
	}
	return out, nil
}

func (s *Postgres) SelectedAttributesByProductIDs(ctx context.Context, productIDs []int64) ([][]*catalog.SelectedAttribute, error) {
	return s.selectedAttributes(ctx, "attributes_by_product_ids",
		`SELECT apa.product_id, a.id, a.name, a.slug, a.input_type, av.id, av.name, av.slug
		FROM assigned_product_attribute apa
		JOIN attribute a ON a.id = apa.attribute_id
		JOIN assigned_product_attribute_value apav ON apav.assignment_id = apa.id
		JOIN attribute_value av ON av.id = apav.value_id
		WHERE apa.product_id = ANY($1)
		ORDER BY apa.product_id, a.slug, av.sort_order, av.id`, productIDs)
}

func (s *Postgres) SelectedAttributesByVariantIDs(ctx context.Context, variantIDs []int64) ([][]*catalog.SelectedAttribute, error) {
	return s.selectedAttributes(ctx, "attributes_by_variant_ids",
		`SELECT ava.variant_id, a.id, a.name, a.slug, a.input_type, av.id, av.name, av.slug
		FROM assigned_variant_attribute ava
		JOIN attribute a ON a.id = ava.attribute_id
		JOIN assigned_variant_attribute_value avav ON avav.assignment_id = ava.id
		JOIN attribute_value av ON av.id = avav.value_id
		WHERE ava.variant_id = ANY($1)
		ORDER BY ava.variant_id, a.slug, av.sort_order, av.id`, variantIDs)
}

func (s *Postgres) selectedAttributes(ctx context.Context, op, q string, entityIDs []int64) (out [][]*catalog.SelectedAttribute, err error) {
	finish := s.observe(ctx, op)
	total := 0
	defer func() { finish(total, err) }()
	rows, err := s.db.QueryContext(ctx, q, pq.Array(entityIDs))
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying selected attributes")
	}
	defer rows.Close()

	type key struct {
		entityID    int64
		attributeID int64
	}
	byEntity := make(map[int64][]*catalog.SelectedAttribute)
	current := make(map[key]*catalog.SelectedAttribute)
	for rows.Next() {
		var (
			entityID int64
			attr     catalog.Attribute
			val      catalog.AttributeValue
		)
		scanErr := rows.Scan(&entityID, &attr.ID, &attr.Name, &attr.Slug,
			&attr.InputType, &val.ID, &val.Name, &val.Slug)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning selected attribute")
			return nil, err
		}
		k := key{entityID: entityID, attributeID: attr.ID}
		sel, ok := current[k]
		if !ok {
			a := attr
			sel = &catalog.SelectedAttribute{Attribute: &a}
			current[k] = sel
			byEntity[entityID] = append(byEntity[entityID], sel)
		}
		v := val
		sel.Values = append(sel.Values, &v)
		total++
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading selected attributes")
	}
	out = make([][]*catalog.SelectedAttribute, len(entityIDs))
	for i, id := range entityIDs {
		out[i] = byEntity[id]
	}
	return out, nil
}

func (s *Postgres) DigitalContentsByVariantIDs(ctx context.Context, variantIDs []int64) (out []*catalog.DigitalContent, err error) {
	finish := s.observe(ctx, "digital_contents_by_variant_ids")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, variant_id, content_url, max_downloads, url_valid_days
		FROM digital_content WHERE variant_id = ANY($1)`, pq.Array(variantIDs))
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying digital content")
	}
	defer rows.Close()
	for rows.Next() {
		var d catalog.DigitalContent
		scanErr := rows.Scan(&d.ID, &d.VariantID, &d.ContentURL, &d.MaxDownloads, &d.URLValidDays)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning digital content")
			return nil, err
		}
		out = append(out, &d)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading digital content")
	}
	return out, nil
}

func (s *Postgres) StocksByVariantIDs(ctx context.Context, variantIDs []int64, countryCode string) (out []*catalog.Stock, err error) {
	finish := s.observe(ctx, "stocks_by_variant_ids")
	defer func() { finish(len(out), err) }()
	q := `SELECT st.id, st.variant_id, st.warehouse_id, wh.name, wh.country_code,
		st.quantity, st.allocated
	FROM warehouse_stock st JOIN warehouse wh ON wh.id = st.warehouse_id
	WHERE st.variant_id = ANY($1)`
	args := []any{pq.Array(variantIDs)}
	if countryCode != "" {
		q += ` AND wh.country_code = $2`
		args = append(args, countryCode)
	}
	q += ` ORDER BY st.variant_id, st.warehouse_id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying stocks")
	}
	defer rows.Close()
	for rows.Next() {
		var st catalog.Stock
		scanErr := rows.Scan(&st.ID, &st.VariantID, &st.WarehouseID, &st.WarehouseName,
			&st.CountryCode, &st.Quantity, &st.Allocated)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning stock")
			return nil, err
		}
		out = append(out, &st)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading stocks")
	}
	return out, nil
}

func (s *Postgres) ActiveDiscounts(ctx context.Context, at time.Time) (out []*catalog.DiscountInfo, err error) {
	finish := s.observe(ctx, "active_discounts")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, value, start_at, end_at FROM sale
		WHERE start_at <= $1 AND (end_at IS NULL OR end_at >= $1)
		ORDER BY id`, at)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying sales")
	}
	defer rows.Close()
	byID := make(map[int64]*catalog.DiscountInfo)
	var ids []int64
	for rows.Next() {
		var (
			sale  catalog.Sale
			endAt sql.NullTime
		)
		scanErr := rows.Scan(&sale.ID, &sale.Name, &sale.Type, &sale.Value, &sale.StartAt, &endAt)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning sale")
			return nil, err
		}
		if endAt.Valid {
			t := endAt.Time
			sale.EndAt = &t
		}
		info := &catalog.DiscountInfo{
			Sale:          &sale,
			ProductIDs:    map[int64]struct{}{},
			CategoryIDs:   map[int64]struct{}{},
			CollectionIDs: map[int64]struct{}{},
		}
		byID[sale.ID] = info
		ids = append(ids, sale.ID)
		out = append(out, info)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading sales")
	}
	if len(ids) == 0 {
		return out, nil
	}
	for _, link := range []struct {
		table  string
		column string
		dest   func(info *catalog.DiscountInfo) map[int64]struct{}
	}{
		{"sale_product", "product_id", func(i *catalog.DiscountInfo) map[int64]struct{} { return i.ProductIDs }},
		{"sale_category", "category_id", func(i *catalog.DiscountInfo) map[int64]struct{} { return i.CategoryIDs }},
		{"sale_collection", "collection_id", func(i *catalog.DiscountInfo) map[int64]struct{} { return i.CollectionIDs }},
	} {
		if err = s.loadSaleLinks(ctx, link.table, link.column, ids, byID, link.dest); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Postgres) loadSaleLinks(ctx context.Context, table, column string, saleIDs []int64, byID map[int64]*catalog.DiscountInfo, dest func(*catalog.DiscountInfo) map[int64]struct{}) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sale_id, `+column+` FROM `+table+` WHERE sale_id = ANY($1)`, pq.Array(saleIDs))
	if err != nil {
		return gqlerr.Upstream(err, "querying %s", table)
	}
	defer rows.Close()
	for rows.Next() {
		var saleID, entityID int64
		if err := rows.Scan(&saleID, &entityID); err != nil {
			return gqlerr.Upstream(err, "scanning %s", table)
		}
		if info, ok := byID[saleID]; ok {
			dest(info)[entityID] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return gqlerr.Upstream(err, "reading %s", table)
	}
	return nil
}

func (s *Postgres) TranslationsByEntityIDs(ctx context.Context, entityType string, entityIDs []int64, language string) (out []*catalog.Translation, err error) {
	finish := s.observe(ctx, "translations_by_entity_ids")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, entity_id, language, name, description FROM translation
		WHERE entity_type = $1 AND entity_id = ANY($2) AND language = $3`,
		entityType, pq.Array(entityIDs), language)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying translations")
	}
	defer rows.Close()
	for rows.Next() {
		var t catalog.Translation
		scanErr := rows.Scan(&t.EntityType, &t.EntityID, &t.Language, &t.Name, &t.Description)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning translation")
			return nil, err
		}
		out = append(out, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading translations")
	}
	return out, nil
}

func (s *Postgres) VariantRevenues(ctx context.Context, variantIDs []int64, since time.Time) (out []VariantRevenue, err error) {
	finish := s.observe(ctx, "variant_revenues")
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT ol.variant_id, COALESCE(SUM(ol.total_price_gross), 0), MIN(co.currency)
		FROM order_line ol JOIN customer_order co ON co.id = ol.order_id
		WHERE ol.variant_id = ANY($1) AND co.created_at >= $2 AND co.status <> 'canceled'
		GROUP BY ol.variant_id`, pq.Array(variantIDs), since)
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying variant revenues")
	}
	defer rows.Close()
	for rows.Next() {
		var r VariantRevenue
		scanErr := rows.Scan(&r.VariantID, &r.Amount, &r.Currency)
		if scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning variant revenue")
			return nil, err
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading variant revenues")
	}
	return out, nil
}

func (s *Postgres) QuantitiesOrdered(ctx context.Context, variantIDs []int64) (map[int64]int64, error) {
	finish := s.observe(ctx, "quantities_ordered")
	out := make(map[int64]int64)
	var err error
	defer func() { finish(len(out), err) }()
	rows, err := s.db.QueryContext(ctx,
		`SELECT ol.variant_id, COALESCE(SUM(ol.quantity), 0)
		FROM order_line ol JOIN customer_order co ON co.id = ol.order_id
		WHERE ol.variant_id = ANY($1) AND co.status <> 'canceled'
		GROUP BY ol.variant_id`, pq.Array(variantIDs))
	if err != nil {
		return nil, gqlerr.Upstream(err, "querying ordered quantities")
	}
	defer rows.Close()
	for rows.Next() {
		var variantID, qty int64
		if scanErr := rows.Scan(&variantID, &qty); scanErr != nil {
			err = gqlerr.Upstream(scanErr, "scanning ordered quantity")
			return nil, err
		}
		out[variantID] = qty
	}
	if err = rows.Err(); err != nil {
		return nil, gqlerr.Upstream(err, "reading ordered quantities")
	}
	return out, nil
}
