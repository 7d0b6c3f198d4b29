package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/openmerce/catalogql/internal/gqlerr"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgres(db), mock
}

var productCols = []string{
	"id", "name", "slug", "description", "category_id", "product_type_id",
	"charge_taxes", "weight_grams", "seo_title", "seo_description", "updated_at",
	"metadata", "private_metadata",
}

func TestProductsByIDsDecodesMetadata(t *testing.T) {
	s, mock := newMockStore(t)
	updated := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM product WHERE id = ANY`).
		WithArgs(pq.Array([]int64{1})).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(
			int64(1), "Blue Shirt", "blue-shirt", "", int64(2), int64(1),
			true, int64(250), "", "", updated,
			EncodeMeta(map[string]string{"vendor": "acme"}), nil,
		))

	out, err := s.ProductsByIDs(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "blue-shirt", out[0].Slug)
	require.Equal(t, int64(2), out[0].CategoryID)
	require.Equal(t, map[string]string{"vendor": "acme"}, out[0].Metadata)
	require.Nil(t, out[0].PrivateMetadata)
}

func TestProductsPublishedFilterJoinsListings(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`JOIN product_channel_listing pcl(?s).*ch\.slug = \$1 AND pcl\.is_published(?s).*ILIKE \$3(?s).*LIMIT \$4`).
		WithArgs("web", now, "%shirt%", 100).
		WillReturnRows(sqlmock.NewRows(productCols))

	out, err := s.Products(context.Background(), ProductFilter{
		ChannelSlug:   "web",
		PublishedOnly: true,
		Now:           now,
		Search:        "shirt",
	})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDefaultChannelMissingIsConfigurationError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM channel WHERE is_default`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "is_active", "currency_code", "is_default"}))

	_, err := s.DefaultChannel(context.Background())
	require.Error(t, err)
	require.Equal(t, gqlerr.CodeConfiguration, gqlerr.CodeOf(err))
}

func TestStocksByVariantIDsAppliesCountryFilter(t *testing.T) {
	s, mock := newMockStore(t)
	stockCols := []string{"id", "variant_id", "warehouse_id", "name", "country_code", "quantity", "allocated"}
	mock.ExpectQuery(`FROM warehouse_stock st(?s).*wh\.country_code = \$2`).
		WithArgs(pq.Array([]int64{1, 2}), "US").
		WillReturnRows(sqlmock.NewRows(stockCols).
			AddRow(int64(10), int64(1), int64(5), "East", "US", 7, 2))

	out, err := s.StocksByVariantIDs(context.Background(), []int64{1, 2}, "US")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "East", out[0].WarehouseName)
	require.Equal(t, 7, out[0].Quantity)
}

func TestActiveDiscountsLoadsLinkTables(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM sale(?s).*start_at <= \$1`).
		WithArgs(at).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "value", "start_at", "end_at"}).
			AddRow(int64(1), "Spring Sale", "percentage", "10", at.AddDate(0, -1, 0), nil))
	mock.ExpectQuery(`FROM sale_product`).
		WithArgs(pq.Array([]int64{1})).
		WillReturnRows(sqlmock.NewRows([]string{"sale_id", "product_id"}))
	mock.ExpectQuery(`FROM sale_category`).
		WithArgs(pq.Array([]int64{1})).
		WillReturnRows(sqlmock.NewRows([]string{"sale_id", "category_id"}).AddRow(int64(1), int64(2)))
	mock.ExpectQuery(`FROM sale_collection`).
		WithArgs(pq.Array([]int64{1})).
		WillReturnRows(sqlmock.NewRows([]string{"sale_id", "collection_id"}))

	out, err := s.ActiveDiscounts(context.Background(), at)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Spring Sale", out[0].Sale.Name)
	require.Contains(t, out[0].CategoryIDs, int64(2))
	require.Empty(t, out[0].ProductIDs)
}

func TestQuantitiesOrderedGroupsByVariant(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM order_line ol(?s).*GROUP BY ol\.variant_id`).
		WithArgs(pq.Array([]int64{1, 2})).
		WillReturnRows(sqlmock.NewRows([]string{"variant_id", "sum"}).
			AddRow(int64(1), int64(9)))

	out, err := s.QuantitiesOrdered(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, map[int64]int64{1: 9}, out)
}

func TestQueryFailureWrapsAsUpstream(t *testing.T) {
	s, mock := newMockStore(t)
	cause := errors.New("connection reset")
	mock.ExpectQuery(`FROM product_variant WHERE id = ANY`).
		WithArgs(pq.Array([]int64{1})).
		WillReturnError(cause)

	_, err := s.VariantsByIDs(context.Background(), []int64{1})
	require.Error(t, err)
	require.Equal(t, gqlerr.CodeUpstream, gqlerr.CodeOf(err))
	require.ErrorIs(t, err, cause)
}
