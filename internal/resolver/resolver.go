// Package resolver maps the catalog schema onto records, loaders and the
// pricing aggregators. Each object type owns a dispatch table of field
// functions; fields without an entry fall back to the wrapped record's
// attribute table. Field functions never block on I/O: anything loaded goes
// through the request's batch loaders and comes back as a deferred value.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/catalog"
	"github.com/openmerce/catalogql/internal/gqlerr"
	"github.com/openmerce/catalogql/internal/loader"
	"github.com/openmerce/catalogql/internal/media"
	"github.com/openmerce/catalogql/internal/pricing"
	"github.com/openmerce/catalogql/internal/store"
)

// DefaultMaxCheckoutLineQuantity is the sentinel quantity reported for
// variants that do not track inventory, and the cap applied to real counts.
const DefaultMaxCheckoutLineQuantity = 50

// TaxType describes the tax classification of a product, supplied by an
// external tax collaborator.
type TaxType struct {
	Description string
	TaxCode     string
}

// TaxTypeSource resolves the tax classification of a product. ok is false
// when the collaborator has no classification for it.
type TaxTypeSource interface {
	TaxType(product *catalog.Product) (TaxType, bool)
}

// FieldFunc resolves one field. source is the parent value, args the coerced
// argument map. The returned value may be a *promise.Deferred.
type FieldFunc func(ctx context.Context, s *Session, source any, args map[string]any) (any, error)

// Require wraps fn with a permission check against the request's requester.
// A missing permission fails the field with a PERMISSION_DENIED error;
// sibling fields keep resolving.
func Require(perm auth.Permission, fn FieldFunc) FieldFunc {
	return func(ctx context.Context, s *Session, source any, args map[string]any) (any, error) {
		rc := catalog.RequestContextFrom(ctx)
		if !rc.Requester.Has(perm) {
			return nil, gqlerr.PermissionDenied(string(perm))
		}
		return fn(ctx, s, source, args)
	}
}

// Config wires the resolver set's collaborators.
type Config struct {
	Stores store.Stores
	Media  media.URLRenderer
	// Converter localizes amounts into the requester's display currency.
	// Optional; local-currency pricing fields stay null without it.
	Converter pricing.CurrencyConverter
	// Taxes supplies tax classifications. Optional.
	Taxes TaxTypeSource
	// MaxCheckoutLineQuantity caps reported availability; zero means the
	// default.
	MaxCheckoutLineQuantity int
}

// Resolvers is the long-lived resolver set. It is safe for concurrent use;
// all per-request state lives in Sessions.
type Resolvers struct {
	cfg    Config
	fields map[string]map[string]FieldFunc
}

// New builds the resolver set and its dispatch tables.
func New(cfg Config) *Resolvers {
	if cfg.MaxCheckoutLineQuantity <= 0 {
		cfg.MaxCheckoutLineQuantity = DefaultMaxCheckoutLineQuantity
	}
	r := &Resolvers{cfg: cfg, fields: map[string]map[string]FieldFunc{}}
	r.fields["Query"] = queryFields()
	r.fields["Product"] = productFields()
	r.fields["ProductVariant"] = variantFields()
	r.fields["Category"] = categoryFields()
	r.fields["Collection"] = collectionFields()
	r.fields["ProductType"] = productTypeFields()
	r.fields["ProductImage"] = productImageFields()
	r.fields["Channel"] = channelFields()
	r.fields["Stock"] = stockFields()
	r.fields["DigitalContent"] = digitalContentFields()
	r.fields["SelectedAttribute"] = selectedAttributeFields()
	r.fields["Attribute"] = attributeFields()
	r.fields["AttributeValue"] = attributeValueFields()
	r.fields["ProductChannelListing"] = productChannelListingFields()
	return r
}

// Session is the per-request execution surface handed to the executor. It
// owns the request's loader registry and bundle.
type Session struct {
	res      *Resolvers
	registry *loader.Registry
	loaders  *Loaders
}

// NewSession opens a fresh request scope with empty loader caches.
func (r *Resolvers) NewSession() *Session {
	reg := loader.NewRegistry()
	return &Session{res: r, registry: reg, loaders: NewLoaders(reg, r.cfg.Stores)}
}

// Registry exposes the request's loader registry.
func (s *Session) Registry() *loader.Registry { return s.registry }

func (s *Session) maxQuantity() int { return s.res.cfg.MaxCheckoutLineQuantity }

// Resolve dispatches to the field table of objectType; unknown fields fall
// back to the source's attribute table (maps resolve by key).
func (s *Session) Resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if table, ok := s.res.fields[objectType]; ok {
		if fn, ok := table[field]; ok {
			return fn(ctx, s, source, args)
		}
	}
	switch src := source.(type) {
	case map[string]any:
		return src[field], nil
	case interface {
		Attr(string) (any, bool)
	}:
		if v, ok := src.Attr(field); ok {
			return v, nil
		}
	}
	return nil, nil
}

// FlushBatches runs the batched fetches queued since the last flush.
func (s *Session) FlushBatches(ctx context.Context) bool {
	return s.registry.Flush(ctx)
}

// ResolveType reports the concrete type of an abstract-typed value. Records
// carry their own type name; assembled maps tag themselves.
func (s *Session) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if rec, _ := catalog.Unwrap(value); rec != nil {
		return rec.TypeName(), nil
	}
	if m, ok := value.(map[string]any); ok {
		if t, ok := m["__typename"].(string); ok {
			return t, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s value %T", abstractType, value)
}

// SerializeLeafValue coerces scalars and enums to JSON-safe values.
func (s *Session) SerializeLeafValue(ctx context.Context, name string, value any) (any, error) {
	switch name {
	case "DateTime":
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), nil
		case *time.Time:
			if v == nil {
				return nil, nil
			}
			return v.UTC().Format(time.RFC3339), nil
		}
		return nil, fmt.Errorf("cannot serialize %T as DateTime", value)
	case "Date":
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format("2006-01-02"), nil
		case *time.Time:
			if v == nil {
				return nil, nil
			}
			return v.UTC().Format("2006-01-02"), nil
		}
		return nil, fmt.Errorf("cannot serialize %T as Date", value)
	case "Float":
		switch v := value.(type) {
		case decimal.Decimal:
			return v.InexactFloat64(), nil
		case *decimal.Decimal:
			if v == nil {
				return nil, nil
			}
			return v.InexactFloat64(), nil
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
		return nil, fmt.Errorf("cannot serialize %T as Float", value)
	case "Int":
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		case *int:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		case *int64:
			if v == nil {
				return nil, nil
			}
			return int(*v), nil
		}
		return nil, fmt.Errorf("cannot serialize %T as Int", value)
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot serialize %T as Boolean", value)
	default:
		// String, ID, and string-backed enums
		if v, ok := value.(string); ok {
			return v, nil
		}
		return fmt.Sprintf("%v", value), nil
	}
}

// Argument helpers. Coercion already happened in the executor; these only
// narrow the dynamic types it produces.

func argString(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

func argInt(args map[string]any, name string) (int, bool) {
	switch v := args[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// periodStart maps a reporting period enum to its concrete start instant.
func periodStart(now time.Time, period string) (time.Time, error) {
	switch period {
	case "TODAY":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	case "THIS_MONTH":
		y, m, _ := now.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), nil
	}
	return time.Time{}, fmt.Errorf("unknown reporting period %q", period)
}

// metadataList renders a metadata map as a stable key-sorted item list.
func metadataList(meta map[string]string) []any {
	if len(meta) == 0 {
		return []any{}
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = map[string]any{"key": k, "value": meta[k]}
	}
	return out
}

// weightMap presents a gram weight in the canonical kilogram unit.
func weightMap(grams float64) map[string]any {
	return map[string]any{"unit": "KG", "value": grams / 1000}
}

func translationMap(t *catalog.Translation) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"name":         t.Name,
		"description":  t.Description,
		"languageCode": t.Language,
	}
}

// Value-object rendering: money and pricing snapshots travel as maps so the
// executor can walk their sub-selections without more dispatch tables.

func moneyMap(m pricing.Money) map[string]any {
	return map[string]any{"amount": m.Amount, "currency": m.Currency}
}

func taxedMoneyMap(t *pricing.TaxedMoney) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"net":      moneyMap(t.Net),
		"gross":    moneyMap(t.Gross),
		"currency": t.Net.Currency,
	}
}

func moneyRangeMap(r pricing.MoneyRange) map[string]any {
	return map[string]any{"start": moneyMap(r.Start), "stop": moneyMap(r.Stop)}
}

func taxedMoneyRangeMap(r *pricing.TaxedMoneyRange) map[string]any {
	if r == nil {
		return nil
	}
	return map[string]any{"start": taxedMoneyMap(&r.Start), "stop": taxedMoneyMap(&r.Stop)}
}

func variantPricingMap(info *pricing.VariantPricingInfo) map[string]any {
	if info == nil {
		return nil
	}
	return map[string]any{
		"onSale":                info.OnSale,
		"discount":              taxedMoneyMap(info.Discount),
		"discountLocalCurrency": taxedMoneyMap(info.DiscountLocalCurrency),
		"price":                 taxedMoneyMap(info.Price),
		"priceUndiscounted":     taxedMoneyMap(info.PriceUndiscounted),
		"priceLocalCurrency":    taxedMoneyMap(info.PriceLocalCurrency),
	}
}

func productPricingMap(info *pricing.ProductPricingInfo) map[string]any {
	if info == nil {
		return nil
	}
	return map[string]any{
		"onSale":                  info.OnSale,
		"discount":                taxedMoneyMap(info.Discount),
		"discountLocalCurrency":   taxedMoneyMap(info.DiscountLocalCurrency),
		"priceRange":              taxedMoneyRangeMap(info.PriceRange),
		"priceRangeUndiscounted":  taxedMoneyRangeMap(info.PriceRangeUndiscounted),
		"priceRangeLocalCurrency": taxedMoneyRangeMap(info.PriceRangeLocalCurrency),
	}
}

func marginMap(r pricing.MarginRange) map[string]any {
	return map[string]any{"start": r.Start, "stop": r.Stop}
}

func imageMap(url, alt string) map[string]any {
	return map[string]any{"url": url, "alt": alt}
}
