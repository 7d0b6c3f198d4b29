package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/openmerce/catalogql/internal/catalog"
)

var hundred = decimal.NewFromInt(100)

// MarginRange is the [low, high] gross margin percentage across a product's
// variants.
type MarginRange struct {
	Start int
	Stop  int
}

// MarginForListing returns the rounded gross margin percentage of one
// variant listing, or nil when cost or price is missing.
func MarginForListing(l *catalog.VariantChannelListing) *int {
	if l == nil || l.CostPrice == nil || l.Price.IsZero() {
		return nil
	}
	margin := l.Price.Sub(*l.CostPrice)
	percent := int(margin.Div(l.Price).Mul(hundred).Round(0).IntPart())
	return &percent
}

// ProductCosts aggregates purchase cost and margin across the product's
// variant listings in one channel: the cost range spans the cheapest to the
// most expensive variant cost, the margin range the worst to the best
// margin. Listings without a cost contribute a zero cost and no margin.
func ProductCosts(listings []*catalog.VariantChannelListing) (MoneyRange, MarginRange) {
	currency := ""
	if len(listings) > 0 {
		currency = listings[0].Currency
	}
	zero := ZeroMoney(currency)
	costRange := MoneyRange{Start: zero, Stop: zero}
	marginRange := MarginRange{}
	if len(listings) == 0 {
		return costRange, marginRange
	}

	var costs []Money
	var margins []int
	for _, l := range listings {
		if l.CostPrice != nil {
			costs = append(costs, NewMoney(*l.CostPrice, l.Currency))
		} else {
			costs = append(costs, ZeroMoney(l.Currency))
		}
		if m := MarginForListing(l); m != nil {
			margins = append(margins, *m)
		}
	}
	sort.Slice(costs, func(i, j int) bool { return costs[i].LessThan(costs[j]) })
	sort.Ints(margins)

	costRange = MoneyRange{Start: costs[0], Stop: costs[len(costs)-1]}
	if len(margins) > 0 {
		marginRange = MarginRange{Start: margins[0], Stop: margins[len(margins)-1]}
	}
	return costRange, marginRange
}
